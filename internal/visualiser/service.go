// Package visualiser streams live playback of a loaded recording over gRPC.
//
// Messages are google.protobuf.Struct values so the service needs no
// generated stubs. A request carries {recording_id, speed}; each frame carries
// {segment_index, revealed, state, progress, previous, current}, with every
// lead encoded as {x: [...], y: [...]}. The completion frame also carries
// findings {positive, event_count, diagnoses}.
package visualiser

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tracereport.v1.Playback"

// StreamMethod is the full method name of the playback stream.
const StreamMethod = "/" + ServiceName + "/Stream"

// PlaybackServer is the server API for the playback service.
type PlaybackServer interface {
	Stream(req *structpb.Struct, stream grpc.ServerStream) error
}

func streamHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(PlaybackServer).Stream(req, stream)
}

// ServiceDesc describes the playback service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlaybackServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
		},
	},
}

// RegisterPlaybackServer registers srv with s.
func RegisterPlaybackServer(s grpc.ServiceRegistrar, srv PlaybackServer) {
	s.RegisterService(&ServiceDesc, srv)
}
