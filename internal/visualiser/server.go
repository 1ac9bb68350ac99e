package visualiser

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/trace.report/internal/playback"
	"github.com/banshee-data/trace.report/internal/session"
	"github.com/banshee-data/trace.report/internal/signal"
	"github.com/banshee-data/trace.report/internal/timeutil"
)

var _ PlaybackServer = (*Server)(nil)

// Server streams the playback of live sessions.
type Server struct {
	sessions *session.Manager
	// NewScheduler creates the frame scheduler for one stream. It defaults to
	// a ClockScheduler at the configured frame interval.
	NewScheduler func() playback.Scheduler
}

// NewServer creates a playback server over the manager's sessions.
func NewServer(sessions *session.Manager, clock timeutil.Clock) *Server {
	interval := sessions.Config().GetFrameInterval()
	return &Server{
		sessions: sessions,
		NewScheduler: func() playback.Scheduler {
			return playback.NewClockScheduler(clock, interval)
		},
	}
}

// displaySegments maps every segment into the live display geometry.
func (s *Server) displaySegments(sess *session.Session) ([]signal.Segment, error) {
	g := s.sessions.Config().Geometry()
	out := make([]signal.Segment, sess.SegmentCount())
	for i := range out {
		v, err := sess.DisplaySegment(i, g)
		if err != nil {
			return nil, err
		}
		out[i] = v.Lines
	}
	return out, nil
}

// Stream plays the requested recording and sends a frame per rendered view
// until playback completes or the client goes away. A paused (speed 0)
// stream sends its initial frame and then waits for cancellation.
func (s *Server) Stream(req *structpb.Struct, stream grpc.ServerStream) error {
	r, err := DecodeRequest(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	sess, err := s.sessions.Get(r.RecordingID)
	if err != nil {
		return status.Error(codes.NotFound, err.Error())
	}
	segments, err := s.displaySegments(sess)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	log.Printf("[gRPC] Stream started: recording=%s speed=%v segments=%d", r.RecordingID, r.Speed, len(segments))

	sched := s.NewScheduler()
	if c, ok := sched.(interface{ Close() }); ok {
		defer c.Close()
	}

	// Views are full snapshots, so only the newest pending one is kept.
	frames := make(chan playback.View, 1)
	done := make(chan error, 1)
	cb := playback.Callbacks{
		OnFrame: func(v playback.View) {
			select {
			case <-frames:
			default:
			}
			select {
			case frames <- v:
			default:
			}
		},
		OnComplete: func(err error) {
			select {
			case done <- err:
			default:
			}
		},
	}
	p, err := playback.CreatePlayback(segments, r.Speed, cb, sched, s.sessions.Config().Playback())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	defer p.Dispose()

	n := len(segments)
	send := func(v playback.View) error {
		if err := stream.SendMsg(EncodeFrame(v, n)); err != nil {
			log.Printf("[gRPC] Send error: %v", err)
			return err
		}
		return nil
	}
	if err := send(p.View()); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[gRPC] Stream cancelled: recording=%s", r.RecordingID)
			return status.FromContextError(ctx.Err()).Err()
		case v := <-frames:
			if err := send(v); err != nil {
				return err
			}
		case err := <-done:
			if err != nil {
				return status.Error(codes.Unavailable, err.Error())
			}
			log.Printf("[gRPC] Stream complete: recording=%s", r.RecordingID)
			if err := stream.SendMsg(WithFindings(EncodeFrame(p.View(), n), sess.Findings())); err != nil {
				log.Printf("[gRPC] Send error: %v", err)
				return err
			}
			return nil
		}
	}
}

const maxMsgSize = 16 * 1024 * 1024 // 16 MB

// NewGRPCServer returns a grpc.Server with the playback and health services
// registered.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterPlaybackServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// Listener runs a gRPC server on a TCP address.
type Listener struct {
	server  *grpc.Server
	lis     net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewListener wraps a server built by NewGRPCServer.
func NewListener(server *grpc.Server) *Listener {
	return &Listener{server: server}
}

// Start binds addr and serves in the background.
func (l *Listener) Start(addr string) error {
	if l.running.Load() {
		return fmt.Errorf("listener already running")
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return l.Serve(lis)
}

// Serve serves on an existing listener in the background.
func (l *Listener) Serve(lis net.Listener) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("listener already running")
	}
	l.lis = lis
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		log.Printf("[gRPC] Playback server listening on %s", lis.Addr())
		if err := l.server.Serve(lis); err != nil && l.running.Load() {
			log.Printf("[gRPC] Server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	if l.lis == nil {
		return nil
	}
	return l.lis.Addr()
}

// Stop gracefully stops the server.
func (l *Listener) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	l.server.GracefulStop()
	l.wg.Wait()
	log.Printf("[gRPC] Playback server stopped")
}

// Client reads playback streams from a remote server.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// FrameStream receives decoded frames.
type FrameStream struct {
	stream grpc.ClientStream
}

// Stream starts playback of req on the server.
func (c *Client) Stream(ctx context.Context, req Request) (*FrameStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], StreamMethod)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(EncodeRequest(req)); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &FrameStream{stream: stream}, nil
}

// Recv returns the next frame, or io.EOF once playback completed.
func (f *FrameStream) Recv() (Frame, error) {
	msg := new(structpb.Struct)
	if err := f.stream.RecvMsg(msg); err != nil {
		return Frame{}, err
	}
	return DecodeFrame(msg)
}
