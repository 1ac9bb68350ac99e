package render

import (
	"fmt"
	"io"

	"github.com/banshee-data/trace.report/internal/events"
	"github.com/banshee-data/trace.report/internal/fsutil"
	"github.com/banshee-data/trace.report/internal/monitoring"
	"github.com/banshee-data/trace.report/internal/security"
)

var logf = monitoring.Prefixed("render")

// Exporter writes each event of a recording as a PNG plot and an HTML chart.
type Exporter struct {
	FS      fsutil.FileSystem
	Options Options
	// InitialWindow is the brush width of the HTML chart in seconds.
	InitialWindow float64
}

// ExportEvents writes <name>_event_<i>.png and <name>_event_<i>.html for every
// event into dir, creating dir if needed. It returns the written paths in
// order. File names are sanitized and must resolve inside dir.
func (e *Exporter) ExportEvents(evs []events.Event, name, dir string) ([]string, error) {
	if err := e.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	written := make([]string, 0, 2*len(evs))
	for i, ev := range evs {
		base := fmt.Sprintf("%s_event_%d", name, i)
		path, err := e.write(dir, base+".png", func(w io.Writer) error {
			return WriteEventPNG(w, ev, e.Options)
		})
		if err != nil {
			return written, err
		}
		written = append(written, path)

		path, err = e.write(dir, base+".html", func(w io.Writer) error {
			return WriteEventChart(w, ev, e.Options, e.InitialWindow)
		})
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	logf("exported %d events of %q to %s", len(evs), name, dir)
	return written, nil
}

func (e *Exporter) write(dir, name string, draw func(io.Writer) error) (string, error) {
	path, err := security.OutputPath(dir, name)
	if err != nil {
		return "", err
	}
	f, err := e.FS.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := draw(f); err != nil {
		f.Close()
		return "", fmt.Errorf("render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
