package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cjeanneret/MultiCam/internal/debug"
	"github.com/cjeanneret/MultiCam/internal/hw/camera"
	"github.com/cjeanneret/MultiCam/internal/status"
)

// Reporter receives the per-camera status lines of a run.
type Reporter func(level, msg string)

// Config describes one multi-camera shot.
type Config struct {
	Directory       string
	CameraCount     int
	Still           camera.StillConfig
	TimestampLayout string
}

// CameraError is the failure that aborted a run.
type CameraError struct {
	Index int
	Err   error
}

func (e *CameraError) Error() string {
	return fmt.Sprintf("camera %d: %v", e.Index, e.Err)
}

func (e *CameraError) Unwrap() error { return e.Err }

// Result is the outcome of a Sequence run.
type Result struct {
	Timestamp string
	Files     []string // pictures written, in camera order
	Err       error    // *CameraError, or the context error if cancelled
}

// Success reports whether every camera produced its picture.
func (r Result) Success() bool { return r.Err == nil }

// Sequence takes one still from each camera in turn.
type Sequence struct {
	opener camera.Opener
	cfg    Config
	report Reporter
}

// NewSequence creates a sequence. report may be nil.
func NewSequence(o camera.Opener, cfg Config, report Reporter) *Sequence {
	if cfg.TimestampLayout == "" {
		cfg.TimestampLayout = "20060102-150405"
	}
	if report == nil {
		report = func(string, string) {}
	}
	return &Sequence{opener: o, cfg: cfg, report: report}
}

// EnsureDirectory creates the output directory if it does not exist.
func (s *Sequence) EnsureDirectory() error {
	if err := os.MkdirAll(s.cfg.Directory, 0o755); err != nil {
		return fmt.Errorf("create capture directory: %w", err)
	}
	return nil
}

// Directory returns the output directory.
func (s *Sequence) Directory() string { return s.cfg.Directory }

// FileName returns the path of camera index's picture for timestamp ts.
func FileName(dir string, index int, ts string) string {
	return filepath.Join(dir, fmt.Sprintf("cam%d_%s.jpg", index, ts))
}

// Run captures from cameras 0..CameraCount-1 using one timestamp taken from
// at. The first failure is reported and ends the run; cameras after it are
// not opened.
func (s *Sequence) Run(ctx context.Context, at time.Time) Result {
	res := Result{Timestamp: at.Format(s.cfg.TimestampLayout)}
	debug.Section("Capture " + res.Timestamp)

	for i := 0; i < s.cfg.CameraCount; i++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		path := FileName(s.cfg.Directory, i, res.Timestamp)
		if err := s.shoot(ctx, i, path); err != nil {
			s.report(status.LevelError, fmt.Sprintf("Error capturing picture from camera %d: %v", i, err))
			res.Err = &CameraError{Index: i, Err: err}
			return res
		}

		res.Files = append(res.Files, path)
		debug.Shot(i, path)
		s.report(status.LevelInfo, fmt.Sprintf("Picture %d taken successfully", i+1))
	}
	return res
}

// shoot opens camera index, writes one still to path and always closes the
// camera again.
func (s *Sequence) shoot(ctx context.Context, index int, path string) (err error) {
	cam, err := s.opener.Open(ctx, index)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cam.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := cam.Configure(s.cfg.Still); err != nil {
		return err
	}
	if err := cam.Start(ctx); err != nil {
		return err
	}
	if err := cam.CaptureFile(ctx, path); err != nil {
		_ = cam.Stop()
		return err
	}
	return cam.Stop()
}
