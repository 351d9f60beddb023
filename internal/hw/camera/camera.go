package camera

import (
	"context"
	"errors"
)

// StillConfig is the still-capture configuration applied before Start.
type StillConfig struct {
	WidthPx  int
	HeightPx int
}

// Still is a still camera handle, opened for a single shot and closed
// afterwards. Close must be safe to call in any state.
type Still interface {
	Configure(cfg StillConfig) error
	Start(ctx context.Context) error
	// CaptureFile writes one JPEG still to path.
	CaptureFile(ctx context.Context, path string) error
	Stop() error
	Close() error
}

// Opener opens still cameras by port index (0, 1, 2...).
type Opener interface {
	Open(ctx context.Context, index int) (Still, error)
}

// ErrNotDetected is wrapped by Open when no camera answers on an index.
var ErrNotDetected = errors.New("camera not detected")
