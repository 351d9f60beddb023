// Package preview provides the live-view camera handle that feeds the
// on-screen preview. A handle is opened at start, released while the still
// cameras capture, and reopened afterwards.
package preview

import (
	"errors"
	"fmt"
	"image"

	"github.com/cjeanneret/MultiCam/internal/config"
)

// ErrNoFrame is returned by Read when the device delivered nothing this tick.
var ErrNoFrame = errors.New("preview: no frame available")

// ErrNotOpen is returned by Read on a released handle.
var ErrNotOpen = errors.New("preview: device not open")

// Source is a live camera handle.
type Source interface {
	Open() error
	Read() (image.Image, error)
	Release() error
	IsOpened() bool
}

// New selects the preview backend from the configuration.
func New(cfg *config.Config) (Source, error) {
	p := cfg.Preview
	switch p.Backend {
	case config.PreviewGoCV:
		return NewGoCV(p.DeviceIndex, p.WidthPx, p.HeightPx), nil
	case config.PreviewV4L2:
		return NewV4L2(p.DevicePath, p.WidthPx, p.HeightPx), nil
	case config.PreviewMock:
		return NewMock(p.WidthPx, p.HeightPx), nil
	default:
		return nil, fmt.Errorf("unsupported preview backend: %s", p.Backend)
	}
}
