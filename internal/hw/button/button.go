package button

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/MultiCam/internal/debug"
	"github.com/cjeanneret/MultiCam/internal/hw/gpio"
)

// Config holds the wiring of a push button.
type Config struct {
	Pin      int
	PullUp   bool          // button shorts the pin to ground (press = falling edge)
	Debounce time.Duration // edges closer than this to the previous press are ignored
	Poll     time.Duration // edge latch polling interval
}

// Watcher turns edges on a GPIO input into press callbacks.
type Watcher struct {
	gpio    gpio.Driver
	cfg     Config
	edge    gpio.Edge
	onPress func()
	now     func() time.Time
	last    time.Time
}

// NewWatcher configures pin as an input with edge detection armed.
// onPress is called from the goroutine running Run.
func NewWatcher(g gpio.Driver, cfg Config, onPress func()) (*Watcher, error) {
	if onPress == nil {
		return nil, fmt.Errorf("button: nil press handler")
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 10 * time.Millisecond
	}

	pull, edge := gpio.PullDown, gpio.RiseEdge
	if cfg.PullUp {
		pull, edge = gpio.PullUp, gpio.FallEdge
	}

	if err := g.SetupPin(cfg.Pin, gpio.Input); err != nil {
		return nil, fmt.Errorf("button: setup pin %d: %w", cfg.Pin, err)
	}
	if err := g.SetPull(cfg.Pin, pull); err != nil {
		return nil, fmt.Errorf("button: pull pin %d: %w", cfg.Pin, err)
	}
	if err := g.DetectEdge(cfg.Pin, edge); err != nil {
		return nil, fmt.Errorf("button: arm edge on pin %d: %w", cfg.Pin, err)
	}

	return &Watcher{
		gpio:    g,
		cfg:     cfg,
		edge:    edge,
		onPress: onPress,
		now:     time.Now,
	}, nil
}

// Run polls for presses until ctx is cancelled, then disarms edge detection.
func (w *Watcher) Run(ctx context.Context) error {
	debug.Verbose("Button: watching pin %d (pull-up=%v, debounce=%v)", w.cfg.Pin, w.cfg.PullUp, w.cfg.Debounce)

	ticker := time.NewTicker(w.cfg.Poll)
	defer ticker.Stop()
	defer func() {
		_ = w.gpio.DetectEdge(w.cfg.Pin, gpio.NoEdge)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.poll(); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) poll() error {
	hit, err := w.gpio.EdgeDetected(w.cfg.Pin)
	if err != nil {
		return fmt.Errorf("button: read edge on pin %d: %w", w.cfg.Pin, err)
	}
	if !hit {
		return nil
	}

	now := w.now()
	if !w.last.IsZero() && now.Sub(w.last) < w.cfg.Debounce {
		debug.Trace("Button: bounce on pin %d ignored", w.cfg.Pin)
		return nil
	}
	w.last = now

	debug.Button(w.cfg.Pin)
	w.onPress()
	return nil
}
