package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cjeanneret/MultiCam/internal/debug"
	"github.com/cjeanneret/MultiCam/internal/status"
)

// ErrBusy is returned by Trigger while a capture is running.
var ErrBusy = errors.New("capture already in progress")

// ErrClosed is returned by Trigger after Close.
var ErrClosed = errors.New("capture controller closed")

// Preview is the live view that must let go of the camera during a capture.
type Preview interface {
	Start() error
	Stop() error
}

// Controller serialises capture requests from every trigger (window button,
// GPIO button, web UI) and runs them off the caller's goroutine.
type Controller struct {
	seq        *Sequence
	preview    Preview
	status     *status.Broadcaster
	readyDelay time.Duration
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	busy   bool
	closed bool
	last   *Result
}

// NewController creates the capture directory and returns a ready
// controller. preview may be nil when no live view runs.
func NewController(seq *Sequence, preview Preview, st *status.Broadcaster, readyDelay time.Duration) (*Controller, error) {
	if err := seq.EnsureDirectory(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		seq:        seq,
		preview:    preview,
		status:     st,
		readyDelay: readyDelay,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Trigger starts a capture in the background. It returns ErrBusy if one is
// already running.
func (c *Controller) Trigger(source string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy {
		c.mu.Unlock()
		debug.Verbose("Capture request from %s ignored: busy", source)
		return ErrBusy
	}
	c.busy = true
	c.wg.Add(1)
	c.mu.Unlock()

	debug.Live("Capture requested (%s)", source)
	c.status.Set(status.LevelInfo, status.Taking)

	go c.run()
	return nil
}

func (c *Controller) run() {
	defer c.wg.Done()

	if c.preview != nil {
		if err := c.preview.Stop(); err != nil {
			debug.Error(err)
		}
	}

	res := c.seq.Run(c.ctx, c.now())

	if c.preview != nil && c.ctx.Err() == nil {
		if err := c.preview.Start(); err != nil {
			debug.Error(err)
		}
	}

	c.mu.Lock()
	c.busy = false
	c.last = &res
	c.mu.Unlock()

	if res.Success() {
		debug.Info("Capture %s complete: %d pictures", res.Timestamp, len(res.Files))
	} else {
		debug.Error(res.Err)
	}
	c.status.SetAfter(c.readyDelay, status.LevelInfo, status.Ready)
}

// Busy reports whether a capture is running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Last returns the result of the most recent completed capture.
func (c *Controller) Last() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// Directory returns where pictures are written.
func (c *Controller) Directory() string { return c.seq.Directory() }

// Wait blocks until the running capture, if any, has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close refuses further triggers, cancels a running capture between
// cameras, and waits for it to release its camera.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
