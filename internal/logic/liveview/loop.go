// Package liveview redraws the preview from the live camera on a fixed
// interval and hands every frame to the surfaces showing it.
package liveview

import (
	"errors"
	"image"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/cjeanneret/MultiCam/internal/debug"
	"github.com/cjeanneret/MultiCam/internal/hw/preview"
)

// Sink receives preview frames. ShowFrame is called from the loop goroutine
// and must not block for long.
type Sink interface {
	ShowFrame(img image.Image)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(img image.Image)

func (f SinkFunc) ShowFrame(img image.Image) { f(img) }

// Loop polls a preview source on a ticker.
type Loop struct {
	src      preview.Source
	interval time.Duration
	size     image.Rectangle

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	latest  image.Image
	sinks   []Sink
	frames  uint64
}

// New creates a stopped loop that scales frames to width x height.
func New(src preview.Source, interval time.Duration, width, height int) *Loop {
	return &Loop{
		src:      src,
		interval: interval,
		size:     image.Rect(0, 0, width, height),
	}
}

// AddSink registers a frame consumer.
func (l *Loop) AddSink(s Sink) {
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

// Start opens the source if needed and starts the redraw timer.
// Starting a running loop is a no-op.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	if !l.src.IsOpened() {
		if err := l.src.Open(); err != nil {
			return err
		}
	}

	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.running = true
	go l.run(l.stop, l.done)

	debug.Verbose("Preview: started (%v interval)", l.interval)
	return nil
}

// Stop halts the redraw timer and releases the camera handle so another
// process can use the device.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return l.src.Release()
	}
	stop, done := l.stop, l.done
	l.running = false
	l.mu.Unlock()

	close(stop)
	<-done

	debug.Verbose("Preview: stopped")
	return l.src.Release()
}

// Running reports whether the redraw timer is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Latest returns the most recent scaled frame, or nil.
func (l *Loop) Latest() image.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest
}

func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

// tick reads one frame. A missing frame leaves the previous one on screen.
func (l *Loop) tick() {
	img, err := l.src.Read()
	if err != nil {
		if !errors.Is(err, preview.ErrNoFrame) {
			debug.Trace("Preview: %v", err)
		}
		return
	}
	img = l.scale(img)

	l.mu.Lock()
	l.latest = img
	l.frames++
	n := l.frames
	sinks := append([]Sink(nil), l.sinks...)
	l.mu.Unlock()

	debug.Frame(n)
	for _, s := range sinks {
		s.ShowFrame(img)
	}
}

func (l *Loop) scale(img image.Image) image.Image {
	if l.size.Empty() || img.Bounds().Size() == l.size.Size() {
		return img
	}
	dst := image.NewRGBA(l.size)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
