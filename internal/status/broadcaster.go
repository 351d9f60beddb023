// Package status carries the user-facing status line ("Camera is ready",
// "Taking images...", per-camera results) from the capture worker to every
// surface that displays it.
package status

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Levels
const (
	LevelInfo  = "info"
	LevelError = "error"
	LevelLog   = "log"
)

// Well-known messages.
const (
	Ready  = "Camera is ready"
	Taking = "Taking images..."
)

// Event is a single status message.
type Event struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// Broadcaster distributes status events to multiple subscribers and
// remembers the current status line.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	current Event
	pending *time.Timer
	now     func() time.Time
}

// NewBroadcaster creates a broadcaster whose current status is Ready.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		clients: make(map[chan string]struct{}),
		now:     time.Now,
	}
	b.current = b.event(LevelInfo, Ready)
	return b
}

func (b *Broadcaster) event(level, msg string) Event {
	return Event{
		Time:  b.now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Broadcast sends a message to all subscribed clients.
// Messages are sent as JSON: {"t":"...","l":"info","msg":"..."}
// Slow clients may miss messages (non-blocking, buffered).
// Log-level messages are delivered but do not replace the current status.
func (b *Broadcaster) Broadcast(level, msg string) {
	evt := b.event(level, msg)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	if level != LevelLog {
		b.current = evt
	}
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Set replaces the status line and cancels any pending SetAfter.
func (b *Broadcaster) Set(level, msg string) {
	b.cancelPending()
	b.Broadcast(level, msg)
}

// SetAfter publishes the status line after d, replacing any earlier pending
// one. A Set in the meantime cancels it.
func (b *Broadcaster) SetAfter(d time.Duration, level, msg string) {
	b.mu.Lock()
	if b.pending != nil {
		b.pending.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		b.mu.Lock()
		if b.pending != t {
			b.mu.Unlock()
			return
		}
		b.pending = nil
		b.mu.Unlock()
		b.Broadcast(level, msg)
	})
	b.pending = t
	b.mu.Unlock()
}

func (b *Broadcaster) cancelPending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
}

// Current returns the latest status line.
func (b *Broadcaster) Current() Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Writer implements io.Writer; each Write broadcasts the content at log level.
func Writer(b *Broadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps Broadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *Broadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.Broadcast(LevelLog, msg)
	}
	return len(p), nil
}
