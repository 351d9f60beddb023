package gpio

import (
	"sync"

	"github.com/cjeanneret/MultiCam/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Pull selects the internal pull resistor of an input pin.
type Pull int

const (
	PullOff Pull = iota
	PullUp
	PullDown
)

// Edge selects which transitions are latched by edge detection.
type Edge int

const (
	NoEdge Edge = iota
	RiseEdge
	FallEdge
	AnyEdge
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	SetPull(pin int, pull Pull) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// DetectEdge arms (or with NoEdge disarms) edge latching on an input pin.
	DetectEdge(pin int, edge Edge) error
	// EdgeDetected reports whether an armed edge occurred since the last call,
	// clearing the latch.
	EdgeDetected(pin int) (bool, error)
	Close() error
}

// MockDriver is a test implementation that logs actions and keeps pin
// state in memory. Used for development on PC or testing.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
	edges  map[int]Edge
	latch  map[int]bool
	closed bool
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

// NewMockDriver returns an in-memory driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		levels: make(map[int]Level),
		edges:  make(map[int]Edge),
		latch:  make(map[int]bool),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) SetPull(pin int, pull Pull) error {
	debug.GPIO("SetPull", pin, pull)
	m.mu.Lock()
	defer m.mu.Unlock()
	if pull == PullUp {
		m.levels[pin] = High
	} else if pull == PullDown {
		m.levels[pin] = Low
	}
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) DetectEdge(pin int, edge Edge) error {
	debug.GPIO("DetectEdge", pin, edge)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[pin] = edge
	m.latch[pin] = false
	return nil
}

func (m *MockDriver) EdgeDetected(pin int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hit := m.latch[pin]
	m.latch[pin] = false
	return hit, nil
}

// Press simulates a button wired to ground: the pin goes Low then back High,
// latching a falling (and rising) edge if detection is armed.
func (m *MockDriver) Press(pin int) {
	debug.GPIO("Press", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.edges[pin] {
	case FallEdge, RiseEdge, AnyEdge:
		m.latch[pin] = true
	}
	m.levels[pin] = High
}

// Armed returns the edge detection currently configured on pin.
func (m *MockDriver) Armed(pin int) Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.edges[pin]
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
