package preview

import (
	"errors"
	"image"
	"image/color"
	"sync"
)

// Mock renders a scrolling colour-bar pattern. Used for development on PC
// and in tests.
type Mock struct {
	width  int
	height int

	mu       sync.Mutex
	opened   bool
	tick     int
	opens    int
	releases int
	failOpen bool
}

// NewMock returns an unopened mock source.
func NewMock(width, height int) *Mock {
	return &Mock{width: width, height: height}
}

// FailOpen makes subsequent Open calls fail.
func (m *Mock) FailOpen(fail bool) {
	m.mu.Lock()
	m.failOpen = fail
	m.mu.Unlock()
}

// Counts returns how many times the handle was opened and released.
func (m *Mock) Counts() (opens, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.releases
}

func (m *Mock) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOpen {
		return errors.New("could not open USB camera (mock)")
	}
	if !m.opened {
		m.opened = true
		m.opens++
	}
	return nil
}

var bars = []color.RGBA{
	{255, 255, 255, 255}, {255, 255, 0, 255}, {0, 255, 255, 255}, {0, 255, 0, 255},
	{255, 0, 255, 255}, {255, 0, 0, 255}, {0, 0, 255, 255}, {0, 0, 0, 255},
}

func (m *Mock) Read() (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return nil, ErrNotOpen
	}
	m.tick++

	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	barW := m.width / len(bars)
	if barW == 0 {
		barW = 1
	}
	for x := 0; x < m.width; x++ {
		c := bars[((x+m.tick)/barW)%len(bars)]
		for y := 0; y < m.height; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (m *Mock) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opened {
		m.opened = false
		m.releases++
	}
	return nil
}

func (m *Mock) IsOpened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}
