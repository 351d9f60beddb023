package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cjeanneret/MultiCam/internal/debug"
)

// mockMaxWidth caps rendered mock stills so development runs stay fast.
const mockMaxWidth = 640

// Mock is an Opener whose cameras render a labelled test card instead of
// talking to hardware. Used for development on PC and in tests.
type Mock struct {
	mu       sync.Mutex
	failOpen map[int]error
	failShot map[int]error
	opened   []int
	open     int // handles not yet closed
}

// NewMock returns a Mock opener. Cameras listed in failing fail to open.
func NewMock(failing ...int) *Mock {
	m := &Mock{
		failOpen: make(map[int]error),
		failShot: make(map[int]error),
	}
	for _, idx := range failing {
		m.failOpen[idx] = fmt.Errorf("index %d: %w", idx, ErrNotDetected)
	}
	return m
}

// FailOpen makes Open(index) return err.
func (m *Mock) FailOpen(index int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen[index] = err
}

// FailCapture makes CaptureFile on camera index return err.
func (m *Mock) FailCapture(index int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failShot[index] = err
}

// Opened returns the indexes successfully opened, in order.
func (m *Mock) Opened() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.opened...)
}

// OpenHandles returns how many opened handles have not been closed.
func (m *Mock) OpenHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *Mock) Open(_ context.Context, index int) (Still, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOpen[index]; err != nil {
		return nil, err
	}
	m.opened = append(m.opened, index)
	m.open++
	debug.Verbose("Camera %d: opened (mock)", index)
	return &mockStill{owner: m, index: index}, nil
}

type mockStill struct {
	owner   *Mock
	index   int
	cfg     StillConfig
	started bool
	closed  bool
}

func (s *mockStill) Configure(cfg StillConfig) error {
	if cfg.WidthPx <= 0 || cfg.HeightPx <= 0 {
		return fmt.Errorf("camera %d: invalid still size %dx%d", s.index, cfg.WidthPx, cfg.HeightPx)
	}
	s.cfg = cfg
	return nil
}

func (s *mockStill) Start(_ context.Context) error {
	if s.closed {
		return fmt.Errorf("camera %d: start after close", s.index)
	}
	s.started = true
	return nil
}

func (s *mockStill) CaptureFile(ctx context.Context, path string) error {
	if !s.started {
		return fmt.Errorf("camera %d: capture before start", s.index)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.owner.mu.Lock()
	err := s.owner.failShot[s.index]
	s.owner.mu.Unlock()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("camera %d: %w", s.index, err)
	}
	if err := imaging.Encode(f, s.render(), imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		f.Close()
		return fmt.Errorf("camera %d: encode: %w", s.index, err)
	}
	return f.Close()
}

// render draws a flat card with the camera index, scaled down to mockMaxWidth.
func (s *mockStill) render() image.Image {
	w, h := s.cfg.WidthPx, s.cfg.HeightPx
	if w > mockMaxWidth {
		h = h * mockMaxWidth / w
		w = mockMaxWidth
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := color.RGBA{R: uint8(40 + 70*s.index), G: 60, B: 90, A: 255}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 20),
	}
	d.DrawString(fmt.Sprintf("cam%d %dx%d", s.index, s.cfg.WidthPx, s.cfg.HeightPx))
	return img
}

func (s *mockStill) Stop() error {
	s.started = false
	return nil
}

func (s *mockStill) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.owner.mu.Lock()
	s.owner.open--
	s.owner.mu.Unlock()
	return nil
}
