package preview

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/MultiCam/internal/debug"
)

// GoCV reads the live view through OpenCV's VideoCapture.
type GoCV struct {
	index  int
	width  int
	height int

	mu  sync.Mutex
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

// NewGoCV returns an unopened OpenCV source for device index.
func NewGoCV(index, width, height int) *GoCV {
	return &GoCV{index: index, width: width, height: height}
}

func (g *GoCV) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.vc != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(g.index)
	if err != nil {
		return fmt.Errorf("could not open USB camera %d: %w", g.index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("could not open USB camera %d", g.index)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(g.width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(g.height))

	g.vc = vc
	g.mat = gocv.NewMat()
	debug.Verbose("Preview: opened OpenCV device %d at %dx%d", g.index, g.width, g.height)
	return nil
}

func (g *GoCV) Read() (image.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.vc == nil {
		return nil, ErrNotOpen
	}
	if ok := g.vc.Read(&g.mat); !ok || g.mat.Empty() {
		return nil, ErrNoFrame
	}
	// ToImage converts OpenCV's BGR layout to RGBA.
	img, err := g.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("preview: convert frame: %w", err)
	}
	return img, nil
}

func (g *GoCV) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.vc == nil {
		return nil
	}
	err := g.vc.Close()
	g.mat.Close()
	g.vc = nil
	debug.Verbose("Preview: released OpenCV device %d", g.index)
	return err
}

func (g *GoCV) IsOpened() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.vc != nil && g.vc.IsOpened()
}
