package preview

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/blackjack/webcam"
	"github.com/disintegration/imaging"

	"github.com/cjeanneret/MultiCam/internal/debug"
)

// fourccMJPEG is the V4L2 pixel format code for Motion-JPEG ('MJPG').
const fourccMJPEG webcam.PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24

// frameTimeoutSec bounds WaitForFrame so a stalled device cannot hang a tick.
const frameTimeoutSec = 1

// V4L2 reads MJPEG frames straight from a V4L2 device node, for systems
// without OpenCV.
type V4L2 struct {
	path   string
	width  int
	height int

	mu  sync.Mutex
	cam *webcam.Webcam
}

// NewV4L2 returns an unopened source for a device node such as /dev/video0.
func NewV4L2(path string, width, height int) *V4L2 {
	return &V4L2{path: path, width: width, height: height}
}

// pickMJPEG finds the device's MJPEG format.
func pickMJPEG(formats map[webcam.PixelFormat]string) (webcam.PixelFormat, bool) {
	if _, ok := formats[fourccMJPEG]; ok {
		return fourccMJPEG, true
	}
	for f, desc := range formats {
		d := strings.ToLower(desc)
		if strings.Contains(d, "mjpeg") || strings.Contains(d, "motion-jpeg") {
			return f, true
		}
	}
	return 0, false
}

func (v *V4L2) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cam != nil {
		return nil
	}

	cam, err := webcam.Open(v.path)
	if err != nil {
		return fmt.Errorf("could not open USB camera %s: %w", v.path, err)
	}

	format, ok := pickMJPEG(cam.GetSupportedFormats())
	if !ok {
		cam.Close()
		return fmt.Errorf("%s: device does not offer MJPEG", v.path)
	}
	_, w, h, err := cam.SetImageFormat(format, uint32(v.width), uint32(v.height))
	if err != nil {
		cam.Close()
		return fmt.Errorf("%s: set format: %w", v.path, err)
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return fmt.Errorf("%s: start streaming: %w", v.path, err)
	}

	v.cam = cam
	debug.Verbose("Preview: opened %s (MJPEG %dx%d)", v.path, w, h)
	return nil
}

func (v *V4L2) Read() (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cam == nil {
		return nil, ErrNotOpen
	}

	err := v.cam.WaitForFrame(frameTimeoutSec)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, ErrNoFrame
	default:
		return nil, fmt.Errorf("%s: wait for frame: %w", v.path, err)
	}

	frame, err := v.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("%s: read frame: %w", v.path, err)
	}
	if len(frame) == 0 {
		return nil, ErrNoFrame
	}
	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%s: decode frame: %w", v.path, err)
	}
	return img, nil
}

func (v *V4L2) Release() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cam == nil {
		return nil
	}
	_ = v.cam.StopStreaming()
	err := v.cam.Close()
	v.cam = nil
	debug.Verbose("Preview: released %s", v.path)
	return err
}

func (v *V4L2) IsOpened() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cam != nil
}
