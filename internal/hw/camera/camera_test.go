package camera

import (
	"context"
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// scriptedRun records invocations and returns canned output.
type scriptedRun struct {
	calls  [][]string
	list   string
	err    error
	output string
}

func (s *scriptedRun) run(_ context.Context, name string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	if len(args) == 1 && args[0] == "--list-cameras" {
		return []byte(s.list), nil
	}
	return []byte(s.output), s.err
}

const threeCameras = `Available cameras
-----------------
0 : imx219 [3280x2464 10-bit RGGB] (/base/soc/i2c0mux/i2c@1/imx219@10)
    Modes: 'SRGGB10_CSI2P' : 640x480 [206.65 fps - (1000, 752)/1280x960 crop]
1 : imx219 [3280x2464 10-bit RGGB] (/base/soc/i2c0mux/i2c@0/imx219@10)
2 : ov5647 [2592x1944 10-bit GBRG] (/base/axi/pcie@120000/rp1/i2c@80000/ov5647@36)
`

func newScripted(list string) (*RPiCam, *scriptedRun) {
	s := &scriptedRun{list: list}
	r := NewRPiCam("rpicam-still", time.Second)
	r.run = s.run
	return r, s
}

func TestRPiCam_ListCameras(t *testing.T) {
	r, _ := newScripted(threeCameras)
	found, err := r.ListCameras(context.Background())
	if err != nil {
		t.Fatalf("ListCameras: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("found %d cameras, want 3: %v", len(found), found)
	}
	if !strings.HasPrefix(found[2], "ov5647") {
		t.Errorf("camera 2 = %q, want ov5647...", found[2])
	}
}

func TestRPiCam_OpenMissingIndex(t *testing.T) {
	r, _ := newScripted("0 : imx219 [3280x2464]\n")
	_, err := r.Open(context.Background(), 1)
	if !errors.Is(err, ErrNotDetected) {
		t.Fatalf("Open(1) err = %v, want ErrNotDetected", err)
	}
}

func TestRPiCam_ShotCommandLine(t *testing.T) {
	r, s := newScripted(threeCameras)
	ctx := context.Background()

	cam, err := r.Open(ctx, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cam.Close()
	if err := cam.Configure(StillConfig{WidthPx: 3280, HeightPx: 2464}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := cam.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := cam.CaptureFile(ctx, "/tmp/cam1_x.jpg"); err != nil {
		t.Fatalf("CaptureFile: %v", err)
	}

	got := strings.Join(s.calls[len(s.calls)-1], " ")
	want := "rpicam-still --camera 1 --width 3280 --height 2464 --nopreview --immediate -t 1 -o /tmp/cam1_x.jpg"
	if got != want {
		t.Errorf("command = %q\nwant      %q", got, want)
	}
}

func TestRPiCam_ListIsCached(t *testing.T) {
	r, s := newScripted(threeCameras)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		cam, err := r.Open(ctx, i)
		if err != nil {
			t.Fatalf("Open(%d): %v", i, err)
		}
		cam.Close()
	}
	if len(s.calls) != 1 {
		t.Errorf("expected a single --list-cameras call, got %d", len(s.calls))
	}
}

func TestRPiCam_CaptureErrorIncludesOutput(t *testing.T) {
	r, s := newScripted(threeCameras)
	s.err = errors.New("exit status 255")
	s.output = "ERROR: *** failed to acquire camera ***"
	ctx := context.Background()

	cam, _ := r.Open(ctx, 0)
	_ = cam.Configure(StillConfig{WidthPx: 640, HeightPx: 480})
	_ = cam.Start(ctx)
	err := cam.CaptureFile(ctx, "/tmp/x.jpg")
	if err == nil || !strings.Contains(err.Error(), "failed to acquire camera") {
		t.Errorf("err = %v, want tool output included", err)
	}
}

func TestRPiCam_StateChecks(t *testing.T) {
	r, _ := newScripted(threeCameras)
	ctx := context.Background()
	cam, _ := r.Open(ctx, 0)

	if err := cam.Start(ctx); err == nil {
		t.Error("Start before Configure should fail")
	}
	if err := cam.CaptureFile(ctx, "/tmp/x.jpg"); err == nil {
		t.Error("CaptureFile before Start should fail")
	}
	if err := cam.Configure(StillConfig{}); err == nil {
		t.Error("Configure with zero size should fail")
	}
	_ = cam.Close()
	if err := cam.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestMock_WritesDecodableJPEG(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cam0.jpg")

	cam, err := m.Open(ctx, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = cam.Configure(StillConfig{WidthPx: 3280, HeightPx: 2464})
	_ = cam.Start(ctx)
	if err := cam.CaptureFile(ctx, path); err != nil {
		t.Fatalf("CaptureFile: %v", err)
	}
	_ = cam.Stop()
	_ = cam.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != mockMaxWidth {
		t.Errorf("width = %d, want %d", cfg.Width, mockMaxWidth)
	}
	if m.OpenHandles() != 0 {
		t.Errorf("OpenHandles = %d, want 0", m.OpenHandles())
	}
}

func TestMock_Failures(t *testing.T) {
	m := NewMock(2)
	ctx := context.Background()

	if _, err := m.Open(ctx, 2); !errors.Is(err, ErrNotDetected) {
		t.Errorf("Open(2) err = %v, want ErrNotDetected", err)
	}

	boom := errors.New("sensor timeout")
	m.FailCapture(1, boom)
	cam, _ := m.Open(ctx, 1)
	_ = cam.Configure(StillConfig{WidthPx: 64, HeightPx: 48})
	_ = cam.Start(ctx)
	if err := cam.CaptureFile(ctx, filepath.Join(t.TempDir(), "x.jpg")); !errors.Is(err, boom) {
		t.Errorf("CaptureFile err = %v, want %v", err, boom)
	}
	_ = cam.Close()

	if got := m.Opened(); len(got) != 1 || got[0] != 1 {
		t.Errorf("Opened = %v, want [1]", got)
	}
}
