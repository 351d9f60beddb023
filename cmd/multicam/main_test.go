package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cjeanneret/MultiCam/internal/config"
	"github.com/cjeanneret/MultiCam/internal/hw/camera"
	"github.com/cjeanneret/MultiCam/internal/logic/capture"
)

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	for _, input := range []string{"0", "65536", "-1", "abc", "8080.5"} {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

func TestResolveWebPort(t *testing.T) {
	cfg := config.Default()
	if got := resolveWebPort(0, cfg); got != 0 {
		t.Errorf("no flag, no config: got %d, want 0", got)
	}
	cfg.UI.WebPort = 8090
	if got := resolveWebPort(0, cfg); got != 8090 {
		t.Errorf("config port: got %d, want 8090", got)
	}
	if got := resolveWebPort(9000, cfg); got != 9000 {
		t.Errorf("flag should win: got %d, want 9000", got)
	}
}

// ---------- wiring helpers ----------

func TestNewStillOpener(t *testing.T) {
	cfg := config.Default()

	o, err := newStillOpener(cfg)
	if err != nil {
		t.Fatalf("rpicam: %v", err)
	}
	if _, ok := o.(*camera.RPiCam); !ok {
		t.Errorf("rpicam: got %T, want *camera.RPiCam", o)
	}

	cfg.Capture.Type = config.CaptureMock
	o, err = newStillOpener(cfg)
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	if _, ok := o.(*camera.Mock); !ok {
		t.Errorf("mock: got %T, want *camera.Mock", o)
	}

	cfg.Capture.Type = "dslr"
	if _, err := newStillOpener(cfg); err == nil {
		t.Error("expected error for unsupported capture type")
	}
}

func TestButtonConfig(t *testing.T) {
	cfg := config.Default()
	bc := buttonConfig(cfg)
	if bc.Pin != 21 || !bc.PullUp {
		t.Errorf("button config = %+v, want pin 21 with pull-up", bc)
	}
	if bc.Debounce != 50*time.Millisecond {
		t.Errorf("debounce = %v, want 50ms", bc.Debounce)
	}
}

// ---------- runSnap ----------

func newMockSequence(t *testing.T, failing ...int) (*capture.Sequence, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Capture.Type = config.CaptureMock
	cfg.Capture.FailCameras = failing
	cfg.Capture.Directory = filepath.Join(t.TempDir(), "multiimg")
	cfg.Capture.WidthPx, cfg.Capture.HeightPx = 64, 48

	o, err := newStillOpener(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return capture.NewSequence(o, captureConfig(cfg), nil), cfg.Capture.Directory
}

func TestRunSnap_WritesAllCameras(t *testing.T) {
	seq, dir := newMockSequence(t)
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

	if err := runSnap(context.Background(), seq, at); err != nil {
		t.Fatalf("runSnap: %v", err)
	}
	for i := 0; i < config.MaxCameras; i++ {
		path := capture.FileName(dir, i, "20240309-140507")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("camera %d: %v", i, err)
		}
	}
}

func TestRunSnap_ReportsFailedCamera(t *testing.T) {
	seq, _ := newMockSequence(t, 1)

	err := runSnap(context.Background(), seq, time.Now())
	var camErr *capture.CameraError
	if !errors.As(err, &camErr) {
		t.Fatalf("err = %v, want *capture.CameraError", err)
	}
	if camErr.Index != 1 {
		t.Errorf("failed camera = %d, want 1", camErr.Index)
	}
}

// ---------- triggerFrom ----------

type recordingCapturer struct {
	err   error
	calls []string
}

func (r *recordingCapturer) Trigger(source string) error {
	r.calls = append(r.calls, source)
	return r.err
}

func TestTriggerFrom(t *testing.T) {
	rc := &recordingCapturer{err: capture.ErrBusy}
	triggerFrom(rc, "button")
	if len(rc.calls) != 1 || rc.calls[0] != "button" {
		t.Errorf("calls = %v, want [button]", rc.calls)
	}
}
