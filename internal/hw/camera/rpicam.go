package camera

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/MultiCam/internal/debug"
)

// runFunc executes a command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RPiCam opens Raspberry Pi CSI cameras through the rpicam-apps still tool
// (rpicam-still, or libcamera-still on older images).
type RPiCam struct {
	command string
	timeout time.Duration
	run     runFunc

	mu       sync.Mutex
	detected map[int]string // index -> sensor description
}

// NewRPiCam returns an opener using command with a per-shot timeout.
func NewRPiCam(command string, timeout time.Duration) *RPiCam {
	if command == "" {
		command = "rpicam-still"
	}
	return &RPiCam{
		command: command,
		timeout: timeout,
		run:     execRun,
	}
}

// listLine matches "0 : imx219 [3280x2464 10-bit RGGB] (/base/soc/...)".
var listLine = regexp.MustCompile(`^\s*(\d+)\s*:\s*(.+)$`)

// ListCameras asks the still tool which cameras are attached.
func (r *RPiCam) ListCameras(ctx context.Context) (map[int]string, error) {
	out, err := r.run(ctx, r.command, "--list-cameras")
	if err != nil {
		return nil, fmt.Errorf("%s --list-cameras: %w (output: %s)", r.command, err, strings.TrimSpace(string(out)))
	}

	found := make(map[int]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := listLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found[idx] = strings.TrimSpace(m[2])
	}
	return found, nil
}

// Open checks that index is attached and returns a handle for it. The
// camera list is cached and refreshed when index is not in it.
func (r *RPiCam) Open(ctx context.Context, index int) (Still, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.detected[index]; !ok {
		found, err := r.ListCameras(ctx)
		if err != nil {
			return nil, err
		}
		r.detected = found
	}
	desc, ok := r.detected[index]
	if !ok {
		return nil, fmt.Errorf("index %d: %w", index, ErrNotDetected)
	}

	debug.Verbose("Camera %d: opened (%s)", index, desc)
	return &rpiStill{owner: r, index: index}, nil
}

type rpiStill struct {
	owner   *RPiCam
	index   int
	cfg     StillConfig
	started bool
	closed  bool
}

func (s *rpiStill) Configure(cfg StillConfig) error {
	if s.closed {
		return fmt.Errorf("camera %d: configure after close", s.index)
	}
	if cfg.WidthPx <= 0 || cfg.HeightPx <= 0 {
		return fmt.Errorf("camera %d: invalid still size %dx%d", s.index, cfg.WidthPx, cfg.HeightPx)
	}
	s.cfg = cfg
	return nil
}

func (s *rpiStill) Start(_ context.Context) error {
	if s.closed {
		return fmt.Errorf("camera %d: start after close", s.index)
	}
	if s.cfg.WidthPx == 0 {
		return fmt.Errorf("camera %d: start before configure", s.index)
	}
	s.started = true
	return nil
}

// args builds the still tool command line for path.
func (s *rpiStill) args(path string) []string {
	return []string{
		"--camera", strconv.Itoa(s.index),
		"--width", strconv.Itoa(s.cfg.WidthPx),
		"--height", strconv.Itoa(s.cfg.HeightPx),
		"--nopreview",
		"--immediate",
		"-t", "1",
		"-o", path,
	}
}

func (s *rpiStill) CaptureFile(ctx context.Context, path string) error {
	if !s.started {
		return fmt.Errorf("camera %d: capture before start", s.index)
	}
	if s.owner.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.owner.timeout)
		defer cancel()
	}

	args := s.args(path)
	debug.Verbose("Camera %d: %s %s", s.index, s.owner.command, strings.Join(args, " "))
	out, err := s.owner.run(ctx, s.owner.command, args...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("camera %d: capture timed out: %w", s.index, ctx.Err())
		}
		return fmt.Errorf("camera %d: %s failed: %w (output: %s)", s.index, s.owner.command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *rpiStill) Stop() error {
	s.started = false
	return nil
}

func (s *rpiStill) Close() error {
	if !s.closed {
		debug.Trace("Camera %d: closed", s.index)
	}
	s.closed = true
	s.started = false
	return nil
}
