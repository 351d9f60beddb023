package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/MultiCam/internal/hw/camera"
	"github.com/cjeanneret/MultiCam/internal/status"
)

// reportLog records status lines.
type reportLog struct {
	mu    sync.Mutex
	lines []string
	lvls  []string
}

func (r *reportLog) report(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lvls = append(r.lvls, level)
	r.lines = append(r.lines, msg)
}

var shotTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func newTestSequence(t *testing.T, opener camera.Opener, log *reportLog) *Sequence {
	t.Helper()
	return NewSequence(opener, Config{
		Directory:   t.TempDir(),
		CameraCount: 3,
		Still:       camera.StillConfig{WidthPx: 64, HeightPx: 48},
	}, log.report)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, filepath.Join("/home/sparky/multiimg", "cam2_20240309-140507.jpg"),
		FileName("/home/sparky/multiimg", 2, "20240309-140507"))
}

func TestSequence_AllCamerasSucceed(t *testing.T) {
	log := &reportLog{}
	mock := camera.NewMock()
	seq := newTestSequence(t, mock, log)

	res := seq.Run(context.Background(), shotTime)

	require.True(t, res.Success(), "err: %v", res.Err)
	assert.Equal(t, "20240309-140507", res.Timestamp)
	require.Len(t, res.Files, 3)
	for i, f := range res.Files {
		assert.Equal(t, FileName(seq.Directory(), i, res.Timestamp), f)
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{
		"Picture 1 taken successfully",
		"Picture 2 taken successfully",
		"Picture 3 taken successfully",
	}, log.lines)
	assert.Equal(t, []int{0, 1, 2}, mock.Opened())
	assert.Zero(t, mock.OpenHandles())
}

func TestSequence_OpenFailureAbortsRemaining(t *testing.T) {
	log := &reportLog{}
	mock := camera.NewMock(1)
	seq := newTestSequence(t, mock, log)

	res := seq.Run(context.Background(), shotTime)

	require.False(t, res.Success())
	var camErr *CameraError
	require.ErrorAs(t, res.Err, &camErr)
	assert.Equal(t, 1, camErr.Index)
	assert.ErrorIs(t, res.Err, camera.ErrNotDetected)

	assert.Len(t, res.Files, 1)
	assert.Equal(t, []int{0}, mock.Opened(), "camera 2 must not be opened after camera 1 failed")
	require.Len(t, log.lines, 2)
	assert.Equal(t, "Picture 1 taken successfully", log.lines[0])
	assert.Equal(t, "Error capturing picture from camera 1: index 1: camera not detected", log.lines[1])
	assert.Equal(t, status.LevelError, log.lvls[1])
}

func TestSequence_CaptureFailureClosesCamera(t *testing.T) {
	log := &reportLog{}
	mock := camera.NewMock()
	boom := errors.New("sensor timeout")
	mock.FailCapture(0, boom)
	seq := newTestSequence(t, mock, log)

	res := seq.Run(context.Background(), shotTime)

	assert.ErrorIs(t, res.Err, boom)
	assert.Empty(t, res.Files)
	assert.Zero(t, mock.OpenHandles(), "failed camera must be closed")
	assert.Equal(t, []string{"Error capturing picture from camera 0: sensor timeout"}, log.lines)
}

func TestSequence_CancelledContext(t *testing.T) {
	mock := camera.NewMock()
	seq := newTestSequence(t, mock, &reportLog{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := seq.Run(ctx, shotTime)

	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, mock.Opened())
}

func TestSequence_CameraCount(t *testing.T) {
	mock := camera.NewMock()
	seq := NewSequence(mock, Config{
		Directory:   t.TempDir(),
		CameraCount: 1,
		Still:       camera.StillConfig{WidthPx: 16, HeightPx: 16},
	}, nil)

	res := seq.Run(context.Background(), shotTime)
	require.True(t, res.Success())
	assert.Len(t, res.Files, 1)
}

func TestSequence_CustomTimestampLayout(t *testing.T) {
	seq := NewSequence(camera.NewMock(), Config{
		Directory:       t.TempDir(),
		CameraCount:     1,
		Still:           camera.StillConfig{WidthPx: 16, HeightPx: 16},
		TimestampLayout: "2006-01-02T150405",
	}, nil)

	res := seq.Run(context.Background(), shotTime)
	assert.Equal(t, "2024-03-09T140507", res.Timestamp)
}
