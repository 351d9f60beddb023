package preview

import (
	"testing"

	"github.com/blackjack/webcam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/MultiCam/internal/config"
)

func TestNew_SelectsBackend(t *testing.T) {
	cfg := config.Default()

	cases := map[string]interface{}{
		config.PreviewGoCV: &GoCV{},
		config.PreviewV4L2: &V4L2{},
		config.PreviewMock: &Mock{},
	}
	for backend, want := range cases {
		cfg.Preview.Backend = backend
		src, err := New(cfg)
		require.NoError(t, err, backend)
		assert.IsType(t, want, src, backend)
	}

	cfg.Preview.Backend = "directshow"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestMock_Lifecycle(t *testing.T) {
	m := NewMock(32, 24)

	_, err := m.Read()
	assert.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, m.Open())
	require.NoError(t, m.Open(), "reopening an open handle is a no-op")
	assert.True(t, m.IsOpened())

	img, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())

	require.NoError(t, m.Release())
	require.NoError(t, m.Release())
	assert.False(t, m.IsOpened())

	opens, releases := m.Counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, releases)
}

func TestMock_FailOpen(t *testing.T) {
	m := NewMock(8, 8)
	m.FailOpen(true)
	assert.Error(t, m.Open())
	assert.False(t, m.IsOpened())
}

func TestPickMJPEG(t *testing.T) {
	f, ok := pickMJPEG(map[webcam.PixelFormat]string{
		0x56595559: "YUYV 4:2:2",
		fourccMJPEG: "Motion-JPEG",
	})
	require.True(t, ok)
	assert.Equal(t, fourccMJPEG, f)

	f, ok = pickMJPEG(map[webcam.PixelFormat]string{
		0x12345678: "Compressed MJPEG (vendor)",
	})
	require.True(t, ok)
	assert.Equal(t, webcam.PixelFormat(0x12345678), f)

	_, ok = pickMJPEG(map[webcam.PixelFormat]string{0x56595559: "YUYV 4:2:2"})
	assert.False(t, ok)
}

func TestUnopenedHandles(t *testing.T) {
	for _, src := range []Source{NewGoCV(0, 320, 240), NewV4L2("/dev/video0", 320, 240)} {
		assert.False(t, src.IsOpened())
		_, err := src.Read()
		assert.ErrorIs(t, err, ErrNotOpen)
		assert.NoError(t, src.Release())
	}
}
