package web

import (
	"bytes"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/hybridgroup/mjpeg"
)

// PreviewStream re-encodes live view frames as JPEG and serves them to
// browsers as a multipart MJPEG stream. It is a liveview sink.
type PreviewStream struct {
	stream  *mjpeg.Stream
	quality int
}

// NewPreviewStream returns an empty stream.
func NewPreviewStream() *PreviewStream {
	return &PreviewStream{
		stream:  mjpeg.NewStream(),
		quality: 75,
	}
}

// ShowFrame publishes img to every connected browser.
func (p *PreviewStream) ShowFrame(img image.Image) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return
	}
	p.stream.UpdateJPEG(buf.Bytes())
}

func (p *PreviewStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.stream.ServeHTTP(w, r)
}
