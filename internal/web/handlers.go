package web

import (
	"encoding/json"
	"errors"
	"image"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/cjeanneret/MultiCam/internal/logic/capture"
	"github.com/cjeanneret/MultiCam/internal/status"
)

// SnapCooldown is the minimum time between two accepted POST /snap requests.
const SnapCooldown = time.Second

// maxCaptureList caps the number of entries returned by GET /captures.
const maxCaptureList = 200

// Capturer starts captures; implemented by *capture.Controller.
type Capturer interface {
	Trigger(source string) error
	Busy() bool
	Directory() string
}

// CaptureInfo describes one picture on disk.
type CaptureInfo struct {
	Name     string    `json:"name"`
	Camera   int       `json:"camera"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Busy    bool   `json:"busy"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Status    *status.Broadcaster
	Capture   Capturer
	Preview   http.Handler
	ThumbSize int
	staticFS  fs.FS

	snapMu   sync.Mutex
	lastSnap time.Time
	now      func() time.Time
}

// NewHandlers creates handlers with the given dependencies.
// If capturer is nil, POST /snap returns 503 Service Unavailable.
// If preview is nil, GET /preview.mjpeg returns 404.
func NewHandlers(st *status.Broadcaster, capturer Capturer, preview http.Handler, staticFS fs.FS) *Handlers {
	return &Handlers{
		Status:    st,
		Capture:   capturer,
		Preview:   preview,
		ThumbSize: 320,
		staticFS:  staticFS,
		now:       time.Now,
	}
}

// captureName matches files written by the capture sequence: cam<i>_<timestamp>.jpg
var captureName = regexp.MustCompile(`^cam([0-9])_([0-9A-Za-z_-]+)\.jpg$`)

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleSnap handles POST /snap to start a capture.
func (h *Handlers) HandleSnap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Capture == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return
	}

	h.snapMu.Lock()
	now := h.now()
	if !h.lastSnap.IsZero() && now.Sub(h.lastSnap) < SnapCooldown {
		h.snapMu.Unlock()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	h.lastSnap = now
	h.snapMu.Unlock()

	switch err := h.Capture.Trigger("web"); {
	case errors.Is(err, capture.ErrBusy):
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	case errors.Is(err, capture.ErrClosed):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	case err != nil:
		log.Printf("snap failed: %v", err)
		http.Error(w, "capture failed to start", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleStatus returns the busy flag and the current status line as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cur := h.Status.Current()
	resp := StatusResponse{Level: cur.Level, Message: cur.Msg}
	if h.Capture != nil {
		resp.Busy = h.Capture.Busy()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Status.Subscribe()
	defer unsub()

	// Send the current status so a new page shows the right label at once
	w.Write([]byte(": connected\n\n"))
	if cur, err := json.Marshal(h.Status.Current()); err == nil {
		w.Write([]byte("data: " + string(cur) + "\n\n"))
	}
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandlePreview serves the live view as multipart MJPEG.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if h.Preview == nil {
		http.Error(w, "preview disabled", http.StatusNotFound)
		return
	}
	h.Preview.ServeHTTP(w, r)
}

// HandleCaptures lists captured pictures, newest first.
func (h *Handlers) HandleCaptures(w http.ResponseWriter, r *http.Request) {
	if h.Capture == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return
	}
	entries, err := os.ReadDir(h.Capture.Directory())
	if err != nil {
		http.Error(w, "cannot read capture directory", http.StatusInternalServerError)
		return
	}

	list := make([]CaptureInfo, 0, len(entries))
	for _, e := range entries {
		m := captureName.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		cam, _ := strconv.Atoi(m[1])
		list = append(list, CaptureInfo{
			Name:     e.Name(),
			Camera:   cam,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Modified.Equal(list[j].Modified) {
			return list[i].Modified.After(list[j].Modified)
		}
		return list[i].Name < list[j].Name
	})
	if len(list) > maxCaptureList {
		list = list[:maxCaptureList]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// capturePath resolves the {name} path value to a file in the capture
// directory, rejecting anything that is not a capture file name.
func (h *Handlers) capturePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Capture == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return "", false
	}
	name := r.PathValue("name")
	if !captureName.MatchString(name) {
		http.Error(w, "invalid capture name", http.StatusBadRequest)
		return "", false
	}
	path := filepath.Join(h.Capture.Directory(), name)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return "", false
	}
	return path, true
}

// HandleCaptureFile serves one captured picture.
func (h *Handlers) HandleCaptureFile(w http.ResponseWriter, r *http.Request) {
	path, ok := h.capturePath(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, path)
}

// HandleCaptureThumb serves a downscaled JPEG of one captured picture.
func (h *Handlers) HandleCaptureThumb(w http.ResponseWriter, r *http.Request) {
	path, ok := h.capturePath(w, r)
	if !ok {
		return
	}
	img, err := imaging.Open(path)
	if err != nil {
		http.Error(w, "cannot decode picture", http.StatusInternalServerError)
		return
	}
	size := h.ThumbSize
	var thumb image.Image = img
	if img.Bounds().Dx() > size || img.Bounds().Dy() > size {
		thumb = imaging.Fit(img, size, size, imaging.Lanczos)
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "max-age=3600")
	if err := imaging.Encode(w, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		log.Printf("thumbnail %s: %v", path, err)
	}
}
