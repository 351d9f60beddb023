// Package ui is the desktop window: live preview, Snap button and status line.
package ui

import (
	"encoding/json"
	"errors"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/cjeanneret/MultiCam/internal/debug"
	"github.com/cjeanneret/MultiCam/internal/logic/capture"
	"github.com/cjeanneret/MultiCam/internal/status"
)

// Capturer starts a capture; implemented by *capture.Controller.
type Capturer interface {
	Trigger(source string) error
}

// CameraApp owns the main window.
type CameraApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	capture Capturer
	status  *status.Broadcaster
	onClose func()
	unsub   func()

	previewCanvas *canvas.Image
	statusLabel   *widget.Label
	snapButton    *widget.Button
}

// CreateApp builds the window on a and lays out its widgets. The preview
// area is width x height pixels.
func CreateApp(a fyne.App, title string, width, height int, c Capturer, st *status.Broadcaster) *CameraApp {
	w := a.NewWindow(title)

	ca := &CameraApp{
		fyneApp: a,
		mainWin: w,
		capture: c,
		status:  st,
	}

	ca.previewCanvas = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, width, height)))
	ca.previewCanvas.FillMode = canvas.ImageFillContain
	ca.previewCanvas.SetMinSize(fyne.NewSize(float32(width), float32(height)))

	ca.statusLabel = widget.NewLabel(status.Ready)
	ca.statusLabel.Alignment = fyne.TextAlignCenter
	ca.statusLabel.Wrapping = fyne.TextWrapWord

	ca.snapButton = widget.NewButtonWithIcon("Snap", theme.MediaRecordIcon(), ca.snap)
	ca.snapButton.Importance = widget.HighImportance

	w.SetContent(container.NewBorder(
		nil,
		container.NewVBox(ca.snapButton, ca.statusLabel),
		nil, nil,
		container.NewPadded(ca.previewCanvas),
	))

	w.SetCloseIntercept(func() {
		ca.shutdown()
		w.Close()
	})
	return ca
}

// OnClose registers fn to run when the window closes, before it is destroyed.
func (a *CameraApp) OnClose(fn func()) {
	a.onClose = fn
}

// Run shows the window and blocks until it is closed.
func (a *CameraApp) Run() {
	a.Listen()
	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

// Listen starts following the status broadcaster.
func (a *CameraApp) Listen() {
	if a.unsub != nil {
		return
	}
	ch, unsub := a.status.Subscribe()
	a.unsub = unsub
	a.setStatus(a.status.Current())
	go a.runStatusLoop(ch)
}

// Close shuts the window as if the user had closed it.
func (a *CameraApp) Close() {
	fyne.Do(func() {
		a.shutdown()
		a.mainWin.Close()
	})
}

func (a *CameraApp) shutdown() {
	if a.unsub != nil {
		a.unsub()
		a.unsub = nil
	}
	if a.onClose != nil {
		fn := a.onClose
		a.onClose = nil
		fn()
	}
}

func (a *CameraApp) snap() {
	err := a.capture.Trigger("gui")
	if errors.Is(err, capture.ErrBusy) {
		return
	}
	if err != nil {
		debug.Error(err)
	}
}

func (a *CameraApp) runStatusLoop(ch <-chan string) {
	for msg := range ch {
		var evt status.Event
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			continue
		}
		if evt.Level == status.LevelLog {
			continue
		}
		fyne.Do(func() {
			a.setStatus(evt)
		})
	}
}

func (a *CameraApp) setStatus(evt status.Event) {
	if evt.Level == status.LevelError {
		a.statusLabel.Importance = widget.DangerImportance
	} else {
		a.statusLabel.Importance = widget.MediumImportance
	}
	a.statusLabel.SetText(evt.Msg)
}

// ShowFrame draws a preview frame. It may be called from any goroutine.
func (a *CameraApp) ShowFrame(img image.Image) {
	fyne.Do(func() {
		a.previewCanvas.Image = img
		a.previewCanvas.Refresh()
	})
}
