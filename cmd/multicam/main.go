package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2/app"

	"github.com/cjeanneret/MultiCam/internal/config"
	"github.com/cjeanneret/MultiCam/internal/debug"
	"github.com/cjeanneret/MultiCam/internal/hw/button"
	"github.com/cjeanneret/MultiCam/internal/hw/camera"
	"github.com/cjeanneret/MultiCam/internal/hw/gpio"
	"github.com/cjeanneret/MultiCam/internal/hw/preview"
	"github.com/cjeanneret/MultiCam/internal/logic/capture"
	"github.com/cjeanneret/MultiCam/internal/logic/liveview"
	"github.com/cjeanneret/MultiCam/internal/status"
	"github.com/cjeanneret/MultiCam/internal/ui"
	"github.com/cjeanneret/MultiCam/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	headless := flag.Bool("headless", false, "do not open the desktop window")
	snap := flag.Bool("snap", false, "take one picture per camera and exit")
	flag.Parse()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	st := status.NewBroadcaster()

	// Still cameras
	debug.Step(1, "Initializing still cameras")
	opener, err := newStillOpener(cfg)
	if err != nil {
		log.Fatalf("init cameras failed: %v", err)
	}
	debug.Value("Capture type", cfg.Capture.Type)
	debug.Value("Camera count", cfg.Capture.CameraCount)
	debug.Value("Directory", cfg.Capture.Directory)
	seq := capture.NewSequence(opener, captureConfig(cfg), st.Broadcast)

	if *snap {
		if err := runSnap(ctx, seq, time.Now()); err != nil {
			log.Fatalf("capture failed: %v", err)
		}
		return
	}

	// Live preview
	debug.Step(2, "Initializing preview")
	src, err := preview.New(cfg)
	if err != nil {
		log.Fatalf("init preview failed: %v", err)
	}
	debug.PrintStruct("Preview config", cfg.Preview)
	loop := liveview.New(src, cfg.PreviewInterval(), cfg.Preview.WidthPx, cfg.Preview.HeightPx)

	ctrl, err := capture.NewController(seq, loop, st, cfg.ReadyDelay())
	if err != nil {
		log.Fatalf("init capture failed: %v", err)
	}

	var wg sync.WaitGroup

	// Physical button
	if cfg.Button.Enabled {
		debug.Step(3, "Initializing button")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			log.Fatalf("init GPIO failed: %v", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()

		watcher, err := button.NewWatcher(gpioDriver, buttonConfig(cfg), func() {
			triggerFrom(ctrl, "button")
		})
		if err != nil {
			log.Fatalf("init button failed: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				debug.Error(err)
			}
		}()
	}

	// Web UI
	if port := resolveWebPort(webPort.port(), cfg); port > 0 {
		debug.Step(4, "Starting web server")
		webAddr := fmt.Sprintf(":%d", port)
		debug.SetOutput(io.MultiWriter(os.Stdout, status.Writer(st)))

		stream := web.NewPreviewStream()
		loop.AddSink(stream)
		srv := web.NewServer(webAddr, st, ctrl, stream)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
				cancel()
			}
		}()
	}

	desktop := cfg.UI.Desktop && !*headless
	var win *ui.CameraApp
	if desktop {
		win = ui.CreateApp(app.New(), cfg.UI.Title, cfg.Preview.WidthPx, cfg.Preview.HeightPx, ctrl, st)
		loop.AddSink(win)
		win.OnClose(func() {
			ctrl.Close()
			if err := loop.Stop(); err != nil {
				debug.Error(err)
			}
		})
	}

	if err := loop.Start(); err != nil {
		debug.Info("Could not open USB camera: %v", err)
	}

	debug.Summary("MultiCam ready")
	if desktop {
		uiDone := make(chan struct{})
		go func() {
			<-ctx.Done()
			select {
			case <-uiDone:
			default:
				win.Close()
			}
		}()
		win.Run()
		close(uiDone)
		cancel()
	} else {
		<-ctx.Done()
	}

	debug.Info("Shutting down")
	ctrl.Close()
	if err := loop.Stop(); err != nil {
		debug.Error(err)
	}
	wg.Wait()
}

// newStillOpener selects a still camera implementation based on configuration.
func newStillOpener(cfg *config.Config) (camera.Opener, error) {
	switch cfg.Capture.Type {
	case config.CaptureRPiCam:
		return camera.NewRPiCam(cfg.Capture.Command, cfg.CaptureTimeout()), nil
	case config.CaptureMock:
		return camera.NewMock(cfg.Capture.FailCameras...), nil
	default:
		return nil, fmt.Errorf("unsupported capture type: %s", cfg.Capture.Type)
	}
}

func captureConfig(cfg *config.Config) capture.Config {
	return capture.Config{
		Directory:   cfg.Capture.Directory,
		CameraCount: cfg.Capture.CameraCount,
		Still: camera.StillConfig{
			WidthPx:  cfg.Capture.WidthPx,
			HeightPx: cfg.Capture.HeightPx,
		},
		TimestampLayout: cfg.Capture.TimestampLayout,
	}
}

func buttonConfig(cfg *config.Config) button.Config {
	return button.Config{
		Pin:      cfg.Button.Pin,
		PullUp:   cfg.PullUp(),
		Debounce: cfg.Debounce(),
		Poll:     cfg.ButtonPoll(),
	}
}

// runSnap takes one picture per camera without a preview running.
func runSnap(ctx context.Context, seq *capture.Sequence, at time.Time) error {
	if err := seq.EnsureDirectory(); err != nil {
		return err
	}
	res := seq.Run(ctx, at)
	for _, f := range res.Files {
		fmt.Println(f)
	}
	return res.Err
}

// triggerFrom starts a capture; a press while busy is dropped.
func triggerFrom(c ui.Capturer, source string) {
	if err := c.Trigger(source); err != nil && !errors.Is(err, capture.ErrBusy) {
		debug.Error(err)
	}
}

// resolveWebPort gives the -web flag precedence over ui.web_port.
func resolveWebPort(flagPort int, cfg *config.Config) int {
	if flagPort > 0 {
		return flagPort
	}
	return cfg.UI.WebPort
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
