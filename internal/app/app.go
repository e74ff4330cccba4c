package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"camnet/internal/config"
	"camnet/internal/logger"
	"camnet/internal/repository/sqlite"
	"camnet/internal/route"
	"camnet/internal/service"
	"camnet/internal/service/ai"
	"camnet/internal/service/ai/onnx"
	"camnet/internal/service/ai/opencv"
	"camnet/internal/service/capture"
	"camnet/internal/service/capture/device"
	"camnet/internal/service/dispatch"
	"camnet/internal/service/storage"
	"camnet/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	ui            *dispatch.Queue
	session       *service.Session
	router        http.Handler
}

// NewApp wires every service from the environment configuration. It fails
// with an ai.ErrConfiguration error when the selected model, backend, source
// or back-pressure policy is unknown.
func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	modelType, err := ai.ParseModelType(cfg.ModelType)
	if err != nil {
		log.Close()
		return nil, err
	}
	policy, err := service.ParseBackPressure(cfg.BackPressure)
	if err != nil {
		log.Close()
		return nil, err
	}
	backends, err := newBackends(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}
	source, upload, err := newSource(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	photoRepo := sqlite.NewPhotoRepository(db)
	resultRepo := sqlite.NewResultRepository(db)

	buffer := storage.NewBufferService(cfg.ImageDirectory, cfg.ImageBufferLimit, cfg.FlushInterval(), log, photoRepo, resultRepo)
	hub := websocket.NewHubService(log)
	board := websocket.NewBoard(hub, log)
	ui := dispatch.NewQueue()

	net := ai.NewNet(ai.Options{TopK: cfg.TopK, QueueSize: cfg.InferenceQueue}, log, backends...)
	pipeline := service.NewPipeline(net, ui, board, buffer, policy, log)
	session := service.NewSession(service.SessionOptions{
		ModelDirectory: cfg.ModelDirectory,
		ModelType:      modelType,
		FrameRate:      cfg.FrameRate,
	}, source, net, pipeline, ui, log)

	if cfg.PauseWithoutViewers {
		hub.OnViewerCount(func(n int) {
			if n > 0 {
				session.Show()
			} else {
				session.Hide()
			}
		})
	} else {
		session.Show()
	}

	router := route.SetupRoutes(route.Deps{
		Session:    session,
		Hub:        hub,
		Board:      board,
		PhotoRepo:  photoRepo,
		ResultRepo: resultRepo,
		Upload:     upload,
	}, cfg, log)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		bufferService: buffer,
		hubService:    hub,
		ui:            ui,
		session:       session,
		router:        router,
	}, nil
}

func newBackends(cfg *config.Config, log *logger.Logger) ([]ai.Backend, error) {
	switch cfg.InferenceBackend {
	case "opencv":
		return opencv.Pool(cfg.InferenceWorkers, cfg.InferenceTarget, log), nil
	case "onnx":
		return onnx.Pool(cfg.InferenceWorkers, cfg.OnnxLibraryPath, cfg.InferenceTarget, log), nil
	default:
		return nil, ai.ConfigurationError("select backend", fmt.Errorf("unknown inference backend %q", cfg.InferenceBackend))
	}
}

// newSource returns the capture source and, for the push source, the handler
// cameras upload to.
func newSource(cfg *config.Config, log *logger.Logger) (capture.Source, http.Handler, error) {
	switch cfg.CaptureSource {
	case "udp":
		return capture.NewUDPSourceOnPort(cfg.CamerasPort, cfg.CameraNames, log), nil, nil
	case "device":
		return device.New(cfg.CaptureDevice, "", log), nil, nil
	case "http":
		src := capture.NewHTTPSource(log)
		return src, src, nil
	default:
		return nil, nil, ai.ConfigurationError("select source", fmt.Errorf("unknown capture source %q", cfg.CaptureSource))
	}
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts every service down and
// flushes buffered history to disk.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage and the hub stop only after the session is closed.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		a.bufferService.Run(bgCtx)
	}()
	go func() {
		defer background.Done()
		a.hubService.Run(bgCtx)
	}()

	if err := a.session.Load(ctx); err != nil {
		return err
	}
	fatal := make(chan error, 1)
	go func() {
		err := a.session.Started(ctx)
		switch {
		case err == nil:
			a.logger.Info("Session %s started", a.session.ID())
		case errors.Is(err, ai.ErrConfiguration):
			fatal <- err
		case ctx.Err() == nil:
			a.logger.Error("Session %s failed to start: %v", a.session.ID(), err)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	fmt.Printf("🚀 Camnet Classification Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📷 Source: %s\n", a.config.CaptureSource)
	fmt.Printf("🤖 Model: %s on %s/%s\n", a.config.ModelType, a.config.InferenceBackend, a.config.InferenceTarget)
	fmt.Printf("📁 Images: %s\n", a.config.ImageDirectory)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve HTTP: %w", err)
		}
	case err := <-fatal:
		a.logger.Error("Configuration error, giving up: %v", err)
		runErr = err
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	if err := a.session.Close(); err != nil {
		a.logger.Warning("Closing session: %v", err)
	}
	a.ui.Close()
	bgCancel()
	background.Wait()

	if err := a.db.Close(); err != nil {
		a.logger.Warning("Closing database: %v", err)
	}
	a.logger.Close()
	return runErr
}
