package route

import (
	"net/http"
	"os"
	"path/filepath"

	"camnet/internal/config"
	"camnet/internal/handler"
	loggerpkg "camnet/internal/logger"
	"camnet/internal/middleware"
	"camnet/internal/repository"
	wsservice "camnet/internal/service/websocket"
)

// Deps are the services the HTTP layer talks to.
type Deps struct {
	Session    handler.SessionController
	Hub        *wsservice.HubService
	Board      *wsservice.Board
	PhotoRepo  repository.PhotoRepository
	ResultRepo repository.ResultRepository
	// Upload receives pushed camera frames; nil unless the HTTP capture
	// source is selected.
	Upload http.Handler
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(deps Deps, cfg *config.Config, logger *loggerpkg.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Camera push endpoint
	if deps.Upload != nil {
		mux.Handle("/camera/upload", deps.Upload)
	}

	// Session endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(deps.Hub, logger))
	mux.HandleFunc("/api/result", handler.ResultHandler(deps.Board))
	mux.HandleFunc("/api/state", handler.StateHandler(deps.Session))
	mux.HandleFunc("/api/session/pause", handler.PauseHandler(deps.Session, logger))
	mux.HandleFunc("/api/session/resume", handler.ResumeHandler(deps.Session, logger))
	mux.HandleFunc("/api/photo", handler.CapturePhotoHandler(deps.Session, logger))

	// History endpoints
	mux.HandleFunc("/api/results", handler.ResultsHandler(logger, deps.ResultRepo))
	mux.HandleFunc("/api/results/clear", handler.ClearResultsHandler(logger, deps.ResultRepo))
	mux.HandleFunc("/api/photos", handler.GetPhotosHandler(cfg, logger, deps.PhotoRepo))
	mux.HandleFunc("/api/photos/view", handler.ViewPhotoHandler(cfg))
	mux.HandleFunc("/api/photos/delete", handler.DeletePhotoHandler(cfg, logger, deps.PhotoRepo))
	mux.HandleFunc("/api/photos/clear", handler.ClearPhotosHandler(cfg, logger, deps.PhotoRepo))

	// Log endpoints
	logFiles := map[string]string{
		"info":    loggerpkg.InfoFile,
		"warning": loggerpkg.WarningFile,
		"error":   loggerpkg.ErrorFile,
	}
	for name, file := range logFiles {
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(logger, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(logger, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(cfg.Password, mux)
}
