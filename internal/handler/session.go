package handler

import (
	"encoding/json"
	"net/http"

	"camnet/internal/logger"
	"camnet/internal/service"
	wsservice "camnet/internal/service/websocket"
)

// SessionController is the part of the screen session the HTTP surface drives.
type SessionController interface {
	Snapshot() service.Snapshot
	Show()
	Hide()
	CapturePhoto() error
}

// StateHandler returns the session state and pipeline counters.
func StateHandler(session SessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, session.Snapshot())
	}
}

// PauseHandler hides the screen, which pauses capturing.
func PauseHandler(session SessionController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		session.Hide()
		logger.Info("Session paused from %s", r.RemoteAddr)
		writeJSON(w, http.StatusOK, session.Snapshot())
	}
}

// ResumeHandler shows the screen, which starts or resumes capturing.
func ResumeHandler(session SessionController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		session.Show()
		logger.Info("Session resumed from %s", r.RemoteAddr)
		writeJSON(w, http.StatusOK, session.Snapshot())
	}
}

// CapturePhotoHandler asks the source for a still photo.
func CapturePhotoHandler(session SessionController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := session.CapturePhoto(); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
	}
}

// ResultHandler returns what the board currently shows.
func ResultHandler(board *wsservice.Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, board.Current())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
