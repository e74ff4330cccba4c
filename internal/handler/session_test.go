package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"camnet/internal/logger"
	"camnet/internal/service"
)

type fakeSession struct {
	visible   bool
	photos    int
	capturing bool
	hideCalls int
	showCalls int
}

func (s *fakeSession) Snapshot() service.Snapshot {
	state := service.Paused
	if s.capturing {
		state = service.Capturing
	}
	return service.Snapshot{ID: "test", State: state.String(), Visible: s.visible, Policy: service.Drop}
}

func (s *fakeSession) Show() {
	s.showCalls++
	s.visible = true
	s.capturing = true
}

func (s *fakeSession) Hide() {
	s.hideCalls++
	s.visible = false
	s.capturing = false
}

func (s *fakeSession) CapturePhoto() error {
	if !s.capturing {
		return errors.New("session is not capturing")
	}
	s.photos++
	return nil
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) service.Snapshot {
	t.Helper()

	var snapshot service.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	return snapshot
}

func TestSessionHandlers_PauseResume(t *testing.T) {
	session := &fakeSession{}
	log := logger.Discard()

	rr := httptest.NewRecorder()
	ResumeHandler(session, log).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/session/resume", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if snapshot := decodeSnapshot(t, rr); snapshot.State != "capturing" || !snapshot.Visible {
		t.Errorf("Unexpected snapshot after resume: %+v", snapshot)
	}

	rr = httptest.NewRecorder()
	PauseHandler(session, log).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/session/pause", nil))
	if snapshot := decodeSnapshot(t, rr); snapshot.State != "paused" || snapshot.Visible {
		t.Errorf("Unexpected snapshot after pause: %+v", snapshot)
	}

	if session.showCalls != 1 || session.hideCalls != 1 {
		t.Errorf("Expected one Show and one Hide, got %d and %d", session.showCalls, session.hideCalls)
	}
}

func TestSessionHandlers_RequirePost(t *testing.T) {
	session := &fakeSession{}
	log := logger.Discard()

	handlers := map[string]http.HandlerFunc{
		"pause":  PauseHandler(session, log),
		"resume": ResumeHandler(session, log),
		"photo":  CapturePhotoHandler(session, log),
	}
	for name, h := range handlers {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status %d, got %d", name, http.StatusMethodNotAllowed, rr.Code)
		}
	}
	if session.showCalls+session.hideCalls+session.photos != 0 {
		t.Error("GET requests must not drive the session")
	}
}

func TestCapturePhotoHandler(t *testing.T) {
	session := &fakeSession{}
	handler := CapturePhotoHandler(session, logger.Discard())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/photo", nil))
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status %d while paused, got %d", http.StatusConflict, rr.Code)
	}

	session.Show()
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/photo", nil))
	if rr.Code != http.StatusAccepted {
		t.Errorf("Expected status %d, got %d", http.StatusAccepted, rr.Code)
	}
	if session.photos != 1 {
		t.Errorf("Expected one photo request, got %d", session.photos)
	}
}

func TestStateHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	StateHandler(&fakeSession{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	snapshot := decodeSnapshot(t, rr)
	if snapshot.ID != "test" || snapshot.Policy != service.Drop {
		t.Errorf("Unexpected snapshot %+v", snapshot)
	}
}
