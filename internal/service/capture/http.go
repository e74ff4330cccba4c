package capture

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"camnet/internal/logger"
)

// MaxUploadSize bounds one uploaded frame.
const MaxUploadSize = 8 << 20

// HTTPSource accepts JPEG frames that cameras POST to its handler, one frame
// per request, with the camera name in the "camera" query parameter.
type HTTPSource struct {
	Gate

	logger *logger.Logger

	mu         sync.Mutex
	configured bool
}

// NewHTTPSource creates an unconfigured push source.
func NewHTTPSource(logger *logger.Logger) *HTTPSource {
	return &HTTPSource{logger: logger}
}

// Configure applies the frame rate. Uploads are refused until Start.
func (s *HTTPSource) Configure(ctx context.Context, frameRate int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.SetFrameRate(frameRate)

	s.mu.Lock()
	s.configured = true
	s.mu.Unlock()

	s.logger.Info("HTTP camera source configured (%d fps)", frameRate)
	return nil
}

// Start opens delivery.
func (s *HTTPSource) Start() error {
	s.mu.Lock()
	configured := s.configured
	s.mu.Unlock()
	if !configured {
		return ErrNotConfigured
	}
	s.Open()
	s.logger.Info("HTTP camera source started")
	return nil
}

// Stop closes delivery; it returns once no delegate call is in progress.
func (s *HTTPSource) Stop() {
	s.Shut()
	s.logger.Info("HTTP camera source stopped")
}

// CapturePhoto delivers the next uploaded frame as a photo too.
func (s *HTTPSource) CapturePhoto() {
	s.RequestPhoto()
}

// Close stops delivery for good.
func (s *HTTPSource) Close() error {
	s.Shut()
	s.mu.Lock()
	s.configured = false
	s.mu.Unlock()
	return nil
}

// ServeHTTP receives one frame. It answers 202 when the frame was delivered,
// 204 when it was skipped by the frame-rate limit or because capture is
// stopped.
func (s *HTTPSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	camera := strings.TrimSpace(r.URL.Query().Get("camera"))
	if camera == "" {
		camera = "unknown_" + remoteHost(r.RemoteAddr)
	}

	if r.ContentLength == 0 {
		http.Error(w, "Empty body", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadSize))
	if err != nil {
		s.logger.Warning("Error reading upload from camera %s: %v", camera, err)
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "Empty body", http.StatusBadRequest)
		return
	}

	if !bytes.HasPrefix(body, jpegHeader) || !bytes.HasSuffix(body, jpegFooter) {
		s.logger.Warning("Upload from camera %s is not a JPEG frame (%d bytes)", camera, len(body))
		http.Error(w, "Expected a JPEG frame", http.StatusUnsupportedMediaType)
		return
	}

	if s.Deliver(s, camera, body, time.Now()) {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func remoteHost(addr string) string {
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return strings.Trim(addr[:i], "[]")
	}
	return addr
}
