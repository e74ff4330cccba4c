package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"camnet/internal/dto"
	"camnet/internal/logger"
	"camnet/internal/model"
	"camnet/internal/repository"
	"camnet/internal/service/ai"
	"camnet/internal/service/capture"
)

const (
	// DefaultPhotoLimit limits how many photos per camera are buffered between flushes.
	DefaultPhotoLimit = 10
	// MaxBufferedResults caps the classification history held between flushes.
	MaxBufferedResults = 4096

	timestampLayout = "2006-01-02_15-04_05.000"
)

// BufferService buffers results and photos in memory and periodically
// flushes them to disk and the database.
type BufferService struct {
	imagesDir   string
	photoLimit  int
	interval    time.Duration
	photos      []dto.BufferedPhoto
	results     []model.Result
	bufferCount map[string]int
	mu          sync.Mutex
	flushMu     sync.Mutex
	logger      *logger.Logger
	photoRepo   repository.PhotoRepository
	resultRepo  repository.ResultRepository
}

// NewBufferService creates a BufferService writing photos to imagesDir.
// Either repository may be nil.
func NewBufferService(imagesDir string, photoLimit int, interval time.Duration, logger *logger.Logger,
	photoRepo repository.PhotoRepository, resultRepo repository.ResultRepository) *BufferService {
	if photoLimit <= 0 {
		photoLimit = DefaultPhotoLimit
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &BufferService{
		imagesDir:   imagesDir,
		photoLimit:  photoLimit,
		interval:    interval,
		bufferCount: make(map[string]int),
		logger:      logger,
		photoRepo:   photoRepo,
		resultRepo:  resultRepo,
	}
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-ctx.Done():
			s.Flush()
			return
		}
	}
}

// AddResult buffers a classification for the history.
func (s *BufferService) AddResult(result *ai.Result) {
	record := model.Result{
		FrameID:   result.FrameID.String(),
		Camera:    result.Camera,
		Timestamp: result.Timestamp,
		ElapsedMs: float64(result.Elapsed) / float64(time.Millisecond),
	}
	if top, ok := result.Top(); ok {
		record.TopLabel = top.Label
		record.TopConfidence = float64(top.Confidence)
	}
	for i, p := range result.Predictions {
		record.Predictions = append(record.Predictions, model.Prediction{
			Rank:       i + 1,
			ClassIndex: p.Index,
			Label:      p.Label,
			Confidence: float64(p.Confidence),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.results) >= MaxBufferedResults {
		return
	}
	s.results = append(s.results, record)
}

// AddPhoto buffers a still photo for its camera.
func (s *BufferService) AddPhoto(photo *capture.Photo, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[photo.Camera] >= s.photoLimit {
		s.logger.Warning("Photo buffer full for camera %s, photo skipped", photo.Camera)
		return
	}

	ts := photo.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	s.photos = append(s.photos, dto.BufferedPhoto{
		Timestamp: ts.Format(timestampLayout),
		Camera:    photo.Camera,
		Label:     label,
		Data:      photo.Data,
	})
	s.bufferCount[photo.Camera]++
	s.logger.Info("Buffer size for camera %s: %d/%d", photo.Camera, s.bufferCount[photo.Camera], s.photoLimit)
}

// Pending returns how many photos and results wait for the next flush.
func (s *BufferService) Pending() (photos, results int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos), len(s.results)
}

// Flush writes buffered photos to disk, indexes them, and stores buffered
// results with their predictions.
func (s *BufferService) Flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	photos, results := s.photos, s.results
	s.photos, s.results = nil, nil
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(results) > 0 && s.resultRepo != nil {
		if err := s.resultRepo.InsertBatch(results); err != nil {
			s.logger.Error("Error saving %d results to database: %v", len(results), err)
		} else {
			s.logger.Info("Flushed %d results to database", len(results))
		}
	}

	if len(photos) == 0 {
		return
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return
	}

	savedCount := 0
	for _, photo := range photos {
		filename := PhotoFilename(photo)
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, photo.Data, 0644); err != nil {
			s.logger.Error("Error saving photo %s: %v", filename, err)
			continue
		}

		if s.photoRepo != nil {
			ts, err := time.ParseInLocation(timestampLayout, photo.Timestamp, time.Local)
			if err != nil {
				ts = time.Now()
			}

			_, err = s.photoRepo.Insert(&model.Photo{
				Filename:  filename,
				Camera:    photo.Camera,
				Timestamp: ts,
				FilePath:  fullpath,
				FileSize:  int64(len(photo.Data)),
				Label:     photo.Label,
			})
			if err != nil {
				s.logger.Error("Error saving photo to database %s: %v", filename, err)
				continue
			}
		}

		savedCount++
	}

	s.logger.Info("Flushed %d photos to disk", savedCount)
}

// PhotoFilename names a photo after its time, camera and label. Fields are
// joined with '_' and never contain one.
func PhotoFilename(photo dto.BufferedPhoto) string {
	name := fmt.Sprintf("%s_%s", photo.Timestamp, sanitize(photo.Camera))
	if photo.Label != "" {
		name += "_" + sanitize(photo.Label)
	}
	return name + ".jpg"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}

// ParsePhotoFilename reverses PhotoFilename. Camera and label come back in
// their sanitized form.
func ParsePhotoFilename(name string) (ts time.Time, camera, label string, err error) {
	base, ok := strings.CutSuffix(name, ".jpg")
	if !ok {
		return time.Time{}, "", "", fmt.Errorf("%s: not a .jpg file", name)
	}
	if len(base) < len(timestampLayout)+2 || base[len(timestampLayout)] != '_' {
		return time.Time{}, "", "", fmt.Errorf("%s: missing timestamp or camera", name)
	}

	ts, err = time.ParseInLocation(timestampLayout, base[:len(timestampLayout)], time.Local)
	if err != nil {
		return time.Time{}, "", "", fmt.Errorf("%s: %w", name, err)
	}

	camera, label, _ = strings.Cut(base[len(timestampLayout)+1:], "_")
	if camera == "" || strings.Contains(label, "_") {
		return time.Time{}, "", "", fmt.Errorf("%s: malformed camera or label", name)
	}
	return ts, camera, label, nil
}
