// Package device captures frames from an OpenCV VideoCapture (webcam index,
// video file or stream URL).
package device

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"camnet/internal/logger"
	"camnet/internal/service/capture"

	"gocv.io/x/gocv"
)

// Source reads frames from a VideoCapture and delivers them JPEG-encoded.
type Source struct {
	capture.Gate

	device string
	camera string
	logger *logger.Logger

	mu      sync.Mutex
	vc      *gocv.VideoCapture
	stop    chan struct{}
	stopped chan struct{}
}

// New creates a source for device, which is either a numeric device index or
// a file/stream URL. camera names the frames it produces.
func New(device, camera string, logger *logger.Logger) *Source {
	if camera == "" {
		camera = "device_" + device
	}
	return &Source{device: device, camera: camera, logger: logger}
}

// Configure opens the device and requests the frame rate from the driver.
func (s *Source) Configure(ctx context.Context, frameRate int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc != nil {
		return fmt.Errorf("device %s already configured", s.device)
	}

	var target interface{} = s.device
	if index, err := strconv.Atoi(s.device); err == nil {
		target = index
	}

	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return fmt.Errorf("open video capture %s: %w", s.device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("video capture %s is not opened", s.device)
	}
	if frameRate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(frameRate))
	}

	s.SetFrameRate(frameRate)
	s.vc = vc
	s.logger.Info("Video device %s configured (%d fps)", s.device, frameRate)
	return nil
}

// Start launches the read loop.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc == nil {
		return capture.ErrNotConfigured
	}
	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	s.Open()
	go s.readLoop(s.vc, s.stop, s.stopped)

	s.logger.Info("Video device %s started", s.device)
	return nil
}

// Stop closes delivery and waits for the read loop to exit.
func (s *Source) Stop() {
	s.Shut()

	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
	s.logger.Info("Video device %s stopped", s.device)
}

// CapturePhoto delivers the next frame as a photo too.
func (s *Source) CapturePhoto() {
	s.RequestPhoto()
}

// Close stops the source and releases the device.
func (s *Source) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vc == nil {
		return nil
	}
	err := s.vc.Close()
	s.vc = nil
	return err
}

func (s *Source) readLoop(vc *gocv.VideoCapture, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if ok := vc.Read(&img); !ok || img.Empty() {
			// End of file or a transient device hiccup; avoid spinning.
			time.Sleep(10 * time.Millisecond)
			continue
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			s.logger.Error("Failed to encode frame from %s: %v", s.device, err)
			continue
		}
		data := make([]byte, len(buf.GetBytes()))
		copy(data, buf.GetBytes())
		buf.Close()

		s.Deliver(s, s.camera, data, time.Now())
	}
}
