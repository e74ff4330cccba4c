package device

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"camnet/internal/logger"
	"camnet/internal/service/capture"
)

func TestNew_DefaultCameraName(t *testing.T) {
	s := New("0", "", logger.Discard())
	if s.camera != "device_0" {
		t.Errorf("Expected device_0, got %s", s.camera)
	}
}

func TestStart_RequiresConfigure(t *testing.T) {
	s := New("0", "front", logger.Discard())
	if err := s.Start(); err != capture.ErrNotConfigured {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	// Stop and Close on an unconfigured source are no-ops.
	s.Stop()
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

type countingDelegate struct {
	frames atomic.Int32
}

func (d *countingDelegate) FrameCaptured(capture.Source, *capture.Frame) { d.frames.Add(1) }
func (d *countingDelegate) PhotoCaptured(capture.Source, *capture.Photo) {}

// TestDevice_Capture needs a real device or video file in CAMNET_TEST_DEVICE.
func TestDevice_Capture(t *testing.T) {
	target := os.Getenv("CAMNET_TEST_DEVICE")
	if target == "" {
		t.Skip("CAMNET_TEST_DEVICE not set, skipping device capture test")
	}

	s := New(target, "test", logger.Discard())
	delegate := &countingDelegate{}
	s.SetDelegate(delegate)

	if err := s.Configure(context.Background(), 10); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	defer s.Close()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(time.Second)
	s.Stop()

	seen := delegate.frames.Load()
	if seen == 0 {
		t.Fatal("Expected at least one frame")
	}
	time.Sleep(200 * time.Millisecond)
	if delegate.frames.Load() != seen {
		t.Error("Frames delivered after Stop returned")
	}
}
