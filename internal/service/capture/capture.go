// Package capture delivers camera frames to a delegate.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotConfigured is returned when Start is called before Configure succeeded.
var ErrNotConfigured = errors.New("capture: source not configured")

// Frame is one captured image (JPEG bytes) and the moment it was captured.
type Frame struct {
	ID        uuid.UUID
	Seq       uint64
	Camera    string
	Data      []byte
	Timestamp time.Time
}

// Photo is a still captured on request.
type Photo struct {
	Frame
}

// Delegate receives what a Source captures. Both methods are called on the
// source's producer goroutine; the frame must not be retained past the call
// unless the delegate takes ownership of it.
type Delegate interface {
	FrameCaptured(src Source, frame *Frame)
	PhotoCaptured(src Source, photo *Photo)
}

// Source is a camera feed.
type Source interface {
	// Configure prepares the device for the given frame rate. It may block on
	// I/O and should be run from an initialization task.
	Configure(ctx context.Context, frameRate int) error
	// Start begins delivering frames to the delegate.
	Start() error
	// Stop halts delivery. No delegate callback is in progress or made after
	// Stop returns. Stop must not be called from a delegate callback.
	Stop()
	// CapturePhoto asks for the next frame to also be delivered as a photo.
	CapturePhoto()
	SetDelegate(d Delegate)
	Close() error
}

// Gate serializes frame delivery against Start/Stop so that Stop is
// synchronous. Sources embed it.
type Gate struct {
	mu        sync.RWMutex
	running   bool
	delegate  Delegate
	interval  time.Duration
	last      map[string]time.Time
	seq       uint64
	wantPhoto bool
	stateMu   sync.Mutex // guards last, seq and wantPhoto
}

// SetDelegate sets the receiver of frames.
func (g *Gate) SetDelegate(d Delegate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delegate = d
}

// SetFrameRate limits delivery to frameRate frames per second per camera.
// Zero or less disables the limit.
func (g *Gate) SetFrameRate(frameRate int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if frameRate <= 0 {
		g.interval = 0
		return
	}
	g.interval = time.Second / time.Duration(frameRate)
}

// Open allows delivery.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = true
}

// Shut blocks until in-flight deliveries finish and refuses new ones.
func (g *Gate) Shut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
}

// Running reports whether delivery is allowed.
func (g *Gate) Running() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}

// RequestPhoto marks the next delivered frame as a photo as well.
func (g *Gate) RequestPhoto() {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	g.wantPhoto = true
}

// Deliver hands data to the delegate if the gate is open and the camera's
// frame-rate budget allows it. It reports whether the frame was delivered.
func (g *Gate) Deliver(src Source, camera string, data []byte, ts time.Time) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.running || g.delegate == nil {
		return false
	}
	if !g.admit(camera, ts) {
		return false
	}

	frame := &Frame{
		ID:        uuid.New(),
		Camera:    camera,
		Data:      data,
		Timestamp: ts,
	}
	frame.Seq = g.nextSeq()

	g.delegate.FrameCaptured(src, frame)

	if g.takePhotoRequest() {
		g.delegate.PhotoCaptured(src, &Photo{Frame: *frame})
	}
	return true
}

// admit applies the frame-rate limit. Called with g.mu read-locked.
func (g *Gate) admit(camera string, ts time.Time) bool {
	if g.interval == 0 {
		return true
	}
	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	if g.last == nil {
		g.last = make(map[string]time.Time)
	}
	if prev, ok := g.last[camera]; ok && ts.Sub(prev) < g.interval {
		return false
	}
	g.last[camera] = ts
	return true
}

func (g *Gate) nextSeq() uint64 {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	g.seq++
	return g.seq
}

func (g *Gate) takePhotoRequest() bool {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	want := g.wantPhoto
	g.wantPhoto = false
	return want
}
