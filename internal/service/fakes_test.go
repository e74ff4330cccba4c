package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"camnet/internal/service/ai"
	"camnet/internal/service/capture"

	"github.com/google/uuid"
)

// callLog records calls from several goroutines in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) index(call string) int {
	for i, c := range l.list() {
		if c == call {
			return i
		}
	}
	return -1
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.list() {
		if c == call {
			n++
		}
	}
	return n
}

// fakeSource delivers frames only when told to and only while started.
type fakeSource struct {
	log          *callLog
	configure    chan struct{} // if set, Configure waits for it to close
	configureErr error

	mu       sync.Mutex
	delegate capture.Delegate
	running  bool
	photo    bool
	seq      uint64
}

func newFakeSource(log *callLog) *fakeSource {
	return &fakeSource{log: log}
}

func (s *fakeSource) Configure(ctx context.Context, frameRate int) error {
	s.log.add("configure")
	if s.configure != nil {
		select {
		case <-s.configure:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.configureErr != nil {
		return s.configureErr
	}
	s.log.add("configured")
	return nil
}

func (s *fakeSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("start")
	s.running = true
	return nil
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("stop")
	s.running = false
}

func (s *fakeSource) CapturePhoto() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photo = true
}

func (s *fakeSource) SetDelegate(d capture.Delegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = d
}

func (s *fakeSource) Close() error {
	s.log.add("source close")
	return nil
}

// emit delivers one frame the way a real source would; it reports whether
// the frame reached the delegate.
func (s *fakeSource) emit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.delegate == nil {
		return false
	}
	s.seq++
	frame := &capture.Frame{ID: uuid.New(), Seq: s.seq, Camera: "cam", Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}, Timestamp: time.Now()}
	s.delegate.FrameCaptured(s, frame)
	if s.photo {
		s.photo = false
		s.delegate.PhotoCaptured(s, &capture.Photo{Frame: *frame})
	}
	return true
}

// fakeEngine answers every frame from its own goroutine with a single
// prediction labelled after the frame sequence number.
type fakeEngine struct {
	log     *callLog
	loadErr error
	failOn  map[uint64]bool
	release chan struct{} // if set, predictions wait for it
	reject  bool

	mu     sync.Mutex
	loaded *ai.Descriptor
	kernel *ai.Kernel
	frames int
}

func newFakeEngine(log *callLog) *fakeEngine {
	return &fakeEngine{log: log}
}

func (e *fakeEngine) Load(ctx context.Context, desc *ai.Descriptor, kernel *ai.Kernel, provider ai.ParameterProvider) error {
	e.log.add("load")
	if e.loadErr != nil {
		return e.loadErr
	}
	e.mu.Lock()
	e.loaded = desc
	e.kernel = kernel
	e.mu.Unlock()
	e.log.add("loaded")
	return nil
}

func (e *fakeEngine) Predict(frame *capture.Frame, done ai.PredictFunc) error {
	if e.reject {
		return ai.InferenceError("predict", errors.New("prediction queue full"))
	}
	e.mu.Lock()
	e.frames++
	e.mu.Unlock()

	go func() {
		if e.release != nil {
			<-e.release
		}
		if e.failOn[frame.Seq] {
			done(nil, ai.InferenceError("predict", fmt.Errorf("frame %d failed", frame.Seq)))
			return
		}
		done(&ai.Result{
			FrameID:   frame.ID,
			Camera:    frame.Camera,
			Timestamp: frame.Timestamp,
			Elapsed:   time.Millisecond,
			Predictions: []ai.Prediction{
				{Index: int(frame.Seq), Label: fmt.Sprintf("seq_%d", frame.Seq), Confidence: 0.9},
			},
		}, nil)
	}()
	return nil
}

func (e *fakeEngine) Close() error {
	e.log.add("engine close")
	return nil
}

func (e *fakeEngine) predictCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// fakeSink forwards displayed results to a channel.
type fakeSink struct {
	results chan *ai.Result
}

func newFakeSink() *fakeSink {
	return &fakeSink{results: make(chan *ai.Result, 64)}
}

func (s *fakeSink) Display(result *ai.Result) {
	s.results <- result
}

func (s *fakeSink) next(t *testing.T) *ai.Result {
	t.Helper()
	select {
	case r := <-s.results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a result")
		return nil
	}
}

func (s *fakeSink) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case r := <-s.results:
		t.Fatalf("unexpected result %+v", r)
	case <-time.After(wait):
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []*ai.Result
	photos  []string
}

func (r *fakeRecorder) AddResult(result *ai.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *fakeRecorder) AddPhoto(photo *capture.Photo, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.photos = append(r.photos, label)
}

func (r *fakeRecorder) photoLabels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.photos...)
}

// writeModelDir lays out the squeezenet descriptor and parameter bundle.
func writeModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	desc := `{
		"name": "squeezenet",
		"graph": "squeezenet.prototxt",
		"input": {"name": "data", "shape": [1, 3, 227, 227]},
		"output": {"name": "prob", "shape": [1, 1000]}
	}`
	if err := os.WriteFile(filepath.Join(dir, "squeezenet.json"), []byte(desc), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "SqueezenetParameters"), 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
