// Package service ties a capture source, the inference engine and the
// display together for one screen session.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"camnet/internal/logger"
	"camnet/internal/service/ai"
	"camnet/internal/service/capture"
	"camnet/internal/service/dispatch"
	"camnet/internal/service/startup"

	"github.com/google/uuid"
)

// State is the lifecycle stage of a session.
type State int

const (
	NotStarted State = iota
	Initializing
	Ready
	Capturing
	Paused
	Stopped
	Failed
)

var stateNames = [...]string{
	NotStarted:   "not_started",
	Initializing: "initializing",
	Ready:        "ready",
	Capturing:    "capturing",
	Paused:       "paused",
	Stopped:      "stopped",
	Failed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

var (
	errAlreadyLoaded = errors.New("session already loaded")
	errNotCapturing  = errors.New("session is not capturing")
	errStopped       = errors.New("session stopped")
)

// Engine is the inference engine a session loads and feeds.
type Engine interface {
	Predictor
	Load(ctx context.Context, desc *ai.Descriptor, kernel *ai.Kernel, provider ai.ParameterProvider) error
	Close() error
}

// SessionOptions selects the model and the capture rate.
type SessionOptions struct {
	ModelDirectory string
	ModelType      ai.ModelType
	FrameRate      int
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	ID       string        `json:"id"`
	State    string        `json:"state"`
	Visible  bool          `json:"visible"`
	Error    string        `json:"error,omitempty"`
	Policy   BackPressure  `json:"back_pressure"`
	Pipeline PipelineStats `json:"pipeline"`
}

// Session drives a source and an engine through
// NotStarted -> Initializing -> Ready -> Capturing <-> Paused -> Stopped,
// or Failed when initialization does not succeed.
type Session struct {
	id       uuid.UUID
	opts     SessionOptions
	source   capture.Source
	engine   Engine
	pipeline *Pipeline
	ui       dispatch.Executor
	logger   *logger.Logger

	mu      sync.Mutex
	state   State
	visible bool
	err     error

	started     chan struct{}
	startedOnce sync.Once
}

// NewSession creates a session. The pipeline becomes the source's delegate.
func NewSession(opts SessionOptions, source capture.Source, engine Engine, pipeline *Pipeline, ui dispatch.Executor, logger *logger.Logger) *Session {
	source.SetDelegate(pipeline)
	return &Session{
		id:       uuid.New(),
		opts:     opts,
		source:   source,
		engine:   engine,
		pipeline: pipeline,
		ui:       ui,
		logger:   logger,
		started:  make(chan struct{}),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session to Failed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Load configures the source and loads the model concurrently and returns
// immediately. Capturing begins once both are done and the session is
// visible.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != NotStarted {
		s.mu.Unlock()
		return errAlreadyLoaded
	}
	s.setStateLocked(Initializing)
	s.mu.Unlock()

	barrier := startup.New()

	barrier.Enter()
	go func() {
		if err := s.source.Configure(ctx, s.opts.FrameRate); err != nil {
			barrier.LeaveWithError(fmt.Errorf("configure capture: %w", err))
			return
		}
		barrier.Leave()
	}()

	barrier.Enter()
	go func() {
		if err := s.loadModel(ctx); err != nil {
			barrier.LeaveWithError(err)
			return
		}
		barrier.Leave()
	}()

	barrier.Notify(s.ui, s.initialized)
	return nil
}

func (s *Session) loadModel(ctx context.Context) error {
	res, err := ai.ResolveResources(s.opts.ModelDirectory, s.opts.ModelType)
	if err != nil {
		return err
	}
	kernel, err := ai.KernelFor(res.Type)
	if err != nil {
		return err
	}
	desc, err := ai.ReadDescriptor(res.Descriptor)
	if err != nil {
		return err
	}
	return s.engine.Load(ctx, desc, kernel, res.Provider())
}

// initialized is the barrier continuation. It runs on the UI queue.
func (s *Session) initialized(err error) {
	defer s.markStarted()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Initializing {
		s.logger.Warning("Session %s initialized while %s, not starting", s.id, s.state)
		return
	}

	if err != nil {
		s.err = err
		s.setStateLocked(Failed)
		s.logger.Error("Session %s failed to start: %v", s.id, err)
		return
	}

	s.setStateLocked(Ready)
	if s.visible {
		s.startLocked()
	}
}

func (s *Session) startLocked() {
	if err := s.source.Start(); err != nil {
		s.err = fmt.Errorf("start capture: %w", err)
		s.setStateLocked(Failed)
		s.logger.Error("Session %s: %v", s.id, s.err)
		return
	}
	s.pipeline.Enable()
	s.setStateLocked(Capturing)
}

func (s *Session) stopLocked() {
	s.pipeline.Disable()
	s.source.Stop()
}

// Show marks the screen visible and starts or resumes capturing when the
// session is ready.
func (s *Session) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visible = true
	switch s.state {
	case Ready, Paused:
		s.startLocked()
	}
}

// Hide marks the screen hidden and pauses capturing. When Hide returns no
// frame is delivered to the pipeline any more.
func (s *Session) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visible = false
	if s.state == Capturing {
		s.stopLocked()
		s.setStateLocked(Paused)
	}
}

// Close stops the session for good and releases the source and the engine.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return nil
	}
	if s.state == Capturing {
		s.stopLocked()
	}
	s.pipeline.Disable()
	s.setStateLocked(Stopped)
	s.mu.Unlock()

	s.markStarted()

	return errors.Join(s.source.Close(), s.engine.Close())
}

// Started blocks until initialization has finished and returns its error.
func (s *Session) Started(ctx context.Context) error {
	select {
	case <-s.started:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.state == Stopped {
		return errStopped
	}
	return nil
}

// CapturePhoto asks the source for a still photo.
func (s *Session) CapturePhoto() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Capturing {
		return errNotCapturing
	}
	s.source.CapturePhoto()
	return nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:       s.id.String(),
		State:    s.state.String(),
		Visible:  s.visible,
		Policy:   s.pipeline.Policy(),
		Pipeline: s.pipeline.Stats(),
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.logger.Info("Session %s: %s -> %s", s.id, s.state, state)
	s.state = state
}

func (s *Session) markStarted() {
	s.startedOnce.Do(func() { close(s.started) })
}
