package service

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"camnet/internal/logger"
	"camnet/internal/service/ai"
	"camnet/internal/service/capture"
	"camnet/internal/service/dispatch"
)

// BackPressure decides what happens to frames that arrive while inference is
// busy.
type BackPressure string

const (
	// Drop keeps a single frame in flight and drops frames arriving meanwhile.
	// Results are delivered in capture order.
	Drop BackPressure = "drop"
	// Queue submits every frame and lets the engine queue them. Frames the
	// engine rejects are dropped. With several inference workers results may
	// arrive out of capture order.
	Queue BackPressure = "queue"
)

// ParseBackPressure maps a configuration value to a policy.
func ParseBackPressure(s string) (BackPressure, error) {
	switch p := BackPressure(strings.ToLower(strings.TrimSpace(s))); p {
	case Drop, Queue:
		return p, nil
	case "":
		return Drop, nil
	default:
		return "", ai.ConfigurationError("select back pressure", fmt.Errorf("unknown policy %q", s))
	}
}

// Predictor is the part of the engine the pipeline uses.
type Predictor interface {
	Predict(frame *capture.Frame, done ai.PredictFunc) error
}

// Sink displays results. It is only called on the UI queue.
type Sink interface {
	Display(result *ai.Result)
}

// Recorder persists results and still photos.
type Recorder interface {
	AddResult(result *ai.Result)
	AddPhoto(photo *capture.Photo, label string)
}

// PipelineStats counts what happened to captured frames.
type PipelineStats struct {
	Submitted  uint64    `json:"submitted"`
	Completed  uint64    `json:"completed"`
	Failed     uint64    `json:"failed"`
	Dropped    uint64    `json:"dropped"`
	Ignored    uint64    `json:"ignored"`
	LastResult time.Time `json:"last_result"`
}

// Pipeline receives frames from a capture source, submits them for
// inference and hands results to the sink on the UI queue.
type Pipeline struct {
	engine   Predictor
	ui       dispatch.Executor
	sink     Sink
	recorder Recorder
	policy   BackPressure
	logger   *logger.Logger

	enabled atomic.Bool
	busy    atomic.Bool

	mu        sync.Mutex
	stats     PipelineStats
	lastLabel string
}

// NewPipeline creates a disabled pipeline. recorder may be nil.
func NewPipeline(engine Predictor, ui dispatch.Executor, sink Sink, recorder Recorder, policy BackPressure, logger *logger.Logger) *Pipeline {
	if policy == "" {
		policy = Drop
	}
	return &Pipeline{
		engine:   engine,
		ui:       ui,
		sink:     sink,
		recorder: recorder,
		policy:   policy,
		logger:   logger,
	}
}

// Enable starts accepting frames.
func (p *Pipeline) Enable() { p.enabled.Store(true) }

// Disable discards frames and results from now on.
func (p *Pipeline) Disable() { p.enabled.Store(false) }

func (p *Pipeline) Enabled() bool { return p.enabled.Load() }

func (p *Pipeline) Policy() BackPressure { return p.policy }

// Stats returns a copy of the counters.
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// FrameCaptured submits frame for inference. It never blocks on the engine.
func (p *Pipeline) FrameCaptured(src capture.Source, frame *capture.Frame) {
	if !p.enabled.Load() {
		p.count(func(s *PipelineStats) { s.Ignored++ })
		return
	}

	if p.policy == Drop && !p.busy.CompareAndSwap(false, true) {
		p.count(func(s *PipelineStats) { s.Dropped++ })
		return
	}

	if err := p.engine.Predict(frame, p.complete); err != nil {
		if p.policy == Drop {
			p.busy.Store(false)
		}
		p.count(func(s *PipelineStats) { s.Dropped++ })
		p.logger.Warning("Frame %d from %s dropped: %v", frame.Seq, frame.Camera, err)
		return
	}
	p.count(func(s *PipelineStats) { s.Submitted++ })
}

// complete runs on an inference worker.
func (p *Pipeline) complete(result *ai.Result, err error) {
	if p.policy == Drop {
		p.busy.Store(false)
	}

	if err != nil {
		p.count(func(s *PipelineStats) { s.Failed++ })
		p.logger.Error("Inference failed: %v", err)
		return
	}

	if !p.enabled.Load() {
		p.count(func(s *PipelineStats) { s.Ignored++ })
		return
	}

	p.mu.Lock()
	p.stats.Completed++
	p.stats.LastResult = time.Now()
	if top, ok := result.Top(); ok {
		p.lastLabel = top.Label
	}
	p.mu.Unlock()

	if p.recorder != nil {
		p.recorder.AddResult(result)
	}

	p.ui.Async(func() {
		p.sink.Display(result)
	})
}

// PhotoCaptured hands the still to the recorder, labelled with the latest
// classification.
func (p *Pipeline) PhotoCaptured(src capture.Source, photo *capture.Photo) {
	p.mu.Lock()
	label := p.lastLabel
	p.mu.Unlock()

	p.logger.Info("Photo captured from %s (%s)", photo.Camera, label)
	if p.recorder != nil {
		p.recorder.AddPhoto(photo, label)
	}
}

func (p *Pipeline) count(fn func(s *PipelineStats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}
