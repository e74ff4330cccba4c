// Package ai loads classification models and runs them asynchronously on
// captured frames.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"camnet/internal/logger"
	"camnet/internal/service/capture"
)

var (
	errNotLoaded = errors.New("net not loaded")
	errClosed    = errors.New("net closed")
	errQueueFull = errors.New("prediction queue full")
)

// Model is everything a backend needs to open a network.
type Model struct {
	Descriptor *Descriptor
	Kernel     *Kernel
	Graph      string // resolved graph path, empty if the descriptor has none
	Parameters []ParameterSource
}

// Backend runs a network synchronously. A backend instance is only ever used
// from one goroutine at a time.
type Backend interface {
	Name() string
	// Supported reports whether the backend can run on this machine.
	Supported() error
	Open(model *Model) error
	// Infer returns the raw output scores for one frame.
	Infer(frame *capture.Frame) ([]float32, error)
	Close() error
}

// PredictFunc receives the outcome of a prediction on a worker goroutine.
type PredictFunc func(result *Result, err error)

// Options tunes a Net.
type Options struct {
	TopK      int // predictions per result, default 5
	QueueSize int // frames held while every worker is busy, default 4
}

type job struct {
	frame *capture.Frame
	done  PredictFunc
}

// Net runs predictions on a pool of backend instances, one worker goroutine
// each. With more than one backend, results may complete out of submission
// order.
type Net struct {
	backends []Backend
	opts     Options
	logger   *logger.Logger

	mu     sync.RWMutex
	loaded bool
	closed bool
	desc   *Descriptor
	labels Labels
	jobs   chan job
	wg     sync.WaitGroup
}

// NewNet creates an unloaded net over the given backend instances.
func NewNet(opts Options, logger *logger.Logger, backends ...Backend) *Net {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4
	}
	return &Net{backends: backends, opts: opts, logger: logger}
}

// Load checks the backends, resolves the graph, parameters and labels the
// descriptor declares, opens every backend and starts the workers. A nil
// kernel falls back to the descriptor's input shape.
func (n *Net) Load(ctx context.Context, desc *Descriptor, kernel *Kernel, provider ParameterProvider) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return InferenceError("load", errClosed)
	}
	if n.loaded {
		return LoaderError("load", errors.New("net already loaded"))
	}
	if len(n.backends) == 0 {
		return ConfigurationError("load", errors.New("no inference backend"))
	}
	if desc == nil {
		return ModelDataError("load", errors.New("nil descriptor"))
	}
	if err := desc.Validate(); err != nil {
		return err
	}

	for _, b := range n.backends {
		if err := b.Supported(); err != nil {
			return classify(ErrConfiguration, "check backend "+b.Name(), err)
		}
	}

	if kernel == nil {
		kernel = desc.DefaultKernel()
	}

	model := &Model{Descriptor: desc, Kernel: kernel, Graph: desc.path(desc.Graph)}
	if model.Graph != "" {
		if _, err := os.Stat(model.Graph); err != nil {
			return LoaderError("find graph", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return LoaderError("load", err)
	}

	params, err := resolveParameters(desc.Parameters, provider)
	if err != nil {
		return err
	}
	model.Parameters = params

	var labels Labels
	if desc.Labels != "" {
		labels, err = LoadLabels(desc.path(desc.Labels))
		if err != nil {
			return err
		}
		if classes := desc.Classes(); classes > 0 && len(labels) != classes {
			return ModelDataError("check labels", fmt.Errorf("%d labels for %d output classes", len(labels), classes))
		}
	}

	if err := ctx.Err(); err != nil {
		return LoaderError("load", err)
	}

	for i, b := range n.backends {
		if err := b.Open(model); err != nil {
			for _, opened := range n.backends[:i] {
				opened.Close()
			}
			return classify(ErrModelData, "open backend "+b.Name(), err)
		}
	}

	n.desc = desc
	n.labels = labels
	n.jobs = make(chan job, n.opts.QueueSize)
	n.loaded = true

	for i, b := range n.backends {
		n.wg.Add(1)
		go n.worker(i, b, n.jobs)
	}

	n.logger.Info("Model %s loaded on %d %s worker(s), kernel %s %dx%d",
		desc.Name, len(n.backends), n.backends[0].Name(), kernel.Name, kernel.Width, kernel.Height)
	return nil
}

// Loaded reports whether Load succeeded and Close has not been called.
func (n *Net) Loaded() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.loaded && !n.closed
}

// Predict queues frame and returns immediately; done is called later from a
// worker goroutine. An error is returned, and done is not called, when the
// net is not loaded, closed or its queue is full.
func (n *Net) Predict(frame *capture.Frame, done PredictFunc) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	switch {
	case n.closed:
		return InferenceError("predict", errClosed)
	case !n.loaded:
		return InferenceError("predict", errNotLoaded)
	}

	select {
	case n.jobs <- job{frame: frame, done: done}:
		return nil
	default:
		return InferenceError("predict", errQueueFull)
	}
}

func (n *Net) worker(id int, backend Backend, jobs <-chan job) {
	defer n.wg.Done()

	for j := range jobs {
		n.run(backend, j)
	}
	n.logger.Info("Inference worker %d stopped", id)
}

func (n *Net) run(backend Backend, j job) {
	start := time.Now()

	scores, err := backend.Infer(j.frame)
	if err != nil {
		j.done(nil, classify(ErrInference, "predict frame "+j.frame.ID.String(), err))
		return
	}
	if len(scores) == 0 {
		j.done(nil, InferenceError("predict frame "+j.frame.ID.String(), errors.New("empty output")))
		return
	}

	if n.desc.Softmax {
		Softmax(scores)
	}

	j.done(&Result{
		FrameID:     j.frame.ID,
		Camera:      j.frame.Camera,
		Timestamp:   j.frame.Timestamp,
		Elapsed:     time.Since(start),
		Predictions: TopK(scores, n.opts.TopK, n.labels),
	}, nil)
}

// Close stops accepting frames, lets queued frames finish and closes the
// backends.
func (n *Net) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	wasLoaded := n.loaded
	if n.jobs != nil {
		close(n.jobs)
	}
	n.mu.Unlock()

	n.wg.Wait()

	if !wasLoaded {
		return nil
	}
	var errs []error
	for _, b := range n.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}
