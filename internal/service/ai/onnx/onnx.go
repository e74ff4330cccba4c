// Package onnx runs classification networks with ONNX Runtime.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"camnet/internal/logger"
	"camnet/internal/service/ai"
	"camnet/internal/service/capture"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process wide; backends share it and the
// last one to close destroys it.
var env struct {
	mu   sync.Mutex
	refs int
}

func acquireEnvironment(libraryPath string) error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.refs == 0 {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	env.refs++
	return nil
}

func releaseEnvironment() error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.refs == 0 {
		return nil
	}
	env.refs--
	if env.refs == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

// Backend is one ONNX Runtime session with its own input and output
// tensors.
type Backend struct {
	libraryPath string
	target      string
	logger      *logger.Logger

	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	kernel       *ai.Kernel
	acquired     bool
}

// New creates a backend loading the runtime from libraryPath, or from the
// default location when empty. Only the "cpu" target is supported.
func New(libraryPath, target string, logger *logger.Logger) *Backend {
	if target == "" {
		target = "cpu"
	}
	return &Backend{libraryPath: libraryPath, target: strings.ToLower(target), logger: logger}
}

// Pool creates n backends sharing the same runtime.
func Pool(n int, libraryPath, target string, logger *logger.Logger) []ai.Backend {
	if n <= 0 {
		n = 1
	}
	backends := make([]ai.Backend, n)
	for i := range backends {
		backends[i] = New(libraryPath, target, logger)
	}
	return backends
}

func (b *Backend) Name() string {
	return "onnx/" + b.target
}

func (b *Backend) Supported() error {
	if b.target != "cpu" {
		return fmt.Errorf("unsupported inference target %q", b.target)
	}
	if b.libraryPath != "" {
		if _, err := os.Stat(b.libraryPath); err != nil {
			return fmt.Errorf("onnxruntime library: %w", err)
		}
	}
	return nil
}

// Open creates the session. The model file is the descriptor graph, or its
// only parameter when no graph is declared.
func (b *Backend) Open(model *ai.Model) error {
	if b.acquired {
		return errors.New("backend already open")
	}

	modelPath := model.Graph
	if modelPath == "" && len(model.Parameters) > 0 {
		modelPath = model.Parameters[0].Path
	}
	if modelPath == "" {
		return errors.New("no model file to read")
	}

	desc := model.Descriptor
	if len(desc.Output.Shape) == 0 {
		return errors.New("descriptor has no output shape")
	}
	if desc.Input.Shape[1] != 3 || int(desc.Input.Shape[2]) != model.Kernel.Height || int(desc.Input.Shape[3]) != model.Kernel.Width {
		return fmt.Errorf("input shape %v does not match kernel %s %dx%d",
			desc.Input.Shape, model.Kernel.Name, model.Kernel.Width, model.Kernel.Height)
	}

	if err := acquireEnvironment(b.libraryPath); err != nil {
		return err
	}
	b.acquired = true

	if err := b.createSession(modelPath, desc); err != nil {
		b.Close()
		return err
	}

	b.kernel = model.Kernel
	b.logger.Info("ONNX session for %s created", desc.Name)
	return nil
}

func (b *Backend) createSession(modelPath string, desc *ai.Descriptor) error {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(desc.Input.Shape...))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	b.inputTensor = inputTensor

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(desc.Output.Shape...))
	if err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	b.outputTensor = outputTensor

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{desc.Input.Name}, []string{desc.Output.Name},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}
	b.session = session
	return nil
}

func (b *Backend) Infer(frame *capture.Frame) ([]float32, error) {
	if b.session == nil {
		return nil, errors.New("session not open")
	}

	img, err := decode(frame.Data)
	if err != nil {
		return nil, err
	}
	if err := tensorize(img, b.kernel, b.inputTensor.GetData()); err != nil {
		return nil, err
	}

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := b.outputTensor.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

func (b *Backend) Close() error {
	var errs []error
	if b.session != nil {
		errs = append(errs, b.session.Destroy())
		b.session = nil
	}
	if b.inputTensor != nil {
		errs = append(errs, b.inputTensor.Destroy())
		b.inputTensor = nil
	}
	if b.outputTensor != nil {
		errs = append(errs, b.outputTensor.Destroy())
		b.outputTensor = nil
	}
	if b.acquired {
		b.acquired = false
		errs = append(errs, releaseEnvironment())
	}
	return errors.Join(errs...)
}
