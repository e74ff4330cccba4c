// Package opencv runs classification networks through the OpenCV DNN module.
package opencv

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"camnet/internal/logger"
	"camnet/internal/service/ai"
	"camnet/internal/service/capture"

	"gocv.io/x/gocv"
)

var targets = map[string]struct {
	backend gocv.NetBackendType
	target  gocv.NetTargetType
}{
	"cpu":    {gocv.NetBackendDefault, gocv.NetTargetCPU},
	"opencl": {gocv.NetBackendOpenCV, gocv.NetTargetFP32},
	"cuda":   {gocv.NetBackendCUDA, gocv.NetTargetCUDA},
}

// Backend is one OpenCV network instance.
type Backend struct {
	target string
	logger *logger.Logger

	net    gocv.Net
	model  *ai.Model
	output string
	opened bool
}

// New creates a backend for target ("cpu", "opencl" or "cuda").
func New(target string, logger *logger.Logger) *Backend {
	if target == "" {
		target = "cpu"
	}
	return &Backend{target: strings.ToLower(target), logger: logger}
}

// Pool creates n backends sharing the same target.
func Pool(n int, target string, logger *logger.Logger) []ai.Backend {
	if n <= 0 {
		n = 1
	}
	backends := make([]ai.Backend, n)
	for i := range backends {
		backends[i] = New(target, logger)
	}
	return backends
}

func (b *Backend) Name() string {
	return "opencv/" + b.target
}

func (b *Backend) Supported() error {
	if _, ok := targets[b.target]; !ok {
		return fmt.Errorf("unsupported inference target %q", b.target)
	}
	return nil
}

// Open reads the network. Caffe models declare the prototxt as graph and the
// weights as their only parameter; single-file formats declare only a graph
// or only a parameter.
func (b *Backend) Open(model *ai.Model) error {
	if b.opened {
		return errors.New("backend already open")
	}

	weights, config := networkFiles(model)
	if weights == "" {
		return errors.New("no network file to read")
	}

	net := gocv.ReadNet(weights, config)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", filepath.Base(weights))
	}

	pref := targets[b.target]
	errBackend := net.SetPreferableBackend(pref.backend)
	errTarget := net.SetPreferableTarget(pref.target)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target: %w", errors.Join(errBackend, errTarget))
	}

	b.net = net
	b.model = model
	b.output = model.Descriptor.Output.Name
	b.opened = true
	b.logger.Info("OpenCV network %s opened on %s", model.Descriptor.Name, b.target)
	return nil
}

func networkFiles(model *ai.Model) (weights, config string) {
	switch {
	case len(model.Parameters) > 0:
		return model.Parameters[0].Path, model.Graph
	default:
		return model.Graph, ""
	}
}

// Infer decodes the JPEG frame, builds the input blob with the model kernel
// and returns the output scores.
func (b *Backend) Infer(frame *capture.Frame) ([]float32, error) {
	if !b.opened {
		return nil, errors.New("network not open")
	}

	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.New("decoded image is empty")
	}

	k := b.model.Kernel
	blob := gocv.BlobFromImage(mat, k.Scale, image.Pt(k.Width, k.Height),
		gocv.NewScalar(k.Mean[0], k.Mean[1], k.Mean[2], 0), k.SwapRB, false)
	defer blob.Close()

	b.net.SetInput(blob, b.model.Descriptor.Input.Name)

	output := b.net.Forward(b.output)
	defer output.Close()

	if output.Empty() {
		return nil, errors.New("network produced no output")
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	scores := make([]float32, len(data))
	copy(scores, data)
	return scores, nil
}

func (b *Backend) Close() error {
	if !b.opened {
		return nil
	}
	b.opened = false
	return b.net.Close()
}
