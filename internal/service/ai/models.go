package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ModelType selects a bundled model together with its preprocessing kernel.
type ModelType string

const (
	SqueezeNet ModelType = "squeezenet"
	MobileNet  ModelType = "mobilenet"
)

// Kernel describes how a frame is turned into the network input:
// input = (pixel - Mean) * Scale, resized to Width x Height. Channels are fed
// in BGR order, or RGB when SwapRB is set; Mean follows the fed order.
type Kernel struct {
	Name   string
	Width  int
	Height int
	Scale  float64
	Mean   [3]float64
	SwapRB bool
}

type modelFiles struct {
	descriptor string
	bundle     string
	kernel     Kernel
}

var models = map[ModelType]modelFiles{
	SqueezeNet: {
		descriptor: "squeezenet.json",
		bundle:     "SqueezenetParameters",
		kernel: Kernel{
			Name:   "squeezenet",
			Width:  227,
			Height: 227,
			Scale:  1,
			Mean:   [3]float64{104, 117, 123},
		},
	},
	MobileNet: {
		descriptor: "mobileNetModel.json",
		bundle:     "MobileNetParameters",
		kernel: Kernel{
			Name:   "mobilenet",
			Width:  224,
			Height: 224,
			Scale:  0.017,
			Mean:   [3]float64{103.94, 116.78, 123.68},
		},
	},
}

// ParseModelType maps a configuration value to a ModelType.
func ParseModelType(s string) (ModelType, error) {
	t := ModelType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := models[t]; !ok {
		return "", ConfigurationError("select model", fmt.Errorf("unknown model type %q", s))
	}
	return t, nil
}

// KernelFor returns the preprocessing kernel of a model type.
func KernelFor(t ModelType) (*Kernel, error) {
	files, ok := models[t]
	if !ok {
		return nil, ConfigurationError("select kernel", fmt.Errorf("unknown model type %q", t))
	}
	kernel := files.kernel
	return &kernel, nil
}

// DefaultKernel derives a plain kernel from the descriptor's input shape.
func (d *Descriptor) DefaultKernel() *Kernel {
	w, h := d.InputSize()
	return &Kernel{Name: d.Name, Width: w, Height: h, Scale: 1}
}

// Resources are the files a model type needs on disk.
type Resources struct {
	Type            ModelType
	Descriptor      string
	ParameterBundle string
}

// ResolveResources finds the descriptor and parameter bundle of t inside dir.
// A missing resource is a configuration error: nothing can run without it.
func ResolveResources(dir string, t ModelType) (Resources, error) {
	files, ok := models[t]
	if !ok {
		return Resources{}, ConfigurationError("resolve resources", fmt.Errorf("unknown model type %q", t))
	}

	res := Resources{
		Type:            t,
		Descriptor:      filepath.Join(dir, files.descriptor),
		ParameterBundle: filepath.Join(dir, files.bundle),
	}

	if _, err := os.Stat(res.Descriptor); err != nil {
		return Resources{}, ConfigurationError("resolve resources", fmt.Errorf("can't find %s: %w", files.descriptor, err))
	}
	info, err := os.Stat(res.ParameterBundle)
	if err != nil {
		return Resources{}, ConfigurationError("resolve resources", fmt.Errorf("can't find %s: %w", files.bundle, err))
	}
	if !info.IsDir() {
		return Resources{}, ConfigurationError("resolve resources", fmt.Errorf("%s is not a directory", res.ParameterBundle))
	}
	return res, nil
}

// Provider returns a BundleProvider over the resource's parameter bundle.
func (r Resources) Provider() ParameterProvider {
	return BundleProvider(r.ParameterBundle, "bin")
}
