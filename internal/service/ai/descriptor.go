package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TensorSpec names a model input or output and its shape.
type TensorSpec struct {
	Name  string  `json:"name"`
	Shape []int64 `json:"shape"`
}

// ParameterSpec declares one parameter blob the model needs. Count is the
// number of float32 values a raw ".bin" blob must hold; zero skips the check
// for opaque formats such as .caffemodel or .onnx.
type ParameterSpec struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Descriptor is the JSON model description shipped next to the parameters.
type Descriptor struct {
	Name       string          `json:"name"`
	Graph      string          `json:"graph"`
	Input      TensorSpec      `json:"input"`
	Output     TensorSpec      `json:"output"`
	Parameters []ParameterSpec `json:"parameters"`
	Labels     string          `json:"labels"`
	Softmax    bool            `json:"softmax"`

	// Dir is the directory the descriptor was read from; relative paths in
	// the descriptor are resolved against it.
	Dir string `json:"-"`
}

// ReadDescriptor loads and validates a descriptor file.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, LoaderError("read descriptor", err)
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, ModelDataError("parse descriptor", fmt.Errorf("%s: %w", path, err))
	}
	desc.Dir = filepath.Dir(path)

	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &desc, nil
}

// Validate checks the descriptor for missing or inconsistent fields.
func (d *Descriptor) Validate() error {
	if d.Graph == "" && len(d.Parameters) == 0 {
		return ModelDataError("validate descriptor", errors.New("neither graph nor parameters declared"))
	}
	if len(d.Input.Shape) != 4 {
		return ModelDataError("validate descriptor", fmt.Errorf("input shape %v is not NCHW", d.Input.Shape))
	}
	for _, dim := range d.Input.Shape {
		if dim <= 0 {
			return ModelDataError("validate descriptor", fmt.Errorf("input shape %v has a non-positive dimension", d.Input.Shape))
		}
	}
	for _, p := range d.Parameters {
		if p.Name == "" {
			return ModelDataError("validate descriptor", errors.New("parameter without a name"))
		}
		if p.Count < 0 {
			return ModelDataError("validate descriptor", fmt.Errorf("parameter %s has negative count", p.Name))
		}
	}
	return nil
}

// Classes returns the number of output classes, or 0 if the output shape is
// not declared.
func (d *Descriptor) Classes() int {
	if len(d.Output.Shape) == 0 {
		return 0
	}
	return int(d.Output.Shape[len(d.Output.Shape)-1])
}

// InputSize returns the input width and height.
func (d *Descriptor) InputSize() (width, height int) {
	return int(d.Input.Shape[3]), int(d.Input.Shape[2])
}

// path resolves a descriptor-relative file name.
func (d *Descriptor) path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}
