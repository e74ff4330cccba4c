package ai

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrLoader: a model, parameter or label file could not be found or read.
	ErrLoader = errors.New("loader error")
	// ErrModelData: a file was found but its content is malformed or does not
	// match what the descriptor declares.
	ErrModelData = errors.New("model data error")
	// ErrInference: a prediction could not be run.
	ErrInference = errors.New("inference error")
	// ErrConfiguration: the requested model or backend cannot run on this
	// machine or with this configuration. Startup cannot continue.
	ErrConfiguration = errors.New("configuration error")
)

// Error describes a failed engine operation.
type Error struct {
	Kind error  // one of the Err* sentinels
	Op   string // operation, e.g. "load descriptor"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// LoaderError wraps err as a loader failure of op.
func LoaderError(op string, err error) error { return newError(ErrLoader, op, err) }

// ModelDataError wraps err as a model data failure of op.
func ModelDataError(op string, err error) error { return newError(ErrModelData, op, err) }

// InferenceError wraps err as an inference failure of op.
func InferenceError(op string, err error) error { return newError(ErrInference, op, err) }

// ConfigurationError wraps err as a configuration failure of op.
func ConfigurationError(op string, err error) error { return newError(ErrConfiguration, op, err) }

// classify keeps engine errors as they are and files anything else under kind.
func classify(kind error, op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(kind, op, err)
}
