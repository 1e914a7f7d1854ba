// Package failure defines the three terminal failure kinds surfaced by the
// scoring core. None of them is retried inside the core.
package failure

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration covers a missing model artifact or a feature-order
	// mismatch between a loaded artifact and the engine.
	ErrConfiguration = errors.New("configuration error")

	// ErrTrainingData covers empty sets, single-class labels and missing or
	// non-numeric training columns.
	ErrTrainingData = errors.New("training data error")

	// ErrMalformedInput covers a request record with a missing field or a
	// non-numeric value.
	ErrMalformedInput = errors.New("malformed input")
)

// Error carries a failure kind, the operation that failed, and the cause.
// errors.Is matches both the kind and anything in the cause chain.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Configuration wraps err as a configuration failure of op.
func Configuration(op string, err error) error {
	return &Error{Kind: ErrConfiguration, Op: op, Err: err}
}

// TrainingData wraps err as a training data failure of op.
func TrainingData(op string, err error) error {
	return &Error{Kind: ErrTrainingData, Op: op, Err: err}
}

// MalformedInput wraps err as a malformed input failure of op.
func MalformedInput(op string, err error) error {
	return &Error{Kind: ErrMalformedInput, Op: op, Err: err}
}

// Kind returns the failure kind carried by err, or nil when err is not one
// of the three kinds.
func Kind(err error) error {
	for _, k := range []error{ErrConfiguration, ErrTrainingData, ErrMalformedInput} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
