package memnet

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrNotImplemented is returned when building a network that has no hop forwarding strategy.
	ErrNotImplemented = errors.New("memory network has no hop forwarding strategy")

	// ErrNoMemory is returned when an Input carries neither memory ids nor soft memory.
	ErrNoMemory = errors.New("input has neither memory ids nor soft memory")

	// ErrAmbiguousMemory is returned when an Input carries both memory ids and soft memory.
	ErrAmbiguousMemory = errors.New("input has both memory ids and soft memory")
)

// ConfigError is an illegal configuration value. It is always detected before any computation.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (err *ConfigError) Error() string {
	return fmt.Sprintf("%s = %v is illegal: %s", err.Field, err.Value, err.Reason)
}

// ShapeError reports two things that were combined with inconsistent shapes.
type ShapeError struct {
	What string
	Want tensor.Shape
	Got  tensor.Shape
}

func (err *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch in %s: expected %v, got %v", err.What, err.Want, err.Got)
}

func shapeErr(what string, want, got tensor.Shape) error {
	return errors.WithStack(&ShapeError{What: what, Want: want.Clone(), Got: got.Clone()})
}
