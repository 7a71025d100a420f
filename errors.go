package sortbuf

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocationFailure is matched by every *AllocationError.
	ErrAllocationFailure = errors.New("sortbuf: allocation failure")

	// ErrUseAfterFinalize is returned when an inserter is used after it was finalized,
	// or finalized a second time.
	ErrUseAfterFinalize = errors.New("sortbuf: inserter already finalized")

	// ErrPrematureConsumption is returned when a buffer is turned into an iterator
	// while inserters attached to it are still live.
	ErrPrematureConsumption = errors.New("sortbuf: buffer consumed while inserters are live")

	// ErrConsumed is returned by operations on a buffer that was already turned into
	// an iterator.
	ErrConsumed = errors.New("sortbuf: buffer already consumed")
)

// AllocationError reports memory that could not be reserved. The structure that
// returned it is unchanged and remains usable.
type AllocationError struct {
	// Requested is the number of bytes that could not be reserved
	Requested int64
	// Items is the number of items the allocation was meant to hold
	Items int
	// Cause is the refusal of the allocator or the recovered runtime panic
	Cause interface{}
}

func (e *AllocationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("allocation failure: cannot reserve %d bytes for %d items: %v", e.Requested, e.Items, e.Cause)
	}
	return fmt.Sprintf("allocation failure: cannot reserve %d bytes for %d items", e.Requested, e.Items)
}

func (e *AllocationError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// Is makes errors.Is(err, ErrAllocationFailure) hold for every AllocationError.
func (e *AllocationError) Is(target error) bool {
	return target == ErrAllocationFailure
}

// NewAllocationError creates an AllocationError
func NewAllocationError(cause interface{}, requested int64, items int) error {
	return &AllocationError{Cause: cause, Requested: requested, Items: items}
}

// ComparisonError represents an error that occurred during item comparison
type ComparisonError struct {
	// Cause is the original panic or error that occurred during comparison
	Cause interface{}
	// Context provides additional information about when the comparison failed
	Context string
}

func (e *ComparisonError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("comparison panic in %s: %v", e.Context, e.Cause)
	}
	return fmt.Sprintf("comparison panic: %v", e.Cause)
}

func (e *ComparisonError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// NewComparisonError creates a ComparisonError
func NewComparisonError(cause interface{}, context string) error {
	return &ComparisonError{Cause: cause, Context: context}
}

// ConfigError represents an error in configuration parameters
type ConfigError struct {
	// Field is the name of the configuration field that's invalid
	Field string
	// Value is the invalid value provided
	Value interface{}
	// Reason explains why the value is invalid
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field %s (value: %v): %s", e.Field, e.Value, e.Reason)
}
