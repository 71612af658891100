package grouplasso

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNonConvergence = errors.New("iteration cap reached before convergence")
	ErrPluginContract = errors.New("link/loss plugin contract violated")
)

// InputError describes a problem or configuration rejected before optimization begins.
type InputError struct {
	Field   string // Offending field (e.g. "W", "Groups[2]", "Gamma")
	Details string
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput, e.Field, e.Details)
}

// Unwrap allows errors.Is(err, ErrInvalidInput).
func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Details: fmt.Sprintf(format, args...)}
}

// PluginError reports a link, loss or gradient returning an unusable value.
type PluginError struct {
	Plugin string // "link", "loss" or "gradient"
	Family string
	Value  float64
}

// Error implements the error interface.
func (e *PluginError) Error() string {
	return fmt.Sprintf("%s: %s %s produced %v", ErrPluginContract, e.Family, e.Plugin, e.Value)
}

// Unwrap allows errors.Is(err, ErrPluginContract).
func (e *PluginError) Unwrap() error { return ErrPluginContract }

// ConvergenceError lists the path steps that stopped on an iteration cap.
// It is a report, not a failure: the coefficients of those steps are the
// last iterate.
type ConvergenceError struct {
	Steps   []int
	Lambdas []float64
}

// Error implements the error interface.
func (e *ConvergenceError) Error() string {
	parts := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		parts[i] = fmt.Sprintf("%d (λ=%.4g)", s, e.Lambdas[i])
	}
	return fmt.Sprintf("%s at steps %s", ErrNonConvergence, strings.Join(parts, ", "))
}

// Unwrap allows errors.Is(err, ErrNonConvergence).
func (e *ConvergenceError) Unwrap() error { return ErrNonConvergence }
