package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for classification with errors.Is.
var (
	ErrMissingInput     = errors.New("missing input")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrDegenerateClass  = errors.New("degenerate class")
	ErrTimeCoverageGap  = errors.New("time coverage gap")
	ErrUnknownRegion    = errors.New("unknown region")
	ErrUnknownThreshold = errors.New("unknown threshold kind")
)

// MissingInputError reports an absent forecast, observation or threshold
// input. The affected unit is skipped; other units continue.
type MissingInputError struct {
	Kind     string // forecast, observation, threshold
	Variable string
	Key      string // YYYYMM, YYYY or climatology period
	Path     string
	Err      error
}

func (e *MissingInputError) Error() string {
	msg := fmt.Sprintf("missing %s input for %s %s", e.Kind, e.Variable, e.Key)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingInputError) Unwrap() error { return e.Err }

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// ShapeMismatchError reports fields that cannot be combined because their
// dimensions or spatial coordinates disagree.
type ShapeMismatchError struct {
	Op     string
	Detail string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: %s", e.Op, e.Detail)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// DegenerateClassError is returned when a ROC curve is requested for a sample
// with fewer than two observed classes.
type DegenerateClassError struct {
	Lead     int
	Category Category
	Classes  int
}

func (e *DegenerateClassError) Error() string {
	return fmt.Sprintf("roc lead %d category %s: %d observed class(es)", e.Lead, e.Category, e.Classes)
}

func (e *DegenerateClassError) Is(target error) bool { return target == ErrDegenerateClass }

// TimeCoverageGapError lists forecast valid times absent from the
// observations. It is informational; scoring proceeds on the intersection.
type TimeCoverageGapError struct {
	Missing []Month
}

func (e *TimeCoverageGapError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		parts[i] = m.String()
	}
	return "observations missing valid times " + strings.Join(parts, ", ")
}

func (e *TimeCoverageGapError) Is(target error) bool { return target == ErrTimeCoverageGap }
