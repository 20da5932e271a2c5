package model

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed evaluation input. It is raised before
// any scoring runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ScoringUnavailableError reports that a scoring oracle could not produce a
// result: the call failed, timed out, or came back empty.
type ScoringUnavailableError struct {
	Source string
	Err    error
}

func (e *ScoringUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scoring unavailable: %s", e.Source)
	}
	return fmt.Sprintf("scoring unavailable: %s: %v", e.Source, e.Err)
}

func (e *ScoringUnavailableError) Unwrap() error {
	return e.Err
}

// DecisionFormatError reports a decision oracle response that violates the
// two-integer contract. It is never coerced into a decision.
type DecisionFormatError struct {
	Raw    string
	Reason string
}

func (e *DecisionFormatError) Error() string {
	return fmt.Sprintf("invalid decision %q: %s", e.Raw, e.Reason)
}

// IsValidation reports whether err (or any error in its chain) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsScoringUnavailable reports whether err (or any error in its chain) is a
// ScoringUnavailableError.
func IsScoringUnavailable(err error) bool {
	var se *ScoringUnavailableError
	return errors.As(err, &se)
}

// IsDecisionFormat reports whether err (or any error in its chain) is a
// DecisionFormatError.
func IsDecisionFormat(err error) bool {
	var de *DecisionFormatError
	return errors.As(err, &de)
}
