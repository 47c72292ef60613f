// pkg/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// ValidationError means a rule is no longer applicable to the working
// copy, for example its target column was already dropped. It is
// recorded as a non-fatal failed result and never aborts the run by
// itself.
type ValidationError struct {
	RuleID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %s not applicable: %s", e.RuleID, e.Reason)
}

// TransformationError means a rule failed while executing, for example
// a cast that cannot succeed on the observed values. Under FailFast it
// stops the bulk run.
type TransformationError struct {
	RuleID string
	Err    error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("rule %s failed: %v", e.RuleID, e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is (or wraps) a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransformationError reports whether err is (or wraps) a TransformationError
func IsTransformationError(err error) bool {
	var te *TransformationError
	return errors.As(err, &te)
}
