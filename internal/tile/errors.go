package tile

import "errors"

// planViolationError signals compose input that contradicts its plan:
// a missing, duplicate or wrongly sized result. It marks a programming
// error upstream, never bad user input.
type planViolationError struct{ reason string }

func (e planViolationError) Error() string { return "plan violation: " + e.reason }

// ErrPlanViolation constructs a planViolationError.
func ErrPlanViolation(reason string) error { return planViolationError{reason: reason} }

// IsPlanViolation reports whether err indicates a compose/plan mismatch.
func IsPlanViolation(err error) bool {
	var pv planViolationError
	return errors.As(err, &pv)
}
