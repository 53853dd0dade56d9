// Package service holds types shared across the service layer.
package service

// ValidationError marks a request rejected for malformed or missing input,
// as opposed to a domain rule violation. The HTTP layer maps it to 400.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}
