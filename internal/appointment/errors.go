package appointment

import "errors"

var (
	ErrInvalidDate    = errors.New("Invalid appointment date")
	ErrEndBeforeStart = errors.New("End date must be after start date")
)

// ValidationError reports why raw input could not become an appointment.
// Message is safe to show to the end user.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}
