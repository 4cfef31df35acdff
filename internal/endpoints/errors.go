package endpoints

import "fmt"

// FieldError reports a missing or invalid business field. It is returned before anything is sent.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func missing(field string) error {
	return &FieldError{Field: field, Reason: "is required"}
}

func invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
