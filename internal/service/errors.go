package service

import "fmt"

// InvalidArgumentError rejects a request field before any work is done.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidArgument(field, reason string) error {
	return &InvalidArgumentError{Field: field, Reason: reason}
}
