package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation references a product the store
// does not know about.
var ErrNotFound = errors.New("product not found")

// ValidationError rejects malformed data before it reaches the database.
// Invalid observations are never coerced or silently dropped.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
