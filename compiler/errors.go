package compiler

import (
	"fmt"

	"github.com/pkg/errors"
)

// OrderingError reports that compilation reached a node before one of its
// dependencies: a layer before its inputs, or a parameter reference before
// its owning layer. It always indicates a bug in the traversal order, never
// bad user input.
type OrderingError struct {
	Subject string
	Reason  string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("compilation of %s is out of order: %s", e.Subject, e.Reason)
}

func orderingErrorf(subject, format string, args ...any) error {
	return errors.WithStack(&OrderingError{Subject: subject, Reason: fmt.Sprintf(format, args...)})
}
