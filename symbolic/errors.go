package symbolic

import (
	"fmt"

	"github.com/pkg/errors"
)

// The error taxonomy of the symbolic IR. Nothing here is retried: every
// failure reflects either a malformed graph or a missing registration, both
// of which require caller action. Callers discriminate with errors.As; all
// constructors below attach a stack trace with github.com/pkg/errors.

// ConfigurationError reports invalid layer or parameter hyperparameters at
// construction time. It is always local and fatal to that construction call.
type ConfigurationError struct {
	Subject string // layer or parameter being constructed
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration of %s: %s", e.Subject, e.Reason)
}

func configErrorf(subject, format string, args ...any) error {
	return errors.WithStack(&ConfigurationError{Subject: subject, Reason: fmt.Sprintf(format, args...)})
}

// ShapeError reports a parameter-expression operand shape mismatch.
type ShapeError struct {
	Op     string // parameter operator being constructed
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: incompatible operand shapes: %s", e.Op, e.Reason)
}

func shapeErrorf(op, format string, args ...any) error {
	return errors.WithStack(&ShapeError{Op: op, Reason: fmt.Sprintf(format, args...)})
}

// StructuralPropertyError reports that an operator's structural precondition
// (smoothness, decomposability or compatibility) does not hold on the operand
// circuit(s).
type StructuralPropertyError struct {
	Property string
	Reason   string
}

func (e *StructuralPropertyError) Error() string {
	return fmt.Sprintf("structural property %s violated: %s", e.Property, e.Reason)
}

func structuralPropertyErrorf(property, format string, args ...any) error {
	return errors.WithStack(&StructuralPropertyError{Property: property, Reason: fmt.Sprintf(format, args...)})
}

// NoRuleError reports a registry miss: no rewrite or compilation rule is
// registered for the given operator and subject type. The message identifies
// both, to guide extension through registration.
type NoRuleError struct {
	Operator string
	Subject  string
}

func (e *NoRuleError) Error() string {
	return fmt.Sprintf("no rule registered for operator %s over %s", e.Operator, e.Subject)
}

func noRuleErrorf(operator, subject string) error {
	return errors.WithStack(&NoRuleError{Operator: operator, Subject: subject})
}

// CyclicGraphError reports a failed topological sort: the layer (or circuit
// pipeline) graph has at least one cycle, indicating a construction bug.
type CyclicGraphError struct {
	Reason string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("graph is cyclic: %s", e.Reason)
}

func cyclicGraphErrorf(format string, args ...any) error {
	return errors.WithStack(&CyclicGraphError{Reason: fmt.Sprintf(format, args...)})
}

// NotSupportedError reports a deliberate restriction of the IR, e.g.
// multivariate integration over a proper subset of an input layer's scope.
type NotSupportedError struct {
	Reason string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("not supported: %s", e.Reason)
}

func notSupportedErrorf(format string, args ...any) error {
	return errors.WithStack(&NotSupportedError{Reason: fmt.Sprintf(format, args...)})
}

// StructuralError reports a malformed input graph, e.g. a region-graph node
// that is neither a region nor a partition.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed graph: %s", e.Reason)
}

func structuralErrorf(format string, args ...any) error {
	return errors.WithStack(&StructuralError{Reason: fmt.Sprintf(format, args...)})
}
