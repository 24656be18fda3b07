package execution

import (
	"errors"
	"fmt"
)

// Error kinds. None of them is retried, every one of them fails the whole execution.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrEvaluation    = errors.New("evaluation error")
	ErrResource      = errors.New("resource error")
	ErrSource        = errors.New("source error")
)

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.err)
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.err}
}

func NewConfigurationError(err error) error {
	return &kindError{kind: ErrConfiguration, err: err}
}

func NewEvaluationError(err error) error {
	return &kindError{kind: ErrEvaluation, err: err}
}

func NewResourceError(err error) error {
	return &kindError{kind: ErrResource, err: err}
}

func NewSourceError(err error) error {
	return &kindError{kind: ErrSource, err: err}
}

// OperatorError attributes an error to the operator and partition it happened in.
type OperatorError struct {
	Operator  string
	Partition int
	Err       error
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("%s (partition %d): %s", e.Operator, e.Partition, e.Err)
}

func (e *OperatorError) Unwrap() error {
	return e.Err
}

// WrapOperatorError attributes err to the given operator, unless it's already attributed.
func WrapOperatorError(operator string, partition int, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperatorError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperatorError{
		Operator:  operator,
		Partition: partition,
		Err:       err,
	}
}
