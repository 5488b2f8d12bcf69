package conversation

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrEmptyMessage      = errors.New("message content is empty")
	ErrForeignMessage    = errors.New("message belongs to another conversation")
	ErrInvalidStatus     = errors.New("invalid assessment status change")
)

// TransitionError describes a rejected state change.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
