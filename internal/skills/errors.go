package skills

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction   = errors.New("skill extraction failed")
	ErrEmptyMessage = errors.New("message is empty")
	ErrMapping      = errors.New("skill mapping failed")
)

// IndexError reports a disambiguation answer outside the candidate list.
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("candidate index %d out of range [0, %d)", e.Index, e.Count)
}

func (e *IndexError) Unwrap() error { return ErrMapping }
