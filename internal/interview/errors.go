package interview

import (
	"errors"

	"github.com/spigell/skill-mapper/internal/competency"
)

var (
	ErrConversationCompleted = errors.New("conversation is completed")
	ErrMissingDependency     = errors.New("missing engine dependency")
)

// ClaimFailure records a claim that could not be resolved or stored.
type ClaimFailure struct {
	Claim competency.Claim
	Err   error
}

func (f ClaimFailure) Error() string {
	return f.Claim.Name + ": " + f.Err.Error()
}

func (f ClaimFailure) Unwrap() error { return f.Err }
