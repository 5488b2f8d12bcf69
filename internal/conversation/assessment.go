package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle stage of an assessment.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
)

// Assessment is one user's mapping session. It owns its conversation and
// is not safe for concurrent use; callers serialize access per assessment.
type Assessment struct {
	ID           string
	UserID       string
	Framework    string
	Status       Status
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Conversation *Conversation

	now func() time.Time
}

func NewAssessment(userID, framework string) (*Assessment, error) {
	if userID == "" {
		return nil, errors.New("user id is required for assessment")
	}
	return &Assessment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Framework: framework,
		Status:    StatusNotStarted,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (a *Assessment) clock() time.Time {
	if a.now == nil {
		return time.Now().UTC()
	}
	return a.now()
}

// Start opens the conversation.
func (a *Assessment) Start() error {
	if a.Status != StatusNotStarted {
		return fmt.Errorf("%w: start from %s", ErrInvalidStatus, a.Status)
	}
	started := a.clock()
	a.Status = StatusInProgress
	a.StartedAt = &started
	if a.Conversation == nil {
		a.Conversation = New("", a.ID)
	}
	return nil
}

func (a *Assessment) Pause() error {
	if a.Status != StatusInProgress {
		return fmt.Errorf("%w: pause from %s", ErrInvalidStatus, a.Status)
	}
	a.Status = StatusPaused
	return nil
}

func (a *Assessment) Resume() error {
	if a.Status != StatusPaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidStatus, a.Status)
	}
	a.Status = StatusInProgress
	return nil
}

// Complete closes the assessment and walks its conversation to the
// completed state through legal transitions.
func (a *Assessment) Complete(m *Machine) error {
	if a.Status != StatusInProgress && a.Status != StatusPaused {
		return fmt.Errorf("%w: complete from %s", ErrInvalidStatus, a.Status)
	}
	if a.Conversation != nil {
		if err := m.Finish(a.Conversation); err != nil {
			return fmt.Errorf("finish conversation: %w", err)
		}
	}
	completed := a.clock()
	a.Status = StatusCompleted
	a.CompletedAt = &completed
	return nil
}

// Duration is zero until the assessment is completed.
func (a *Assessment) Duration() time.Duration {
	if a.StartedAt == nil || a.CompletedAt == nil {
		return 0
	}
	return a.CompletedAt.Sub(*a.StartedAt)
}
