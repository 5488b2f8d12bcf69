package conversation

import (
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/spigell/skill-mapper/internal/competency"
)

// Conversation holds the dialogue of one assessment. All mutations go
// through methods and are serialized by an internal mutex.
type Conversation struct {
	ID           string
	AssessmentID string

	mu           sync.RWMutex
	state        State
	enteredAt    int
	messages     []Message
	competencies []*competency.Mapped
	history      []State
	metadata     map[string]any
}

// New starts a conversation in the initializing state. An empty id is
// replaced with a generated one.
func New(id, assessmentID string) *Conversation {
	if id == "" {
		id = uuid.NewString()
	}
	return &Conversation{
		ID:           id,
		AssessmentID: assessmentID,
		state:        StateInitializing,
		history:      []State{StateInitializing},
		metadata:     map[string]any{},
	}
}

// Snapshot is the persisted form of a conversation.
type Snapshot struct {
	ID           string
	AssessmentID string
	State        State
	EnteredAt    int
	Messages     []Message
	Competencies []*competency.Mapped
	History      []State
	Metadata     map[string]any
}

// Restore rebuilds a conversation from storage.
func Restore(s Snapshot) (*Conversation, error) {
	if !s.State.Valid() {
		return nil, fmt.Errorf("restore conversation %s: unknown state %q", s.ID, s.State)
	}
	c := New(s.ID, s.AssessmentID)
	c.state = s.State
	c.enteredAt = s.EnteredAt
	c.messages = append([]Message(nil), s.Messages...)
	for _, m := range s.Competencies {
		c.competencies = append(c.competencies, m.Clone())
	}
	if len(s.History) > 0 {
		c.history = append([]State(nil), s.History...)
	}
	if s.Metadata != nil {
		c.metadata = maps.Clone(s.Metadata)
	}
	return c, nil
}

// Snapshot copies the current contents.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	comps := make([]*competency.Mapped, 0, len(c.competencies))
	for _, m := range c.competencies {
		comps = append(comps, m.Clone())
	}
	return Snapshot{
		ID:           c.ID,
		AssessmentID: c.AssessmentID,
		State:        c.state,
		EnteredAt:    c.enteredAt,
		Messages:     append([]Message(nil), c.messages...),
		Competencies: comps,
		History:      append([]State(nil), c.history...),
		Metadata:     maps.Clone(c.metadata),
	}
}

func (c *Conversation) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AppendMessage adds msg to the end of the dialogue.
func (c *Conversation) AppendMessage(msg Message) error {
	if msg.ConversationID != "" && msg.ConversationID != c.ID {
		return fmt.Errorf("%w: %s", ErrForeignMessage, msg.ID)
	}
	if msg.Content == "" {
		return ErrEmptyMessage
	}
	msg.ConversationID = c.ID

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

// AppendCompetency attaches a resolved competency to the conversation.
func (c *Conversation) AppendCompetency(m *competency.Mapped) error {
	if m == nil {
		return fmt.Errorf("nil competency")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ConversationID == "" {
		m.ConversationID = c.ID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.competencies = append(c.competencies, m)
	return nil
}

func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Message(nil), c.messages...)
}

// LastMessages returns up to n most recent messages, oldest first.
func (c *Conversation) LastMessages(n int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := max(len(c.messages)-n, 0)
	return append([]Message(nil), c.messages[start:]...)
}

func (c *Conversation) MessageCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

func (c *Conversation) UserMessageCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userMessages()
}

// UserTurnsInState counts user messages received since the current state
// was entered.
func (c *Conversation) UserTurnsInState() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userMessages() - c.enteredAt
}

func (c *Conversation) userMessages() int {
	n := 0
	for _, m := range c.messages {
		if m.IsUser() {
			n++
		}
	}
	return n
}

// Competencies returns copies of the attached competencies.
func (c *Conversation) Competencies() []*competency.Mapped {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*competency.Mapped, 0, len(c.competencies))
	for _, m := range c.competencies {
		out = append(out, m.Clone())
	}
	return out
}

// History lists every state the conversation has been in, in order.
func (c *Conversation) History() []State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]State(nil), c.history...)
}

func (c *Conversation) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

func (c *Conversation) Metadata(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// moveTo checks the transition table and switches state atomically.
func (c *Conversation) moveTo(target State) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.state
	if !from.CanTransitionTo(target) {
		return from, &TransitionError{From: from, To: target}
	}
	c.state = target
	c.enteredAt = c.userMessages()
	c.history = append(c.history, target)
	return from, nil
}
