package conversation

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the author of a message.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageUser, MessageAssistant, MessageSystem:
		return true
	default:
		return false
	}
}

// Message is a single conversation entry. It is not modified after creation.
type Message struct {
	ID             string         `json:"id"`
	Type           MessageType    `json:"type"`
	Content        string         `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	ConversationID string         `json:"conversation_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewMessage builds a message stamped with the current time.
func NewMessage(conversationID string, typ MessageType, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyMessage
	}
	if !typ.Valid() {
		return Message{}, fmt.Errorf("unknown message type %q", typ)
	}
	return Message{
		ID:             uuid.NewString(),
		Type:           typ,
		Content:        content,
		Timestamp:      time.Now().UTC(),
		ConversationID: conversationID,
	}, nil
}

// WithMetadata returns a copy of m carrying the extra key.
func (m Message) WithMetadata(key string, value any) Message {
	md := make(map[string]any, len(m.Metadata)+1)
	maps.Copy(md, m.Metadata)
	md[key] = value
	m.Metadata = md
	return m
}

func (m Message) IsUser() bool { return m.Type == MessageUser }
