package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/spigell/skill-mapper/internal/competency"
	"github.com/spigell/skill-mapper/internal/conversation"
)

type AssessmentRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"index;size:128;not null"`
	Framework   string `gorm:"size:128"`
	Status      string `gorm:"size:32;not null"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (AssessmentRecord) TableName() string { return "assessments" }

type ConversationRecord struct {
	ID           string         `gorm:"primaryKey;size:64"`
	AssessmentID string         `gorm:"index;size:64"`
	State        string         `gorm:"size:32;not null"`
	EnteredAt    int            `gorm:"not null;default:0"`
	History      datatypes.JSON
	Metadata     datatypes.JSON
	Messages     []MessageRecord    `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	Competencies []CompetencyRecord `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ConversationRecord) TableName() string { return "conversations" }

type MessageRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	ConversationID string `gorm:"index:idx_messages_conversation_seq,priority:1;size:64;not null"`
	Seq            int    `gorm:"index:idx_messages_conversation_seq,priority:2;not null"`
	Type           string `gorm:"size:16;not null"`
	Content        string `gorm:"type:text;not null"`
	Metadata       datatypes.JSON
	Timestamp      time.Time
}

func (MessageRecord) TableName() string { return "messages" }

type CompetencyRecord struct {
	ID              string  `gorm:"primaryKey;size:64"`
	ConversationID  string  `gorm:"index;size:64;not null"`
	SourceMessageID string  `gorm:"index;size:64"`
	TaxonomyURI     string  `gorm:"size:512;not null"`
	Title           string  `gorm:"size:512"`
	Confidence      float64 `gorm:"not null"`
	FrameworkSource string  `gorm:"size:128"`
	Evidence        datatypes.JSON
	Metadata        datatypes.JSON
	CreatedAt       time.Time
}

func (CompetencyRecord) TableName() string { return "mapped_competencies" }

func marshalJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func unmarshalJSON[T any](raw datatypes.JSON) (T, error) {
	var out T
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}

func newMessageRecord(msg conversation.Message, seq int) (*MessageRecord, error) {
	md, err := marshalJSON(msg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal message metadata: %w", err)
	}
	return &MessageRecord{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Seq:            seq,
		Type:           string(msg.Type),
		Content:        msg.Content,
		Metadata:       md,
		Timestamp:      msg.Timestamp,
	}, nil
}

func (r MessageRecord) toMessage() (conversation.Message, error) {
	md, err := unmarshalJSON[map[string]any](r.Metadata)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("message %s metadata: %w", r.ID, err)
	}
	return conversation.Message{
		ID:             r.ID,
		Type:           conversation.MessageType(r.Type),
		Content:        r.Content,
		Timestamp:      r.Timestamp,
		ConversationID: r.ConversationID,
		Metadata:       md,
	}, nil
}

func newCompetencyRecord(m *competency.Mapped) (*CompetencyRecord, error) {
	evidence, err := marshalJSON(m.Evidence)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}
	md, err := marshalJSON(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal competency metadata: %w", err)
	}
	return &CompetencyRecord{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SourceMessageID: m.SourceMessageID,
		TaxonomyURI:     m.TaxonomyURI,
		Title:           m.Title,
		Confidence:      m.Confidence,
		FrameworkSource: m.FrameworkSource,
		Evidence:        evidence,
		Metadata:        md,
		CreatedAt:       m.CreatedAt,
	}, nil
}

func (r CompetencyRecord) toMapped() (*competency.Mapped, error) {
	evidence, err := unmarshalJSON[[]string](r.Evidence)
	if err != nil {
		return nil, fmt.Errorf("competency %s evidence: %w", r.ID, err)
	}
	md, err := unmarshalJSON[map[string]any](r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("competency %s metadata: %w", r.ID, err)
	}
	return &competency.Mapped{
		ID:              r.ID,
		SourceMessageID: r.SourceMessageID,
		ConversationID:  r.ConversationID,
		TaxonomyURI:     r.TaxonomyURI,
		Title:           r.Title,
		Confidence:      r.Confidence,
		FrameworkSource: r.FrameworkSource,
		Evidence:        evidence,
		Metadata:        md,
		CreatedAt:       r.CreatedAt,
	}, nil
}
