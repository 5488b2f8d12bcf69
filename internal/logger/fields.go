package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldConversation identifies the conversation a log entry belongs to.
	FieldConversation = "conversation_id"
	// FieldState is the conversation state at the time of the log entry.
	FieldState = "conversation_state"
	// FieldClaim is the name of the skill claim being processed.
	FieldClaim = "claim"
	// FieldTaxonomy is the taxonomy backend name (ESCO, framework name).
	FieldTaxonomy = "taxonomy"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the provided fields to the logger, defaulting to a
// no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns standard zap fields that describe the AI provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common AI fields to the provided logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// ConversationFields describes a conversation and the state it is in.
func ConversationFields(conversationID, state string) []zap.Field {
	return StringFields(
		StringField{Key: FieldConversation, Value: conversationID},
		StringField{Key: FieldState, Value: state},
	)
}

// ClaimFields describes a skill claim and the taxonomy it is resolved against.
func ClaimFields(claim, taxonomy string) []zap.Field {
	return StringFields(
		StringField{Key: FieldClaim, Value: claim},
		StringField{Key: FieldTaxonomy, Value: taxonomy},
	)
}

// Component names the logger after a subsystem.
func Component(logger *zap.Logger, name string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: "component", Value: name})...)
}
