package skills

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/spigell/skill-mapper/internal/ai"
	"github.com/spigell/skill-mapper/internal/competency"
	"github.com/spigell/skill-mapper/internal/logger"
	"github.com/spigell/skill-mapper/internal/utils"
)

const (
	DefaultModelTimeout = 30 * time.Second

	extractSchemaName = "skill_claims"
)

//go:embed prompts/extract.md
var extractInstruction string

var tracer = otel.Tracer("github.com/spigell/skill-mapper/internal/skills")

// ClaimsSchema is the structured output contract of the extractor.
var ClaimsSchema = ai.Object(map[string]*ai.Schema{
	"skills": ai.ArrayOf(ai.Object(map[string]*ai.Schema{
		"name":       ai.String("Short neutral name of the skill"),
		"category":   ai.String("Skill category", categoryNames()...),
		"confidence": ai.Number("How clearly the message supports the skill", 0, 1),
		"evidence":   ai.String("Quote or paraphrase supporting the skill"),
	})),
})

func categoryNames() []string {
	cats := competency.Categories()
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, string(c))
	}
	return out
}

type claimsPayload struct {
	Skills []competency.Claim `json:"skills"`
}

// Extractor turns assistant messages into skill claims.
type Extractor struct {
	model       ai.Model
	instruction string
	timeout     time.Duration
	maxLogLen   int
	logger      *zap.Logger
}

type ExtractorOption func(*Extractor)

// WithInstruction overrides the embedded system instruction.
func WithInstruction(instruction string) ExtractorOption {
	return func(e *Extractor) {
		if strings.TrimSpace(instruction) != "" {
			e.instruction = instruction
		}
	}
}

func WithExtractionTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func NewExtractor(model ai.Model, log *zap.Logger, maxLogLength int, opts ...ExtractorOption) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Extractor{
		model:       model,
		instruction: extractInstruction,
		timeout:     DefaultModelTimeout,
		maxLogLen:   maxLogLength,
		logger:      logger.Component(log, "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the model for the skills mentioned in message. Every
// returned error wraps ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, message string) ([]competency.Claim, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, ErrEmptyMessage)
	}

	ctx, span := tracer.Start(ctx, "skills.Extract")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Debug("extraction request",
		zap.String("model", e.model.Name()),
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.String("message_preview", utils.TruncateForLog(message, e.maxLogLen)),
	)

	raw, err := e.model.Generate(ctx, ai.Request{
		Instruction: e.instruction,
		Input:       message,
		Schema:      ClaimsSchema,
		SchemaName:  extractSchemaName,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	e.logger.Debug("extraction response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	var payload claimsPayload
	if err := ai.DecodeStrict(raw, ClaimsSchema, &payload); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	var invalid error
	for i := range payload.Skills {
		if err := payload.Skills[i].Validate(); err != nil {
			invalid = errors.Join(invalid, fmt.Errorf("skills[%d]: %w", i, err))
		}
	}
	if invalid != nil {
		span.SetStatus(codes.Error, invalid.Error())
		return nil, fmt.Errorf("%w: %w", ErrExtraction, invalid)
	}

	span.SetAttributes(attribute.Int("claims", len(payload.Skills)))
	e.logger.Info("skills extracted", zap.Int("claims", len(payload.Skills)))

	return payload.Skills, nil
}
