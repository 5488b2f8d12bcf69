package skills

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/spigell/skill-mapper/internal/ai"
	"github.com/spigell/skill-mapper/internal/competency"
	"github.com/spigell/skill-mapper/internal/conversation"
	"github.com/spigell/skill-mapper/internal/logger"
	"github.com/spigell/skill-mapper/internal/taxonomy"
	"github.com/spigell/skill-mapper/internal/utils"
)

const (
	DefaultLanguage      = "en"
	DefaultTopK          = 20
	DefaultSearchTimeout = 10 * time.Second

	disambiguateSchemaName = "skill_id"
)

// Metadata keys recorded on every resolved competency.
const (
	MetaTaxonomyID     = "taxonomy_id"
	MetaCandidateIndex = "candidate_index"
	MetaCandidateCount = "candidate_count"
	MetaClaimName      = "claim_name"
	MetaClaimCategory  = "claim_category"
	MetaLanguage       = "language"
)

//go:embed prompts/disambiguate.md
var disambiguateTemplate string

// ChoiceSchema is the structured output contract of disambiguation.
var ChoiceSchema = ai.Object(map[string]*ai.Schema{
	"id": ai.Integer("The id of the best matching candidate from the list"),
})

type choicePayload struct {
	ID int `json:"id"`
}

type candidateView struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Resolver maps claims onto taxonomy entries.
type Resolver struct {
	taxonomy      taxonomy.Client
	model         ai.Model
	language      string
	topK          int
	searchTimeout time.Duration
	modelTimeout  time.Duration
	maxLogLen     int
	newID         func() string
	now           func() time.Time
	logger        *zap.Logger
}

type ResolverOption func(*Resolver)

func WithLanguage(lang string) ResolverOption {
	return func(r *Resolver) {
		if lang = strings.TrimSpace(lang); lang != "" {
			r.language = lang
		}
	}
}

func WithTopK(k int) ResolverOption {
	return func(r *Resolver) {
		if k > 0 {
			r.topK = k
		}
	}
}

func WithSearchTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.searchTimeout = d
		}
	}
}

func WithModelTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.modelTimeout = d
		}
	}
}

func WithMaxLogLength(n int) ResolverOption {
	return func(r *Resolver) { r.maxLogLen = n }
}

// WithIDGenerator replaces the uuid generator for record ids.
func WithIDGenerator(fn func() string) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func WithClock(fn func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

func NewResolver(client taxonomy.Client, model ai.Model, log *zap.Logger, opts ...ResolverOption) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		taxonomy:      client,
		model:         model,
		language:      DefaultLanguage,
		topK:          DefaultTopK,
		searchTimeout: DefaultSearchTimeout,
		modelTimeout:  DefaultModelTimeout,
		newID:         uuid.NewString,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger.Component(log, "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name is the taxonomy the resolver maps onto.
func (r *Resolver) Name() string { return r.taxonomy.Name() }

// Resolve searches the taxonomy for claim and lets the model pick one
// candidate. A nil record with a nil error means no candidate was found.
// Other failures wrap ErrMapping.
func (r *Resolver) Resolve(ctx context.Context, claim competency.Claim) (*competency.Mapped, error) {
	ctx, span := tracer.Start(ctx, "skills.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("claim", claim.Name))

	log := logger.WithFields(r.logger, logger.ClaimFields(claim.Name, r.taxonomy.Name())...)

	candidates, err := r.search(ctx, claim.Name)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: search %q: %w", ErrMapping, claim.Name, err)
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	if len(candidates) == 0 {
		log.Info("no taxonomy candidates for claim")
		return nil, nil
	}

	idx, err := r.choose(ctx, claim, candidates)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	chosen := candidates[idx]
	mapped := &competency.Mapped{
		ID:              r.newID(),
		TaxonomyURI:     chosen.URI,
		Title:           chosen.Title,
		Confidence:      utils.Clamp01(claim.Confidence),
		FrameworkSource: r.taxonomy.Name(),
		Evidence:        []string{claim.Evidence},
		Metadata: map[string]any{
			MetaTaxonomyID:     chosen.ID,
			MetaCandidateIndex: idx,
			MetaCandidateCount: len(candidates),
			MetaClaimName:      claim.Name,
			MetaClaimCategory:  string(claim.Category),
			MetaLanguage:       r.language,
		},
		CreatedAt: r.now(),
	}

	log.Info("claim mapped",
		zap.String("uri", mapped.TaxonomyURI),
		zap.String("title", mapped.Title),
		zap.Int("candidate_index", idx),
		zap.Int("candidate_count", len(candidates)),
	)
	return mapped, nil
}

// Store persists mapped competencies of a conversation.
type Store interface {
	AppendMappedCompetency(ctx context.Context, conv *conversation.Conversation, m *competency.Mapped) error
}

// ResolveFor resolves claim, tags the result with the message it was
// extracted from, stores it and only then attaches it to conv.
func (r *Resolver) ResolveFor(ctx context.Context, conv *conversation.Conversation, store Store, messageID string, claim competency.Claim) (*competency.Mapped, error) {
	mapped, err := r.Resolve(ctx, claim)
	if err != nil || mapped == nil {
		return mapped, err
	}
	mapped.SourceMessageID = messageID
	mapped.ConversationID = conv.ID
	if err := mapped.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMapping, err)
	}
	if err := store.AppendMappedCompetency(ctx, conv, mapped); err != nil {
		return nil, fmt.Errorf("%w: store: %w", ErrMapping, err)
	}
	if err := conv.AppendCompetency(mapped); err != nil {
		return nil, fmt.Errorf("%w: attach: %w", ErrMapping, err)
	}
	return mapped, nil
}

func (r *Resolver) search(ctx context.Context, query string) ([]taxonomy.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.searchTimeout)
	defer cancel()
	return r.taxonomy.Search(ctx, query, r.language, r.topK)
}

func (r *Resolver) choose(ctx context.Context, claim competency.Claim, candidates []taxonomy.Candidate) (int, error) {
	prompt, err := r.buildPrompt(claim, candidates)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMapping, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.modelTimeout)
	defer cancel()

	r.logger.Debug("disambiguation request",
		zap.String("model", r.model.Name()),
		zap.String(logger.FieldClaim, claim.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
	)

	raw, err := r.model.Generate(ctx, ai.Request{
		Input:      prompt,
		Schema:     ChoiceSchema,
		SchemaName: disambiguateSchemaName,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: disambiguate %q: %w", ErrMapping, claim.Name, err)
	}

	r.logger.Debug("disambiguation response",
		zap.String(logger.FieldClaim, claim.Name),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	var choice choicePayload
	if err := ai.DecodeStrict(raw, ChoiceSchema, &choice); err != nil {
		return 0, fmt.Errorf("%w: disambiguate %q: %w", ErrMapping, claim.Name, err)
	}
	if choice.ID < 0 || choice.ID >= len(candidates) {
		return 0, &IndexError{Index: choice.ID, Count: len(candidates)}
	}
	return choice.ID, nil
}

func (r *Resolver) buildPrompt(claim competency.Claim, candidates []taxonomy.Candidate) (string, error) {
	skillJSON, err := json.MarshalIndent(claim, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal claim: %w", err)
	}

	views := make([]candidateView, 0, len(candidates))
	for i, c := range candidates {
		views = append(views, candidateView{
			ID:          i,
			Title:       c.Label(r.language),
			Description: c.Description(r.language),
		})
	}
	candidatesJSON, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}

	prompt := strings.ReplaceAll(disambiguateTemplate, "{{SKILL_JSON}}", string(skillJSON))
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATES_JSON}}", string(candidatesJSON))
	return prompt, nil
}
