// Package interview orchestrates a user turn: validation, state
// transitions, reply generation, skill extraction and resolution.
package interview

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/skill-mapper/internal/ai"
	"github.com/spigell/skill-mapper/internal/competency"
	"github.com/spigell/skill-mapper/internal/conversation"
	"github.com/spigell/skill-mapper/internal/logger"
	"github.com/spigell/skill-mapper/internal/metrics"
	"github.com/spigell/skill-mapper/internal/utils"
)

const (
	DefaultParallelism   = 4
	DefaultHistoryWindow = 5
	DefaultReplyTimeout  = 30 * time.Second

	fallbackReply = "Thank you. Let's continue."
)

//go:embed prompts/reply.md
var replyInstruction string

var tracer = otel.Tracer("github.com/spigell/skill-mapper/internal/interview")

// Repository persists conversation changes.
type Repository interface {
	AppendMessage(ctx context.Context, conv *conversation.Conversation, msg conversation.Message) error
	AppendMappedCompetency(ctx context.Context, conv *conversation.Conversation, m *competency.Mapped) error
	Save(ctx context.Context, conv *conversation.Conversation) error
}

// assessmentSaver is implemented by repositories that also store the
// assessment itself.
type assessmentSaver interface {
	SaveAssessment(ctx context.Context, a *conversation.Assessment) error
}

type Extractor interface {
	Extract(ctx context.Context, message string) ([]competency.Claim, error)
}

// ClaimResolver maps one claim. A nil result without error means the claim
// has no match.
type ClaimResolver interface {
	Resolve(ctx context.Context, claim competency.Claim) (*competency.Mapped, error)
	Name() string
}

// Recorder receives turn level counters.
type Recorder interface {
	RecordTurn(state string)
	RecordClaims(n int)
	RecordExtractionFailure()
	RecordResolution(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordTurn(string)        {}
func (nopRecorder) RecordClaims(int)         {}
func (nopRecorder) RecordExtractionFailure() {}
func (nopRecorder) RecordResolution(string)  {}

// Deps aggregates the collaborators of the engine.
type Deps struct {
	Model     ai.Model
	Extractor Extractor
	Resolver  ClaimResolver
	Repo      Repository
	Strategy  conversation.QuestionStrategy
	Machine   *conversation.Machine
	Checks    []Check
	Recorder  Recorder
	Logger    *zap.Logger
}

type Config struct {
	Parallelism   int           `mapstructure:"parallelism"`
	HistoryWindow int           `mapstructure:"history-window"`
	ReplyTimeout  time.Duration `mapstructure:"reply-timeout"`
	MaxLogLength  int           `mapstructure:"max-log-length"`
}

// TurnResult describes everything that happened during one user turn.
type TurnResult struct {
	UserMessageID      string
	AssistantMessageID string
	Reply              string
	Previous           conversation.State
	State              conversation.State
	Transitioned       bool
	Validation         Validation
	Skills             []competency.Skill
	Mapped             []*competency.Mapped
	Unmapped           []competency.Claim
	Failures           []ClaimFailure
}

type Engine struct {
	model     ai.Model
	extractor Extractor
	resolver  ClaimResolver
	repo      Repository
	strategy  conversation.QuestionStrategy
	machine   *conversation.Machine
	checks    []Check
	recorder  Recorder
	cfg       Config
	locks     *keyedMutex
	logger    *zap.Logger
}

func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	switch {
	case deps.Model == nil:
		return nil, fmt.Errorf("%w: model", ErrMissingDependency)
	case deps.Extractor == nil:
		return nil, fmt.Errorf("%w: extractor", ErrMissingDependency)
	case deps.Resolver == nil:
		return nil, fmt.Errorf("%w: resolver", ErrMissingDependency)
	case deps.Repo == nil:
		return nil, fmt.Errorf("%w: repository", ErrMissingDependency)
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Strategy == nil {
		deps.Strategy = conversation.NewGuidedStrategy(nil)
	}
	if deps.Machine == nil {
		deps.Machine = conversation.NewMachine(log, nil)
	}
	if deps.Checks == nil {
		deps.Checks = DefaultChecks()
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}

	return &Engine{
		model:     deps.Model,
		extractor: deps.Extractor,
		resolver:  deps.Resolver,
		repo:      deps.Repo,
		strategy:  deps.Strategy,
		machine:   deps.Machine,
		checks:    deps.Checks,
		recorder:  deps.Recorder,
		cfg:       cfg,
		locks:     newKeyedMutex(),
		logger:    logger.Component(log, "engine"),
	}, nil
}

// Checks reports the configured validation checks.
func (e *Engine) Checks() []Status { return DescribeChecks(e.checks) }

// Start opens the assessment and returns the first question.
func (e *Engine) Start(ctx context.Context, a *conversation.Assessment) (string, error) {
	if err := a.Start(); err != nil {
		return "", err
	}
	conv := a.Conversation
	unlock := e.locks.Lock(conv.ID)
	defer unlock()

	question, ok := e.strategy.NextQuestion(conv, nil)
	if !ok {
		question = fallbackReply
	}
	msg, err := conversation.NewMessage(conv.ID, conversation.MessageAssistant, question)
	if err != nil {
		return "", err
	}
	if err := conv.AppendMessage(msg); err != nil {
		return "", err
	}

	if saver, ok := e.repo.(assessmentSaver); ok {
		if err := saver.SaveAssessment(ctx, a); err != nil {
			return "", fmt.Errorf("save assessment: %w", err)
		}
	} else if err := e.repo.Save(ctx, conv); err != nil {
		return "", fmt.Errorf("save conversation: %w", err)
	}

	e.logger.Info("assessment started",
		zap.String("assessment_id", a.ID),
		zap.String(logger.FieldConversation, conv.ID),
		zap.String("framework", a.Framework),
	)
	return question, nil
}

// Complete finishes the assessment and its conversation.
func (e *Engine) Complete(ctx context.Context, a *conversation.Assessment) error {
	if a.Conversation != nil {
		unlock := e.locks.Lock(a.Conversation.ID)
		defer unlock()
	}
	if err := a.Complete(e.machine); err != nil {
		return err
	}

	if saver, ok := e.repo.(assessmentSaver); ok {
		if err := saver.SaveAssessment(ctx, a); err != nil {
			return fmt.Errorf("save assessment: %w", err)
		}
	} else if a.Conversation != nil {
		if err := e.repo.Save(ctx, a.Conversation); err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}
	}

	e.logger.Info("assessment completed",
		zap.String("assessment_id", a.ID),
		zap.Duration("duration", a.Duration()),
	)
	return nil
}

// HandleMessage processes one user message. Turns of the same conversation
// are serialized. Messages are stored before they join conv, so a turn that
// fails to store the user message leaves conv unchanged. When only the final save fails, the result is returned
// together with the error.
func (e *Engine) HandleMessage(ctx context.Context, conv *conversation.Conversation, text string) (*TurnResult, error) {
	unlock := e.locks.Lock(conv.ID)
	defer unlock()

	ctx, span := tracer.Start(ctx, "interview.HandleMessage")
	defer span.End()

	previous := conv.State()
	log := logger.WithFields(e.logger, logger.ConversationFields(conv.ID, previous.String())...)
	span.SetAttributes(attribute.String("conversation.state", previous.String()))

	if previous == conversation.StateCompleted {
		return nil, ErrConversationCompleted
	}

	userMsg, err := conversation.NewMessage(conv.ID, conversation.MessageUser, text)
	if err != nil {
		return nil, err
	}
	if err := e.repo.AppendMessage(ctx, conv, userMsg); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("store user message: %w", err)
	}
	if err := conv.AppendMessage(userMsg); err != nil {
		return nil, err
	}
	e.recorder.RecordTurn(previous.String())

	res := &TurnResult{UserMessageID: userMsg.ID, Previous: previous}
	res.Validation = RunChecks(e.checks, previous, text, log)

	if err := e.transition(conv, res.Validation); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res.State = conv.State()
	res.Transitioned = res.State != previous

	reply := e.reply(ctx, conv, text, res.Validation, log)
	assistantMsg, err := conversation.NewMessage(conv.ID, conversation.MessageAssistant, reply)
	if err != nil {
		return nil, err
	}
	assistantMsg = assistantMsg.WithMetadata("state", res.State.String())
	if err := e.repo.AppendMessage(ctx, conv, assistantMsg); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	if err := conv.AppendMessage(assistantMsg); err != nil {
		return nil, err
	}
	res.Reply = reply
	res.AssistantMessageID = assistantMsg.ID

	claims, err := e.extractor.Extract(ctx, reply)
	if err != nil {
		e.recorder.RecordExtractionFailure()
		log.Warn("skill extraction failed", zap.Error(err))
		claims = nil
	}
	e.recorder.RecordClaims(len(claims))

	outcomes := e.resolveAll(ctx, claims)
	for i, out := range outcomes {
		e.collect(ctx, conv, assistantMsg.ID, claims[i], out, res, log)
	}

	for _, skill := range res.Skills {
		switch v := skill.(type) {
		case *competency.Mapped:
			res.Mapped = append(res.Mapped, v)
		case *competency.Claim:
			res.Unmapped = append(res.Unmapped, *v)
		default:
			panic(fmt.Sprintf("interview: unknown skill type %T", skill))
		}
	}

	span.SetAttributes(
		attribute.Int("claims", len(claims)),
		attribute.Int("mapped", len(res.Mapped)),
		attribute.Int("failures", len(res.Failures)),
	)
	log.Info("turn handled",
		zap.String("new_state", res.State.String()),
		zap.Bool("valid", res.Validation.Valid),
		zap.Int("claims", len(claims)),
		zap.Int("mapped", len(res.Mapped)),
		zap.Int("unmapped", len(res.Unmapped)),
		zap.Int("failures", len(res.Failures)),
	)

	if err := e.repo.Save(ctx, conv); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("save conversation: %w", err)
	}
	return res, nil
}

func (e *Engine) transition(conv *conversation.Conversation, v Validation) error {
	if conv.State() == conversation.StateValidation && !v.Valid {
		return e.machine.Transition(conv, conversation.StateCompetencyDiscovery)
	}
	if e.strategy.ShouldTransition(conv) {
		_, err := e.machine.Advance(conv)
		return err
	}
	return nil
}

func (e *Engine) reply(ctx context.Context, conv *conversation.Conversation, text string, v Validation, log *zap.Logger) string {
	question, hasQuestion := e.strategy.NextQuestion(conv, nil)

	var b strings.Builder
	fmt.Fprintf(&b, "Current phase: %s\n", conv.State().Phase())
	b.WriteString("\nRecent conversation:\n")
	for _, m := range conv.LastMessages(e.cfg.HistoryWindow) {
		fmt.Fprintf(&b, "%s: %s\n", m.Type, m.Content)
	}
	fmt.Fprintf(&b, "\nLatest user message:\n%s\n", text)
	if !v.Valid {
		fmt.Fprintf(&b, "\nThe answer needs more detail: %s\n", strings.Join(v.Issues, "; "))
	}
	if hasQuestion {
		fmt.Fprintf(&b, "\nSuggested next question:\n%s\n", question)
	}
	prompt := b.String()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ReplyTimeout)
	defer cancel()

	log.Debug("reply request",
		zap.String("model", e.model.Name()),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.cfg.MaxLogLength)),
	)

	reply, err := e.model.Generate(ctx, ai.Request{Instruction: replyInstruction, Input: prompt})
	reply = strings.TrimSpace(reply)
	if err == nil && reply != "" {
		return reply
	}

	log.Warn("reply generation failed, using strategy question", zap.Error(err))
	if hasQuestion {
		return question
	}
	return fallbackReply
}

type resolution struct {
	mapped *competency.Mapped
	err    error
}

// resolveAll resolves claims concurrently. The result slice is indexed like
// claims. Claims not started because ctx ended carry the context error.
func (e *Engine) resolveAll(ctx context.Context, claims []competency.Claim) []resolution {
	out := make([]resolution, len(claims))
	if len(claims) == 0 {
		return out
	}

	ctx, span := tracer.Start(ctx, "interview.resolveClaims")
	defer span.End()

	var g errgroup.Group
	g.SetLimit(e.cfg.Parallelism)
	for i, claim := range claims {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(claims); j++ {
				out[j] = resolution{err: err}
			}
			break
		}
		g.Go(func() error {
			m, err := e.resolver.Resolve(ctx, claim)
			out[i] = resolution{mapped: m, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) collect(ctx context.Context, conv *conversation.Conversation, messageID string, claim competency.Claim, out resolution, res *TurnResult, log *zap.Logger) {
	claimLog := logger.WithFields(log, logger.ClaimFields(claim.Name, e.resolver.Name())...)

	switch {
	case out.err != nil:
		e.recorder.RecordResolution(metrics.OutcomeFailed)
		claimLog.Warn("claim resolution failed", zap.Error(out.err))
		res.Failures = append(res.Failures, ClaimFailure{Claim: claim, Err: out.err})
	case out.mapped == nil:
		e.recorder.RecordResolution(metrics.OutcomeUnmapped)
		claimLog.Info("claim dropped without taxonomy match")
		c := claim
		res.Skills = append(res.Skills, &c)
	default:
		m := out.mapped
		m.SourceMessageID = messageID
		m.ConversationID = conv.ID
		if err := e.attach(ctx, conv, m); err != nil {
			e.recorder.RecordResolution(metrics.OutcomeFailed)
			claimLog.Error("storing mapped competency failed", zap.Error(err))
			res.Failures = append(res.Failures, ClaimFailure{Claim: claim, Err: err})
			return
		}
		e.recorder.RecordResolution(metrics.OutcomeMapped)
		res.Skills = append(res.Skills, m)
	}
}

func (e *Engine) attach(ctx context.Context, conv *conversation.Conversation, m *competency.Mapped) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := e.repo.AppendMappedCompetency(ctx, conv, m); err != nil {
		return err
	}
	return conv.AppendCompetency(m)
}

// Report summarizes the progress of an assessment.
type Report struct {
	AssessmentID     string             `json:"assessment_id"`
	Status           string             `json:"status"`
	State            string             `json:"state"`
	Phase            string             `json:"phase"`
	Progress         float64            `json:"progress"`
	MessageCount     int                `json:"message_count"`
	UserMessageCount int                `json:"user_message_count"`
	Competencies     competency.Summary `json:"competencies"`
	Duration         time.Duration      `json:"duration"`
}

func (e *Engine) Report(a *conversation.Assessment) Report {
	r := Report{
		AssessmentID: a.ID,
		Status:       string(a.Status),
		Duration:     a.Duration(),
		Competencies: competency.Summarize(nil),
	}
	conv := a.Conversation
	if conv == nil {
		return r
	}
	st := conv.State()
	r.State = st.String()
	r.Phase = st.Phase()
	r.Progress = st.Progress()
	r.MessageCount = conv.MessageCount()
	r.UserMessageCount = conv.UserMessageCount()
	r.Competencies = competency.Summarize(competency.MappedSkills(conv.Competencies()))
	return r
}

// IsPartial reports whether some claims of the turn failed.
func (r *TurnResult) IsPartial() bool { return len(r.Failures) > 0 }

// FailureErr joins all claim failures, or returns nil.
func (r *TurnResult) FailureErr() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}
