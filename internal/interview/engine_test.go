package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/skill-mapper/internal/ai"
	"github.com/spigell/skill-mapper/internal/competency"
	"github.com/spigell/skill-mapper/internal/conversation"
	"github.com/spigell/skill-mapper/internal/skills"
	"github.com/spigell/skill-mapper/internal/taxonomy"
)

type stubModel struct {
	reply string
	err   error
}

func (s *stubModel) Name() string { return "stub" }

func (s *stubModel) Generate(context.Context, ai.Request) (string, error) {
	return s.reply, s.err
}

type stubExtractor struct {
	claims []competency.Claim
	err    error
}

func (s *stubExtractor) Extract(context.Context, string) ([]competency.Claim, error) {
	return s.claims, s.err
}

type stubResolver struct {
	mu      sync.Mutex
	results map[string]*competency.Mapped
	errs    map[string]error
	calls   []string
}

func (s *stubResolver) Name() string { return "ESCO" }

func (s *stubResolver) Resolve(_ context.Context, claim competency.Claim) (*competency.Mapped, error) {
	s.mu.Lock()
	s.calls = append(s.calls, claim.Name)
	s.mu.Unlock()
	if err := s.errs[claim.Name]; err != nil {
		return nil, err
	}
	m, ok := s.results[claim.Name]
	if !ok {
		return nil, nil
	}
	return m.Clone(), nil
}

type memRepo struct {
	mu           sync.Mutex
	messages     []conversation.Message
	competencies []*competency.Mapped
	saves        int
	assessments  int
	saveErr      error
	appendErr    error
	messageErr   error
}

func (r *memRepo) AppendMessage(_ context.Context, _ *conversation.Conversation, msg conversation.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messageErr != nil {
		return r.messageErr
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *memRepo) AppendMappedCompetency(_ context.Context, _ *conversation.Conversation, m *competency.Mapped) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.competencies = append(r.competencies, m)
	return nil
}

func (r *memRepo) Save(context.Context, *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return r.saveErr
}

func (r *memRepo) SaveAssessment(context.Context, *conversation.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments++
	return nil
}

func pythonMapped() *competency.Mapped {
	return &competency.Mapped{
		ID:              "m-python",
		TaxonomyURI:     "http://data.europa.eu/esco/skill/python",
		Title:           "Python (computer programming)",
		Confidence:      0.9,
		FrameworkSource: "ESCO",
		Evidence:        []string{"automated reports"},
		CreatedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestEngine(t *testing.T, deps Deps) *Engine {
	t.Helper()
	if deps.Model == nil {
		deps.Model = &stubModel{reply: "Tell me more."}
	}
	if deps.Extractor == nil {
		deps.Extractor = &stubExtractor{}
	}
	if deps.Resolver == nil {
		deps.Resolver = &stubResolver{}
	}
	if deps.Repo == nil {
		deps.Repo = &memRepo{}
	}
	e, err := NewEngine(deps, Config{})
	require.NoError(t, err)
	return e
}

func conversationAt(t *testing.T, st conversation.State) *conversation.Conversation {
	t.Helper()
	conv := conversation.New("conv-1", "")
	m := conversation.NewMachine(nil, nil)
	for conv.State() != st {
		_, err := m.Advance(conv)
		require.NoError(t, err)
	}
	return conv
}

func TestNewEngineRequiresDependencies(t *testing.T) {
	_, err := NewEngine(Deps{}, Config{})
	require.ErrorIs(t, err, ErrMissingDependency)

	_, err = NewEngine(Deps{Model: &stubModel{}, Extractor: &stubExtractor{}, Resolver: &stubResolver{}}, Config{})
	require.ErrorIs(t, err, ErrMissingDependency)
}

func TestHandleMessageValidationFallsBackToDiscovery(t *testing.T) {
	strategy := conversation.NewGuidedStrategy(map[conversation.State]int{conversation.StateCompetencyDiscovery: 1})
	e := newTestEngine(t, Deps{Strategy: strategy})
	conv := conversationAt(t, conversation.StateCompetencyDiscovery)
	ctx := context.Background()

	res, err := e.HandleMessage(ctx, conv, "I have experience building data pipelines")
	require.NoError(t, err)
	assert.True(t, res.Validation.Valid)
	assert.True(t, res.Transitioned)
	assert.Equal(t, conversation.StateCompetencyDiscovery, res.Previous)
	assert.Equal(t, conversation.StateValidation, res.State)

	res, err = e.HandleMessage(ctx, conv, "hmm okay")
	require.NoError(t, err)
	assert.False(t, res.Validation.Valid)
	assert.Equal(t, []string{"Response lacks competency-related content"}, res.Validation.Issues)
	assert.Equal(t, conversation.StateCompetencyDiscovery, res.State)
	assert.True(t, res.Transitioned)

	history := conv.History()
	require.GreaterOrEqual(t, len(history), 3)
	assert.Equal(t, []conversation.State{
		conversation.StateCompetencyDiscovery,
		conversation.StateValidation,
		conversation.StateCompetencyDiscovery,
	}, history[len(history)-3:])
}

func TestHandleMessageValidationAdvancesToMapping(t *testing.T) {
	e := newTestEngine(t, Deps{})
	conv := conversationAt(t, conversation.StateValidation)

	res, err := e.HandleMessage(context.Background(), conv, "Yes, I led that project for two years")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateMapping, res.State)
}

func TestHandleMessageOneClaimFails(t *testing.T) {
	repo := &memRepo{}
	resolver := &stubResolver{
		results: map[string]*competency.Mapped{"Python programming": pythonMapped()},
		errs:    map[string]error{"Negotiation": errors.New("taxonomy timeout")},
	}
	extractor := &stubExtractor{claims: []competency.Claim{
		{Name: "Python programming", Category: competency.Technical, Confidence: 0.9, Evidence: "automated reports"},
		{Name: "Negotiation", Category: competency.Soft, Confidence: 0.6, Evidence: "closed deals"},
	}}
	e := newTestEngine(t, Deps{Repo: repo, Resolver: resolver, Extractor: extractor})
	conv := conversationAt(t, conversation.StateCompetencyDiscovery)

	res, err := e.HandleMessage(context.Background(), conv, "I built Python tools and negotiated contracts")
	require.NoError(t, err)

	require.Len(t, res.Mapped, 1)
	assert.Equal(t, "http://data.europa.eu/esco/skill/python", res.Mapped[0].TaxonomyURI)
	assert.Equal(t, res.AssistantMessageID, res.Mapped[0].SourceMessageID)
	assert.Equal(t, conv.ID, res.Mapped[0].ConversationID)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Negotiation", res.Failures[0].Claim.Name)
	assert.True(t, res.IsPartial())
	assert.ErrorContains(t, res.FailureErr(), "taxonomy timeout")

	assert.Len(t, conv.Competencies(), 1)
	assert.Len(t, repo.competencies, 1)
	assert.Equal(t, 1, repo.saves)
	assert.ElementsMatch(t, []string{"Python programming", "Negotiation"}, resolver.calls)
}

// slowClaimModel picks the first candidate, except for prompts mentioning
// slow, which it answers only when ctx ends.
type slowClaimModel struct{ slow string }

func (slowClaimModel) Name() string { return "disambiguator" }

func (m slowClaimModel) Generate(ctx context.Context, req ai.Request) (string, error) {
	if strings.Contains(req.Input, m.slow) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return `{"id": 0}`, nil
}

// echoTaxonomy offers one candidate named after the query.
type echoTaxonomy struct{}

func (echoTaxonomy) Name() string { return "ESCO" }

func (echoTaxonomy) Search(_ context.Context, query, _ string, _ int) ([]taxonomy.Candidate, error) {
	id := strings.ToLower(strings.ReplaceAll(query, " ", "-"))
	return []taxonomy.Candidate{{ID: id, URI: "http://data.europa.eu/esco/skill/" + id, Title: query}}, nil
}

func TestHandleMessageSlowClaimTimesOutAlone(t *testing.T) {
	repo := &memRepo{}
	resolver := skills.NewResolver(echoTaxonomy{}, slowClaimModel{slow: "Negotiation"}, nil,
		skills.WithModelTimeout(50*time.Millisecond),
	)
	extractor := &stubExtractor{claims: []competency.Claim{
		{Name: "Python programming", Category: competency.Technical, Confidence: 0.9, Evidence: "automated reports"},
		{Name: "Negotiation", Category: competency.Soft, Confidence: 0.6, Evidence: "closed deals"},
	}}
	e := newTestEngine(t, Deps{Repo: repo, Resolver: resolver, Extractor: extractor})
	conv := conversationAt(t, conversation.StateCompetencyDiscovery)

	start := time.Now()
	res, err := e.HandleMessage(context.Background(), conv, "I built Python tools and negotiated contracts")
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Less(t, elapsed, 2*time.Second)

	require.Len(t, res.Mapped, 1)
	assert.Equal(t, "Python programming", res.Mapped[0].Title)
	assert.Equal(t, res.AssistantMessageID, res.Mapped[0].SourceMessageID)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Negotiation", res.Failures[0].Claim.Name)
	assert.ErrorIs(t, res.Failures[0].Err, skills.ErrMapping)
	assert.ErrorIs(t, res.Failures[0].Err, context.DeadlineExceeded)

	require.Len(t, conv.Competencies(), 1)
	assert.Len(t, repo.competencies, 1)
}

func TestHandleMessageStoreFailureLeavesConversationUnchanged(t *testing.T) {
	repo := &memRepo{messageErr: errors.New("connection reset")}
	e := newTestEngine(t, Deps{Repo: repo})
	conv := conversationAt(t, conversation.StateContextGathering)

	res, err := e.HandleMessage(context.Background(), conv, "I teach children to swim")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Zero(t, conv.MessageCount())

	repo.messageErr = nil
	res, err = e.HandleMessage(context.Background(), conv, "I teach children to swim")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, 1, conv.UserMessageCount())
	assert.Equal(t, 2, conv.MessageCount())
	require.Len(t, repo.messages, 2)
	assert.Equal(t, res.UserMessageID, repo.messages[0].ID)
}

func TestHandleMessageUnmappedClaimsAreDropped(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	repo := &memRepo{}
	extractor := &stubExtractor{claims: []competency.Claim{
		{Name: "Basket weaving", Category: competency.Other, Confidence: 0.5, Evidence: "weekend hobby"},
	}}
	e := newTestEngine(t, Deps{Repo: repo, Extractor: extractor, Logger: zap.New(core)})
	conv := conversationAt(t, conversation.StateCompetencyDiscovery)

	res, err := e.HandleMessage(context.Background(), conv, "I can weave baskets")
	require.NoError(t, err)
	assert.Empty(t, res.Mapped)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Unmapped, 1)
	assert.Equal(t, "Basket weaving", res.Unmapped[0].Name)
	require.Len(t, res.Skills, 1)

	assert.Empty(t, conv.Competencies())
	assert.Empty(t, repo.competencies)
	assert.Equal(t, 1, logs.FilterMessage("claim dropped without taxonomy match").Len())
}

func TestHandleMessageKeepsSkillOrder(t *testing.T) {
	results := map[string]*competency.Mapped{}
	var claims []competency.Claim
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, n := range names {
		m := pythonMapped()
		m.ID = "m-" + n
		m.Title = n
		results[n] = m
		claims = append(claims, competency.Claim{Name: n, Category: competency.Technical, Confidence: 0.7})
	}
	e := newTestEngine(t, Deps{
		Resolver:  &stubResolver{results: results},
		Extractor: &stubExtractor{claims: claims},
	})
	conv := conversationAt(t, conversation.StateCompetencyDiscovery)

	res, err := e.HandleMessage(context.Background(), conv, "I know many things")
	require.NoError(t, err)
	require.Len(t, res.Mapped, len(names))
	for i, m := range res.Mapped {
		assert.Equal(t, names[i], m.Title)
	}
	for i, m := range conv.Competencies() {
		assert.Equal(t, names[i], m.Title)
	}
}

func TestHandleMessageDegradesOnFailures(t *testing.T) {
	strategy := conversation.NewGuidedStrategy(nil).WithQuestions(conversation.StateContextGathering, "What do you do?", "What else?")
	e := newTestEngine(t, Deps{
		Model:     &stubModel{err: ai.ErrModelUnavailable},
		Extractor: &stubExtractor{err: errors.New("extraction failed")},
		Strategy:  strategy,
	})
	conv := conversationAt(t, conversation.StateContextGathering)

	res, err := e.HandleMessage(context.Background(), conv, "I work at a bakery")
	require.NoError(t, err)
	assert.Equal(t, "What else?", res.Reply)
	assert.Empty(t, res.Skills)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.MessageUser, msgs[0].Type)
	assert.Equal(t, conversation.MessageAssistant, msgs[1].Type)
	assert.Equal(t, "What else?", msgs[1].Content)
}

func TestHandleMessageRejectsCompletedConversation(t *testing.T) {
	e := newTestEngine(t, Deps{})
	conv := conversationAt(t, conversation.StateCompleted)

	_, err := e.HandleMessage(context.Background(), conv, "hello again")
	require.ErrorIs(t, err, ErrConversationCompleted)
	assert.Zero(t, conv.MessageCount())

	_, err = e.HandleMessage(context.Background(), conversation.New("c2", ""), "  ")
	require.ErrorIs(t, err, conversation.ErrEmptyMessage)
}

func TestHandleMessageSaveFailureKeepsResult(t *testing.T) {
	repo := &memRepo{saveErr: errors.New("disk full")}
	e := newTestEngine(t, Deps{Repo: repo})
	conv := conversationAt(t, conversation.StateContextGathering)

	res, err := e.HandleMessage(context.Background(), conv, "I teach children")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Tell me more.", res.Reply)
}

func TestHandleMessageSerializesConversation(t *testing.T) {
	strategy := conversation.NewGuidedStrategy(map[conversation.State]int{conversation.StateContextGathering: 100})
	e := newTestEngine(t, Deps{Strategy: strategy})
	conv := conversationAt(t, conversation.StateContextGathering)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.HandleMessage(context.Background(), conv, "I can cook for many people")
		}()
	}
	wg.Wait()

	msgs := conv.Messages()
	require.Len(t, msgs, 20)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, conversation.MessageUser, m.Type, i)
		} else {
			assert.Equal(t, conversation.MessageAssistant, m.Type, i)
		}
	}
	assert.Zero(t, e.locks.size())
}

func TestEngineLifecycleAndReport(t *testing.T) {
	repo := &memRepo{}
	resolver := &stubResolver{results: map[string]*competency.Mapped{"Python": pythonMapped()}}
	extractor := &stubExtractor{claims: []competency.Claim{{Name: "Python", Category: competency.Technical, Confidence: 0.9}}}
	e := newTestEngine(t, Deps{Repo: repo, Resolver: resolver, Extractor: extractor})
	ctx := context.Background()

	a, err := conversation.NewAssessment("user-1", "ESCO")
	require.NoError(t, err)

	question, err := e.Start(ctx, a)
	require.NoError(t, err)
	assert.NotEmpty(t, question)
	assert.Equal(t, 1, repo.assessments)

	_, err = e.HandleMessage(ctx, a.Conversation, "Hello, I am ready")
	require.NoError(t, err)

	report := e.Report(a)
	assert.Equal(t, string(conversation.StatusInProgress), report.Status)
	assert.Equal(t, conversation.StateModeSelection.String(), report.State)
	assert.Equal(t, 20.0, report.Progress)
	assert.Equal(t, 3, report.MessageCount)
	assert.Equal(t, 1, report.UserMessageCount)
	assert.Equal(t, 1, report.Competencies.Mapped)
	assert.Equal(t, 1, report.Competencies.HighConfidence)

	require.NoError(t, e.Complete(ctx, a))
	assert.Equal(t, conversation.StatusCompleted, a.Status)
	assert.Equal(t, conversation.StateCompleted, a.Conversation.State())
	assert.Equal(t, 2, repo.assessments)

	report = e.Report(a)
	assert.Equal(t, 100.0, report.Progress)
}
