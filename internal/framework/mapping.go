package framework

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spigell/skill-mapper/internal/competency"
	"github.com/spigell/skill-mapper/internal/utils"

	"go.uber.org/zap"
)

const (
	DefaultThreshold        = 0.5
	DefaultSimilarThreshold = 0.7
	searchLimit             = 10
	suggestionConfidence    = 0.6
	suggestionKeywords      = 3
	suggestionsPerKeyword   = 3
	minTermLength           = 3
)

var stopWords = map[string]struct{}{
	"and": {}, "the": {}, "for": {}, "with": {}, "have": {}, "has": {}, "was": {},
	"were": {}, "that": {}, "this": {}, "from": {}, "into": {}, "our": {}, "your": {},
	"are": {}, "been": {}, "about": {}, "also": {}, "very": {}, "some": {},
}

// MapOption tunes a single MapToFramework call.
type MapOption func(*mapOptions)

type mapOptions struct {
	category string
	now      func() time.Time
}

// WithCategory scores the description as belonging to category. Without it
// the category term is left out and only name and keyword overlap count.
func WithCategory(category string) MapOption {
	return func(o *mapOptions) { o.category = category }
}

func withClock(now func() time.Time) MapOption {
	return func(o *mapOptions) { o.now = now }
}

// MappingService maps free-text competency descriptions onto frameworks
// using lexical similarity only.
type MappingService struct {
	frameworks Registry
	logger     *zap.Logger
}

func NewMappingService(frameworks Registry, logger *zap.Logger) *MappingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingService{frameworks: frameworks, logger: logger}
}

func (s *MappingService) Frameworks() Registry { return s.frameworks }

// MapToFramework searches the framework for the description, scores every
// hit with Similarity and keeps those at or above threshold, best first.
func (s *MappingService) MapToFramework(description, frameworkName string, threshold float64, opts ...MapOption) ([]competency.Mapped, error) {
	f, err := s.frameworks.Get(frameworkName)
	if err != nil {
		return nil, err
	}

	o := mapOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	description = strings.TrimSpace(description)
	terms := searchTerms(description)
	hits := s.search(f, description, terms)

	probe := &Competency{Name: description, Category: o.category}
	for _, term := range terms {
		probe.AddKeyword(term)
	}
	score := Similarity
	if probe.Category == "" {
		score = lexicalSimilarity
	}

	type scored struct {
		c     *Competency
		score float64
	}

	var ranked []scored
	for _, hit := range hits {
		v := score(probe, hit)
		if v < threshold {
			continue
		}
		ranked = append(ranked, scored{c: hit, score: v})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]competency.Mapped, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, toMapped(f, r.c, r.score, o.now()))
	}

	s.logger.Debug("mapped description to framework",
		zap.String("framework", f.Name()),
		zap.String("description", utils.TruncateForLog(description, 80)),
		zap.Int("candidates", len(hits)),
		zap.Int("mapped", len(out)),
		zap.Float64("threshold", threshold),
	)

	return out, nil
}

func (s *MappingService) search(f *Framework, description string, terms []string) []*Competency {
	seen := make(map[string]struct{})
	var hits []*Competency
	add := func(cs []*Competency) {
		for _, c := range cs {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			hits = append(hits, c)
		}
	}

	add(f.SearchByKeyword(description, searchLimit))
	for _, term := range terms {
		add(f.SearchByKeyword(term, searchLimit))
	}
	return hits
}

// FindSimilar maps the competencies similar to id. Confidence is the
// similarity score.
func (s *MappingService) FindSimilar(id, frameworkName string, threshold float64) ([]competency.Mapped, error) {
	f, err := s.frameworks.Get(frameworkName)
	if err != nil {
		return nil, err
	}
	if !f.Validate(id) {
		return nil, fmt.Errorf("%w: %q in %s", ErrCompetencyNotFound, id, frameworkName)
	}

	now := time.Now()
	similar := f.FindSimilar(id, threshold, 0)
	out := make([]competency.Mapped, 0, len(similar))
	for _, sc := range similar {
		out = append(out, toMapped(f, sc.Competency, sc.Score, now))
	}
	return out, nil
}

// ValidateMapping checks the framework and competency referenced by m exist
// and its confidence is in range.
func (s *MappingService) ValidateMapping(m competency.Mapped) error {
	f, err := s.frameworks.Get(m.FrameworkSource)
	if err != nil {
		return err
	}

	id, _ := m.Metadata[MetadataCompetencyID].(string)
	if !f.Validate(id) {
		return fmt.Errorf("%w: %q in %s", ErrCompetencyNotFound, id, f.Name())
	}

	return m.Validate()
}

// Suggest proposes competencies from free-text context such as a job role.
// Only the first few context words are searched.
func (s *MappingService) Suggest(context map[string]string, frameworkName string, limit int) ([]competency.Mapped, error) {
	f, err := s.frameworks.Get(frameworkName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var words []string
	for _, k := range keys {
		words = append(words, searchTerms(context[k])...)
	}
	if len(words) > suggestionKeywords {
		words = words[:suggestionKeywords]
	}

	now := time.Now()
	seen := make(map[string]struct{})
	var out []competency.Mapped
	for _, word := range words {
		for _, c := range f.SearchByKeyword(word, suggestionsPerKeyword) {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, toMapped(f, c, suggestionConfidence, now))
			if len(out) == limit {
				return out, nil
			}
		}
	}

	return out, nil
}

// Metadata keys set on competencies mapped from a framework.
const (
	MetadataCompetencyID = "competency_id"
	MetadataCategory     = "category"
	MetadataSimilarity   = "similarity"
)

func toMapped(f *Framework, c *Competency, score float64, now time.Time) competency.Mapped {
	uri := c.URI
	if uri == "" {
		uri = fmt.Sprintf("urn:framework:%s:%s", strings.ToLower(f.Name()), c.ID)
	}

	return competency.Mapped{
		TaxonomyURI:     uri,
		Title:           c.Name,
		Confidence:      utils.Clamp01(score),
		FrameworkSource: f.Name(),
		Metadata: map[string]any{
			MetadataCompetencyID: c.ID,
			MetadataCategory:     c.Category,
			MetadataSimilarity:   score,
		},
		CreatedAt: now,
	}
}

func searchTerms(text string) []string {
	var terms []string
	seen := make(map[string]struct{})
	for _, w := range utils.Words(text) {
		if len([]rune(w)) < minTermLength {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}
