// Package framework is an in-memory competency framework index and the
// lexical mapping service used when no external taxonomy is configured.
package framework

import (
	"fmt"
	"sort"
	"strings"
)

const (
	scoreExactName   = 100
	scorePartialName = 50
	scoreDescription = 25
	scoreOther       = 10
)

// Definition is the serialized form of a framework.
type Definition struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Description  string        `yaml:"description"`
	Language     string        `yaml:"language"`
	Competencies []*Competency `yaml:"competencies"`
}

// Framework indexes competencies by id and category. It is read-only after
// construction and safe for concurrent use.
type Framework struct {
	name        string
	version     string
	description string
	language    string

	competencies []*Competency
	byID         map[string]*Competency
	byCategory   map[string][]*Competency
	categories   []string
}

// Statistics summarizes a framework.
type Statistics struct {
	Name                 string         `json:"name"`
	Version              string         `json:"version"`
	Language             string         `json:"language"`
	Total                int            `json:"total_competencies"`
	Categories           int            `json:"categories"`
	ByCategory           map[string]int `json:"competencies_by_category"`
	ByLevel              map[string]int `json:"competencies_by_level"`
	AverageKeywords      float64        `json:"average_keywords"`
	RelatedLinks         int            `json:"related_links"`
	WithAlternativeLabel int            `json:"with_alternative_labels"`
}

// New validates the definition and builds the indices.
func New(def Definition) (*Framework, error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("%w: framework name is required", ErrInvalidCompetency)
	}

	f := &Framework{
		name:        def.Name,
		version:     def.Version,
		description: def.Description,
		language:    def.Language,
		byID:        make(map[string]*Competency, len(def.Competencies)),
		byCategory:  make(map[string][]*Competency),
	}

	for i, c := range def.Competencies {
		if c == nil || strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("%w: competency #%d has no id", ErrInvalidCompetency, i)
		}
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("%w: competency %q has no name", ErrInvalidCompetency, c.ID)
		}
		if _, dup := f.byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidCompetency, c.ID)
		}

		c.normalize()
		f.competencies = append(f.competencies, c)
		f.byID[c.ID] = c
		if _, ok := f.byCategory[c.Category]; !ok {
			f.categories = append(f.categories, c.Category)
		}
		f.byCategory[c.Category] = append(f.byCategory[c.Category], c)
	}

	sort.Strings(f.categories)

	return f, nil
}

func (f *Framework) Name() string        { return f.name }
func (f *Framework) Version() string     { return f.version }
func (f *Framework) Description() string { return f.description }
func (f *Framework) Language() string    { return f.language }
func (f *Framework) Count() int          { return len(f.competencies) }

// Competencies returns the competencies in definition order.
func (f *Framework) Competencies() []*Competency {
	return append([]*Competency(nil), f.competencies...)
}

// FindByID returns nil when no competency has the id.
func (f *Framework) FindByID(id string) *Competency {
	return f.byID[id]
}

func (f *Framework) Validate(id string) bool {
	return f.FindByID(id) != nil
}

func (f *Framework) Categories() []string {
	return append([]string(nil), f.categories...)
}

func (f *Framework) ByCategory(category string) []*Competency {
	return append([]*Competency(nil), f.byCategory[category]...)
}

// SearchByKeyword returns matching competencies ranked by relevance: exact
// name match, partial name match, description match, then anything else.
// Ties keep definition order. limit <= 0 means no limit.
func (f *Framework) SearchByKeyword(keyword string, limit int) []*Competency {
	term := strings.ToLower(strings.TrimSpace(keyword))
	if term == "" {
		return nil
	}

	type scored struct {
		c     *Competency
		score int
	}

	var hits []scored
	for _, c := range f.competencies {
		if !c.MatchesKeyword(term) {
			continue
		}
		hits = append(hits, scored{c: c, score: relevance(c, term)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]*Competency, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func relevance(c *Competency, term string) int {
	name := strings.ToLower(c.Name)
	switch {
	case name == term:
		return scoreExactName
	case strings.Contains(name, term):
		return scorePartialName
	case strings.Contains(strings.ToLower(c.Description), term):
		return scoreDescription
	default:
		return scoreOther
	}
}

// Search is SearchByKeyword with an optional category filter.
func (f *Framework) Search(query, category string, limit int) []*Competency {
	if category == "" {
		return f.SearchByKeyword(query, limit)
	}

	var out []*Competency
	for _, c := range f.SearchByKeyword(query, 0) {
		if c.Category != category {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Scored pairs a competency with a similarity score.
type Scored struct {
	Competency *Competency
	Score      float64
}

// FindSimilar ranks the other competencies by Similarity to id, keeping
// those at or above threshold. An unknown id yields nil.
func (f *Framework) FindSimilar(id string, threshold float64, limit int) []Scored {
	ref := f.FindByID(id)
	if ref == nil {
		return nil
	}

	var out []Scored
	for _, c := range f.competencies {
		if c.ID == id {
			continue
		}
		if score := Similarity(ref, c); score >= threshold {
			out = append(out, Scored{Competency: c, Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *Framework) Statistics() Statistics {
	stats := Statistics{
		Name:       f.name,
		Version:    f.version,
		Language:   f.language,
		Total:      len(f.competencies),
		Categories: len(f.categories),
		ByCategory: make(map[string]int, len(f.categories)),
		ByLevel:    make(map[string]int),
	}

	keywords := 0
	for _, c := range f.competencies {
		stats.ByCategory[c.Category]++
		level := c.Level
		if level == "" {
			level = "unspecified"
		}
		stats.ByLevel[level]++
		keywords += len(c.Keywords)
		stats.RelatedLinks += len(c.Related)
		if len(c.AlternativeLabels) > 0 {
			stats.WithAlternativeLabel++
		}
	}

	if stats.Total > 0 {
		stats.AverageKeywords = float64(keywords) / float64(stats.Total)
	}

	return stats
}
