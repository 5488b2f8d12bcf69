package framework

import (
	"slices"
	"strings"
)

// Competency is a single entry of a competency framework.
type Competency struct {
	ID                string         `yaml:"id" json:"id"`
	Name              string         `yaml:"name" json:"name"`
	Description       string         `yaml:"description" json:"description"`
	Category          string         `yaml:"category" json:"category"`
	Level             string         `yaml:"level,omitempty" json:"level,omitempty"`
	URI               string         `yaml:"uri,omitempty" json:"uri,omitempty"`
	Prerequisites     []string       `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
	Related           []string       `yaml:"related,omitempty" json:"related,omitempty"`
	Keywords          []string       `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	AlternativeLabels []string       `yaml:"alternative_labels,omitempty" json:"alternative_labels,omitempty"`
	Metadata          map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// AddKeyword stores the keyword lowercased. Duplicates are ignored.
func (c *Competency) AddKeyword(keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" || slices.Contains(c.Keywords, keyword) {
		return false
	}
	c.Keywords = append(c.Keywords, keyword)
	return true
}

// AddRelated links another competency. Self links are rejected.
func (c *Competency) AddRelated(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || id == c.ID || slices.Contains(c.Related, id) {
		return false
	}
	c.Related = append(c.Related, id)
	return true
}

// IsLinked reports a relation in either direction.
func (c *Competency) IsLinked(other *Competency) bool {
	return slices.Contains(c.Related, other.ID) || slices.Contains(other.Related, c.ID)
}

// MatchesKeyword checks name, description, keywords and alternative labels.
func (c *Competency) MatchesKeyword(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	if strings.Contains(strings.ToLower(c.Name), term) || strings.Contains(strings.ToLower(c.Description), term) {
		return true
	}
	if slices.Contains(c.Keywords, term) {
		return true
	}
	for _, label := range c.AlternativeLabels {
		if strings.Contains(strings.ToLower(label), term) {
			return true
		}
	}
	return false
}

// normalize lowercases keywords and drops duplicates and self links.
func (c *Competency) normalize() {
	keywords := c.Keywords
	c.Keywords = nil
	for _, k := range keywords {
		c.AddKeyword(k)
	}

	related := c.Related
	c.Related = nil
	for _, r := range related {
		c.AddRelated(r)
	}
}
