package esco

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/spigell/skill-mapper/internal/taxonomy"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	SearchPath   = "/search"
	typeSkill    = "skill"
	defaultLimit = 20
)

// SearchParams is rendered into query parameters by the escoparam tag.
type SearchParams struct {
	Text     string `escoparam:"text"`
	Language string `escoparam:"language"`
	Type     string `escoparam:"type"`
	Limit    int    `escoparam:"limit"`
	Full     bool   `escoparam:"full"`
}

type searchResponse struct {
	Embedded struct {
		Results []map[string]any `json:"results"`
	} `json:"_embedded"`
}

type result struct {
	URI               string                    `mapstructure:"uri"`
	Title             string                    `mapstructure:"title"`
	ReferenceLanguage []string                  `mapstructure:"referenceLanguage"`
	PreferredLabel    map[string]string         `mapstructure:"preferredLabel"`
	Description       map[string]literalWrapper `mapstructure:"description"`
	Links             map[string]any            `mapstructure:"_links"`
}

type literalWrapper struct {
	Literal  string `mapstructure:"literal"`
	MimeType string `mapstructure:"mimetype"`
}

// Search implements taxonomy.Client. Results keep ESCO's ranking order.
func (c *Client) Search(ctx context.Context, query, language string, limit int) ([]taxonomy.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if language = strings.TrimSpace(language); language == "" {
		language = c.Language
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	params := &SearchParams{
		Text:     query,
		Language: language,
		Type:     typeSkill,
		Limit:    limit,
		Full:     true,
	}

	var response searchResponse
	if err := c.getJSON(ctx, strings.TrimRight(c.APIURL, "/")+SearchPath, buildParams(params), &response); err != nil {
		return nil, err
	}

	candidates := make([]taxonomy.Candidate, 0, len(response.Embedded.Results))
	for i, item := range response.Embedded.Results {
		var r result
		cfg := &mapstructure.DecoderConfig{
			Result:           &r,
			WeaklyTypedInput: true,
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(item); err != nil {
			c.logger.Warn("skipping malformed search result", zap.Int("index", i), zap.Error(err))
			continue
		}
		if r.URI == "" {
			c.logger.Warn("skipping search result without uri", zap.Int("index", i))
			continue
		}
		candidates = append(candidates, r.toCandidate())
	}

	c.logger.Debug("got search results from ESCO",
		zap.String("text", query),
		zap.String("language", language),
		zap.Int("count", len(candidates)),
	)

	return candidates, nil
}

func (r result) toCandidate() taxonomy.Candidate {
	c := taxonomy.Candidate{
		ID:           r.URI[strings.LastIndex(r.URI, "/")+1:],
		URI:          r.URI,
		Title:        r.Title,
		Labels:       r.PreferredLabel,
		Descriptions: make(map[string]string, len(r.Description)),
		Links:        r.Links,
	}
	if len(r.ReferenceLanguage) > 0 {
		c.ReferenceLanguage = r.ReferenceLanguage[0]
	}
	for lang, desc := range r.Description {
		c.Descriptions[lang] = desc.Literal
	}
	return c
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(value.Type()) {
		key := field.Tag.Get("escoparam")
		if key == "" {
			continue
		}
		v := fmt.Sprintf("%v", value.FieldByIndex(field.Index).Interface())
		if v != "" && v != "0" {
			q.Set(key, v)
		}
	}

	return q
}
