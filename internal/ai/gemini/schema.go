package gemini

import (
	"sort"

	"github.com/spigell/skill-mapper/internal/ai"

	"google.golang.org/genai"
)

// toGenaiSchema converts the shared schema to the Gemini response schema.
// Gemini has no additionalProperties; unknown fields are rejected when the
// output is decoded.
func toGenaiSchema(s *ai.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		Items:       toGenaiSchema(s.Items),
	}

	switch s.Type {
	case ai.TypeObject:
		out.Type = genai.TypeObject
	case ai.TypeArray:
		out.Type = genai.TypeArray
	case ai.TypeString:
		out.Type = genai.TypeString
	case ai.TypeNumber:
		out.Type = genai.TypeNumber
	case ai.TypeInteger:
		out.Type = genai.TypeInteger
	case ai.TypeBoolean:
		out.Type = genai.TypeBoolean
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		order := make([]string, 0, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
			order = append(order, name)
		}
		sort.Strings(order)
		out.PropertyOrdering = order
	}

	return out
}
