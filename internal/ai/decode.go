package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON strips markdown code fences models sometimes wrap JSON in.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// DecodeStrict validates raw model output against schema and decodes it into
// out, rejecting unknown fields. Every failure wraps ErrSchemaViolation.
func DecodeStrict(raw string, schema *Schema, out any) error {
	cleaned := []byte(ExtractJSON(raw))
	if len(cleaned) == 0 {
		return fmt.Errorf("%w: empty output", ErrSchemaViolation)
	}

	var generic any
	if err := json.Unmarshal(cleaned, &generic); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	dec := json.NewDecoder(bytes.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	return nil
}
