package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idSchema() *Schema {
	return Object(map[string]*Schema{"id": Integer("candidate index")})
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantID  int
		wantErr bool
	}{
		{name: "plain", raw: `{"id": 3}`, wantID: 3},
		{name: "fenced", raw: "```json\n{\"id\": 1}\n```", wantID: 1},
		{name: "extra property", raw: `{"id": 1, "why": "x"}`, wantErr: true},
		{name: "missing property", raw: `{}`, wantErr: true},
		{name: "not integer", raw: `{"id": 1.5}`, wantErr: true},
		{name: "not json", raw: `index three`, wantErr: true},
		{name: "empty", raw: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out struct {
				ID int `json:"id"`
			}
			err := DecodeStrict(tt.raw, idSchema(), &out)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrSchemaViolation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, out.ID)
		})
	}
}

func TestSchemaValidateNested(t *testing.T) {
	schema := Object(map[string]*Schema{
		"skills": ArrayOf(Object(map[string]*Schema{
			"name":       String("skill name"),
			"category":   String("category", "technical", "soft"),
			"confidence": Number("confidence", 0, 1),
		})),
	})

	valid := map[string]any{"skills": []any{
		map[string]any{"name": "Go", "category": "technical", "confidence": 0.7},
	}}
	require.NoError(t, schema.Validate(valid))

	badEnum := map[string]any{"skills": []any{
		map[string]any{"name": "Go", "category": "hard", "confidence": 0.7},
	}}
	assert.ErrorContains(t, schema.Validate(badEnum), "$.skills[0].category")

	outOfRange := map[string]any{"skills": []any{
		map[string]any{"name": "Go", "category": "soft", "confidence": 1.5},
	}}
	assert.ErrorContains(t, schema.Validate(outOfRange), "above maximum")
}

func TestSchemaMap(t *testing.T) {
	m := idSchema().Map()
	assert.Equal(t, "object", m["type"])
	assert.Equal(t, false, m["additionalProperties"])
	assert.Equal(t, []any{"id"}, m["required"])
}
