package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateFallbacks(t *testing.T) {
	c := Candidate{
		Title:             "Python (computer programming)",
		ReferenceLanguage: "en",
		Labels:            map[string]string{"de": "Python"},
		Descriptions:      map[string]string{"en": "Techniques of software development in Python."},
	}

	assert.Equal(t, "Python", c.Label("de"))
	assert.Equal(t, "Python (computer programming)", c.Label("fr"))
	assert.Equal(t, "Techniques of software development in Python.", c.Description("de"))

	assert.Equal(t, "No description available", Candidate{}.Description("en"))
}
