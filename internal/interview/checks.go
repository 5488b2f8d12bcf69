package interview

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skill-mapper/internal/conversation"
)

// MinMessageLength is the shortest trimmed user message that passes the
// length check.
const MinMessageLength = 5

// DefaultKeywords signal that a message talks about skills.
var DefaultKeywords = []string{
	"skill", "experience", "able", "can", "know",
	"worked", "built", "led", "managed", "learned",
}

// Check is a single validation step applied to a user message.
type Check interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(state conversation.State, text string) []string
}

// Validation is the verdict of all enabled checks.
type Validation struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// Status represents runtime information about a check.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// DefaultChecks returns the length and phase keyword checks.
func DefaultChecks() []Check {
	return []Check{NewMinLength(MinMessageLength), NewPhaseKeywords(DefaultKeywords)}
}

// DisableByName marks a check with the provided name as disabled while keeping it in the list.
func DisableByName(checks []Check, name, reason string) {
	for _, c := range checks {
		if c.Name() == name {
			c.Disable(reason)
		}
	}
}

// RunChecks applies the enabled checks in order and collects their issues.
func RunChecks(checks []Check, state conversation.State, text string, log *zap.Logger) Validation {
	var issues []string
	for _, c := range checks {
		if !c.IsEnabled() {
			continue
		}
		found := c.Apply(state, text)
		if len(found) > 0 && log != nil {
			log.Debug("validation check failed",
				zap.String("name", c.Name()),
				zap.Strings("issues", found),
			)
		}
		issues = append(issues, found...)
	}
	return Validation{Valid: len(issues) == 0, Issues: issues}
}

// DescribeChecks returns status entries for the provided checks.
func DescribeChecks(checks []Check) []Status {
	statuses := make([]Status, 0, len(checks))
	for _, c := range checks {
		if reporter, ok := c.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: c.Name(), Enabled: c.IsEnabled()})
	}
	return statuses
}

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type minLengthCheck struct {
	toggle
	min int
}

// NewMinLength rejects messages shorter than minLen characters after trimming.
func NewMinLength(minLen int) Check {
	return &minLengthCheck{min: minLen}
}

func (c *minLengthCheck) Name() string { return "min_length" }

func (c *minLengthCheck) Apply(_ conversation.State, text string) []string {
	if len([]rune(strings.TrimSpace(text))) < c.min {
		return []string{"Response too short"}
	}
	return nil
}

func (c *minLengthCheck) Status() Status {
	return Status{
		Name:    c.Name(),
		Enabled: c.IsEnabled(),
		Reason:  c.reason,
		Details: map[string]string{"min": strconv.Itoa(c.min)},
	}
}

type phaseKeywordsCheck struct {
	toggle
	keywords []string
}

// NewPhaseKeywords requires one of keywords while skills are discovered or
// validated.
func NewPhaseKeywords(keywords []string) Check {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &phaseKeywordsCheck{keywords: lowered}
}

func (c *phaseKeywordsCheck) Name() string { return "phase_keywords" }

func (c *phaseKeywordsCheck) Apply(state conversation.State, text string) []string {
	if state != conversation.StateCompetencyDiscovery && state != conversation.StateValidation {
		return nil
	}
	lower := strings.ToLower(text)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return nil
		}
	}
	return []string{"Response lacks competency-related content"}
}

func (c *phaseKeywordsCheck) Status() Status {
	return Status{
		Name:    c.Name(),
		Enabled: c.IsEnabled(),
		Reason:  c.reason,
		Details: map[string]string{"keywords": strings.Join(c.keywords, ",")},
	}
}
