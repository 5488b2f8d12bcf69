package conversation

import "fmt"

// QuestionStrategy decides when a phase is done and what to ask next.
type QuestionStrategy interface {
	ShouldTransition(conv *Conversation) bool
	// NextQuestion returns false once there is nothing left to ask.
	NextQuestion(conv *Conversation, context map[string]any) (string, bool)
}

// DefaultMinTurns is the number of user turns each phase collects before
// the guided strategy moves on.
var DefaultMinTurns = map[State]int{
	StateInitializing:        1,
	StateModeSelection:       1,
	StateContextGathering:    2,
	StateCompetencyDiscovery: 3,
	StateValidation:          1,
	StateMapping:             1,
	StateReview:              1,
}

var defaultQuestions = map[State][]string{
	StateInitializing: {
		"Welcome! I will help you describe your skills and map them to a competency framework. Shall we begin?",
	},
	StateModeSelection: {
		"Would you like a guided interview or would you prefer to tell your story freely?",
	},
	StateContextGathering: {
		"Tell me about your current or most recent role. What does a typical week look like?",
		"Which projects, volunteering or training from the last few years are you most proud of?",
	},
	StateCompetencyDiscovery: {
		"Describe a task where you had to learn something new quickly. What did you do?",
		"Which tools, methods or languages do you use with confidence?",
		"Tell me about a time you led or coordinated other people.",
	},
	StateValidation: {
		"Let me check that I understood you correctly. Can you give a concrete example for the skills you mentioned?",
	},
	StateMapping: {
		"I am matching your skills to the framework now. Is there anything you would like to add before I do?",
	},
	StateReview: {
		"Here is what I found. Does this summary reflect your experience?",
	},
}

// GuidedStrategy walks a fixed question bank per phase.
type GuidedStrategy struct {
	minTurns  map[State]int
	questions map[State][]string
}

// NewGuidedStrategy returns a strategy with the built-in questions. Entries
// in minTurns override the defaults per state.
func NewGuidedStrategy(minTurns map[State]int) *GuidedStrategy {
	turns := make(map[State]int, len(DefaultMinTurns))
	for st, n := range DefaultMinTurns {
		turns[st] = n
	}
	for st, n := range minTurns {
		if n > 0 {
			turns[st] = n
		}
	}
	return &GuidedStrategy{minTurns: turns, questions: defaultQuestions}
}

// WithQuestions replaces the question bank of a state.
func (g *GuidedStrategy) WithQuestions(st State, questions ...string) *GuidedStrategy {
	bank := make(map[State][]string, len(g.questions))
	for k, v := range g.questions {
		bank[k] = v
	}
	bank[st] = questions
	g.questions = bank
	return g
}

func (g *GuidedStrategy) MinTurns(st State) int { return g.minTurns[st] }

func (g *GuidedStrategy) ShouldTransition(conv *Conversation) bool {
	st := conv.State()
	if st.IsTerminal() {
		return false
	}
	return conv.UserTurnsInState() >= g.minTurns[st]
}

// NextQuestion picks the question matching the number of turns already
// spent in the current phase. A "focus" entry in context is appended as a
// follow-up hint.
func (g *GuidedStrategy) NextQuestion(conv *Conversation, context map[string]any) (string, bool) {
	st := conv.State()
	if st.IsTerminal() {
		return "", false
	}
	bank := g.questions[st]
	if len(bank) == 0 {
		return "", false
	}

	idx := conv.UserTurnsInState()
	if idx >= len(bank) {
		idx = len(bank) - 1
	}
	question := bank[idx]
	if focus, ok := context["focus"].(string); ok && focus != "" {
		question = fmt.Sprintf("%s (Please focus on %s.)", question, focus)
	}
	return question, true
}
