package competency

import "fmt"

// Summary aggregates a set of skills for progress reports.
type Summary struct {
	Total             int            `json:"total"`
	Mapped            int            `json:"mapped"`
	Custom            int            `json:"custom"`
	HighConfidence    int            `json:"high_confidence"`
	AverageConfidence float64        `json:"average_confidence"`
	BySource          map[string]int `json:"by_source"`
	ByCategory        map[string]int `json:"by_category"`
}

// Summarize counts mapped and custom skills. It panics on a Skill
// implementation outside this package.
func Summarize(skills []Skill) Summary {
	s := Summary{
		BySource:   make(map[string]int),
		ByCategory: make(map[string]int),
	}

	var sum float64
	for _, skill := range skills {
		switch v := skill.(type) {
		case *Mapped:
			s.Mapped++
			s.BySource[v.FrameworkSource]++
			if v.IsHighConfidence() {
				s.HighConfidence++
			}
		case *Claim:
			s.Custom++
			s.ByCategory[string(v.Category)]++
			if v.Confidence >= HighConfidenceThreshold {
				s.HighConfidence++
			}
		default:
			panic(fmt.Sprintf("competency: unknown skill type %T", skill))
		}
		sum += skill.SkillConfidence()
		s.Total++
	}

	if s.Total > 0 {
		s.AverageConfidence = sum / float64(s.Total)
	}

	return s
}

// MappedSkills wraps resolved competencies as skills.
func MappedSkills(items []*Mapped) []Skill {
	out := make([]Skill, 0, len(items))
	for _, m := range items {
		out = append(out, m)
	}
	return out
}
