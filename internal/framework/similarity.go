package framework

import (
	"github.com/spigell/skill-mapper/internal/utils"
)

const (
	linkedScore    = 0.8
	nameWeight     = 0.3
	keywordWeight  = 0.4
	categoryWeight = 0.3
)

// Similarity scores two competencies in [0, 1]. Identical ids score 1 and
// linked competencies score 0.8 regardless of wording. Otherwise the score
// combines name word overlap, keyword overlap and category equality.
func Similarity(a, b *Competency) float64 {
	if a == nil || b == nil {
		return 0
	}
	if a.ID != "" && a.ID == b.ID {
		return 1
	}
	if a.IsLinked(b) {
		return linkedScore
	}

	category := 0.0
	if a.Category != "" && a.Category == b.Category {
		category = 1
	}

	return utils.Clamp01(lexical(a, b) + categoryWeight*category)
}

// lexicalSimilarity scores only name and keyword overlap, rescaled to [0, 1].
// It is used when the category of a is unknown.
func lexicalSimilarity(a, b *Competency) float64 {
	if a == nil || b == nil {
		return 0
	}
	return utils.Clamp01(lexical(a, b) / (nameWeight + keywordWeight))
}

func lexical(a, b *Competency) float64 {
	name := jaccard(utils.Words(a.Name), utils.Words(b.Name))
	keywords := jaccard(a.Keywords, b.Keywords)
	return nameWeight*name + keywordWeight*keywords
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}

	union := len(set)
	common := 0
	seen := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := set[v]; ok {
			common++
		} else {
			union++
		}
	}

	return float64(common) / float64(union)
}
