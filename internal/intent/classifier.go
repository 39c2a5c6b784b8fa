// Package intent maps a user message to a diagnostic category with an ordered,
// deterministic rule cascade.
package intent

import (
	"strings"

	"fapassist/internal/domain"
	"fapassist/internal/lexicon"
	"fapassist/internal/textproc"
)

// PatternBonus multiplies a category weight when its composite pattern holds.
const PatternBonus = 2.0

// CategoryScore is the score of one category for one message.
type CategoryScore struct {
	Category domain.Category
	Score    float64
}

type category struct {
	id      domain.Category
	weight  float64
	markers map[string]struct{}
	pattern func(norm string, symptoms []string) bool

	// decisive categories win outright when their pattern holds.
	decisive bool
}

// Classifier scores categories in declaration order: urgency, blinking
// indicator, multi-symptom, single-symptom, unrelated subsystem, generic.
// A matched urgency pattern always wins. Otherwise the highest score wins
// and ties go to the earlier category. Marker keywords add a category's
// weight once, however many of them the message contains.
type Classifier struct {
	categories []category
}

// New builds a classifier with the marker keywords from markers.
func New(markers lexicon.IntentMarkers) *Classifier {
	return &Classifier{categories: []category{
		{
			id:      domain.CategoryUrgent,
			weight:  10,
			markers: markerSet(markers.Urgent),
			pattern: func(norm string, _ []string) bool {
				return overheatRe.MatchString(norm) || redEngineRe.MatchString(norm)
			},
			decisive: true,
		},
		{
			id:      domain.CategoryBlinking,
			weight:  9,
			markers: markerSet(markers.Blinking),
			pattern: func(norm string, _ []string) bool { return blinkingRe.MatchString(norm) },
		},
		{
			id:      domain.CategoryMulti,
			weight:  8,
			pattern: func(_ string, symptoms []string) bool { return len(symptoms) >= 2 },
		},
		{
			id:      domain.CategorySingle,
			weight:  6,
			markers: markerSet(markers.Single),
			pattern: func(norm string, symptoms []string) bool {
				return len(symptoms) == 1 || filterRe.MatchString(norm)
			},
		},
		{
			id:      domain.CategoryUnrelated,
			weight:  4,
			markers: markerSet(markers.Unrelated),
			pattern: func(norm string, _ []string) bool { return unrelatedRe.MatchString(norm) },
		},
		{id: domain.CategoryGeneric},
	}}
}

var defaultClassifier = New(lexicon.Default().Intents)

// Classify uses the classifier built from the embedded lexicon.
func Classify(text string) domain.Classification { return defaultClassifier.Classify(text) }

// Scores returns the score of every category for text, in evaluation order.
func (c *Classifier) Scores(text string) []CategoryScore {
	norm := textproc.Normalize(text)
	scores, _, _ := c.score(norm)
	return scores
}

// Classify picks the best category for text. When nothing scores, the result
// is the generic category with confidence 0.
func (c *Classifier) Classify(text string) domain.Classification {
	norm := textproc.Normalize(text)
	scores, syms, decided := c.score(norm)
	best := CategoryScore{Category: domain.CategoryGeneric}
	if decided >= 0 {
		best = scores[decided]
	} else {
		for _, s := range scores {
			if s.Score > best.Score {
				best = s
			}
		}
	}
	return domain.Classification{
		Category:   best.Category,
		Confidence: best.Score,
		Symptoms:   syms,
	}
}

// score returns every category score, the symptom tags and the index of the
// first decisive category whose pattern matched, or -1.
func (c *Classifier) score(norm string) ([]CategoryScore, []string, int) {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(norm) {
		words[w] = struct{}{}
	}
	syms := symptoms(norm)
	out := make([]CategoryScore, 0, len(c.categories))
	decided := -1
	for i, cat := range c.categories {
		var score float64
		if cat.hit(words) {
			score = cat.weight
		}
		if cat.pattern != nil && cat.pattern(norm, syms) {
			score += cat.weight * PatternBonus
			if cat.decisive && decided < 0 {
				decided = i
			}
		}
		out = append(out, CategoryScore{Category: cat.id, Score: score})
	}
	return out, syms, decided
}

func (c category) hit(words map[string]struct{}) bool {
	for m := range c.markers {
		if _, ok := words[m]; ok {
			return true
		}
	}
	return false
}

func markerSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		if n := textproc.Normalize(w); n != "" {
			m[n] = struct{}{}
		}
	}
	return m
}
