// Package tfidf builds term statistics over knowledge entries and ranks the
// entries against a tokenized query.
package tfidf

import (
	"math"
	"strings"

	"fapassist/internal/domain"
	"fapassist/internal/textproc"
)

// Index holds TF-IDF statistics computed from one entry set. It is never
// mutated after Build returns.
type Index struct {
	DocumentCount     int
	DocumentFrequency map[string]int
	// TermWeights has one map per entry: 0.5 + 0.5*count/maxCount.
	TermWeights []map[string]float64

	titleTerms   []map[string]struct{}
	synonymTerms []map[string]struct{}
}

// Build computes the index for entries. Same entries, same index.
func Build(an *textproc.Analyzer, entries []domain.KnowledgeEntry) *Index {
	idx := &Index{
		DocumentCount:     len(entries),
		DocumentFrequency: make(map[string]int),
		TermWeights:       make([]map[string]float64, len(entries)),
		titleTerms:        make([]map[string]struct{}, len(entries)),
		synonymTerms:      make([]map[string]struct{}, len(entries)),
	}
	for i, e := range entries {
		synonyms := strings.Join(e.Synonyms, " ")
		counts := make(map[string]int)
		maxCount := 0
		for _, term := range an.Terms(e.Title + " " + e.Body + " " + synonyms) {
			counts[term]++
			if counts[term] > maxCount {
				maxCount = counts[term]
			}
		}
		weights := make(map[string]float64, len(counts))
		for term, c := range counts {
			weights[term] = 0.5 + 0.5*float64(c)/float64(maxCount)
			idx.DocumentFrequency[term]++
		}
		idx.TermWeights[i] = weights
		idx.titleTerms[i] = textproc.Set(an.Tokenize(e.Title))
		idx.synonymTerms[i] = textproc.Set(an.Tokenize(synonyms))
	}
	return idx
}

// IDF returns ln(N/df) with df floored at 1. An empty index yields 0.
func (idx *Index) IDF(term string) float64 {
	if idx == nil || idx.DocumentCount == 0 {
		return 0
	}
	df := idx.DocumentFrequency[term]
	if df < 1 {
		df = 1
	}
	return math.Log(float64(idx.DocumentCount) / float64(df))
}
