package tfidf

import (
	"sort"

	"fapassist/internal/domain"
)

// Ranking constants.
const (
	DefaultTopK    = 3
	TitleBonus     = 1.5
	SynonymBonus   = 1.2
	PriorityWeight = 0.1
)

// Result is one scored entry with the parts of its score.
type Result struct {
	Entry          domain.KnowledgeEntry
	Score          float64
	Relevance      float64
	TitleMatches   int
	SynonymMatches int
}

// Score computes one Result per entry, in entry order. Duplicate query terms
// are counted once.
func Score(idx *Index, entries []domain.KnowledgeEntry, queryTerms []string) []Result {
	terms := dedupe(queryTerms)
	idfSum := 0.0
	idfs := make([]float64, len(terms))
	for i, t := range terms {
		idfs[i] = idx.IDF(t)
		idfSum += idfs[i]
	}

	results := make([]Result, len(entries))
	for i, e := range entries {
		r := Result{Entry: e}
		if idx != nil && i < len(idx.TermWeights) {
			weights := idx.TermWeights[i]
			sum := 0.0
			for j, t := range terms {
				sum += weights[t] * idfs[j]
				if contains(idx.titleTerms, i, t) {
					r.TitleMatches++
				}
				if contains(idx.synonymTerms, i, t) {
					r.SynonymMatches++
				}
			}
			if idfSum > 0 {
				r.Relevance = sum / idfSum
			}
		}
		r.Score = r.Relevance +
			TitleBonus*float64(r.TitleMatches) +
			SynonymBonus*float64(r.SynonymMatches) +
			PriorityWeight*float64(e.Priority)
		results[i] = r
	}
	return results
}

// Top returns up to k results by descending score. Equal scores keep entry
// order. k <= 0 means DefaultTopK.
func Top(idx *Index, entries []domain.KnowledgeEntry, queryTerms []string, k int) []Result {
	if k <= 0 {
		k = DefaultTopK
	}
	results := Score(idx, entries, queryTerms)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

// Rank returns the top k entries for queryTerms. An empty corpus yields an
// empty slice, meaning no contextual knowledge is available.
func Rank(idx *Index, entries []domain.KnowledgeEntry, queryTerms []string, k int) []domain.KnowledgeEntry {
	top := Top(idx, entries, queryTerms, k)
	out := make([]domain.KnowledgeEntry, len(top))
	for i, r := range top {
		out[i] = r.Entry
	}
	return out
}

func contains(sets []map[string]struct{}, i int, term string) bool {
	if i >= len(sets) {
		return false
	}
	_, ok := sets[i][term]
	return ok
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
