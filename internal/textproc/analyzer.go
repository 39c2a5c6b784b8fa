package textproc

import (
	"strings"
	"sync"
	"unicode/utf8"

	"fapassist/internal/lexicon"
)

// minTokenLength is the shortest token kept; shorter ones carry no signal.
const minTokenLength = 3

// Analyzer tokenizes text with one lexicon. It is immutable and safe for
// concurrent use.
type Analyzer struct {
	stopwords map[string]struct{}
	suffixes  []string
	plurals   []string
	synonyms  map[string][]string
}

// NewAnalyzer builds an analyzer from lex. Lexicon words are normalized so the
// data file may be written with or without accents.
func NewAnalyzer(lex *lexicon.Lexicon) *Analyzer {
	a := &Analyzer{
		stopwords: make(map[string]struct{}, len(lex.Stopwords)),
		synonyms:  make(map[string][]string, len(lex.Synonyms)),
	}
	for _, w := range lex.Stopwords {
		a.stopwords[Normalize(w)] = struct{}{}
	}
	for _, s := range lex.Stemming.Suffixes {
		a.suffixes = append(a.suffixes, Normalize(s))
	}
	for _, p := range lex.Stemming.PluralMarkers {
		a.plurals = append(a.plurals, Normalize(p))
	}
	for _, g := range lex.Synonyms {
		term := Normalize(g.Term)
		if _, ok := a.synonyms[term]; ok {
			// first group for a term wins
			continue
		}
		syns := make([]string, 0, len(g.Synonyms))
		for _, s := range g.Synonyms {
			if n := Normalize(s); n != "" {
				syns = append(syns, n)
			}
		}
		a.synonyms[term] = syns
	}
	return a
}

var (
	defaultOnce     sync.Once
	defaultAnalyzer *Analyzer
)

// Default returns the analyzer for the embedded lexicon.
func Default() *Analyzer {
	defaultOnce.Do(func() {
		defaultAnalyzer = NewAnalyzer(lexicon.Default())
	})
	return defaultAnalyzer
}

// Tokenize uses the default analyzer.
func Tokenize(text string) []string { return Default().Tokenize(text) }

// Stem uses the default analyzer.
func Stem(word string) string { return Default().Stem(word) }

// Stem strips the first listed suffix that leaves more than two runes;
// failing that, one plural marker from words longer than three runes.
// Only one rule applies.
func (a *Analyzer) Stem(word string) string {
	n := utf8.RuneCountInString(word)
	for _, suffix := range a.suffixes {
		if n > utf8.RuneCountInString(suffix)+2 && strings.HasSuffix(word, suffix) {
			return strings.TrimSuffix(word, suffix)
		}
	}
	for _, p := range a.plurals {
		if n > 3 && strings.HasSuffix(word, p) {
			return strings.TrimSuffix(word, p)
		}
	}
	return word
}

// Words returns the normalized tokens of text that survive the length and
// stopword filters, in order, unstemmed.
func (a *Analyzer) Words(text string) []string {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	parts := strings.Split(norm, " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if utf8.RuneCountInString(p) < minTokenLength {
			continue
		}
		if _, stop := a.stopwords[p]; stop {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Stems returns the stemmed words of text before synonym expansion, deduplicated
// in first-seen order.
func (a *Analyzer) Stems(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range a.Words(text) {
		s := a.Stem(w)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Synonyms returns the synonyms for a token, looked up by its stem first and
// then by the raw token.
func (a *Analyzer) Synonyms(token, stem string) []string {
	if syns, ok := a.synonyms[stem]; ok {
		return syns
	}
	return a.synonyms[token]
}

// Terms returns every stemmed token of text followed by its synonyms, keeping
// duplicates. Term counts are computed over this stream.
func (a *Analyzer) Terms(text string) []string {
	words := a.Words(text)
	out := make([]string, 0, len(words)*2)
	for _, w := range words {
		s := a.Stem(w)
		out = append(out, s)
		out = append(out, a.Synonyms(w, s)...)
	}
	return out
}

// Tokenize returns the ordered set of search terms for text: stemmed tokens in
// first-seen order, then the synonyms they expand to. Expansion only adds.
func (a *Analyzer) Tokenize(text string) []string {
	words := a.Words(text)
	if len(words) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(words)*2)
	out := make([]string, 0, len(words)*2)
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	stems := make([]string, len(words))
	for i, w := range words {
		stems[i] = a.Stem(w)
		add(stems[i])
	}
	for i, w := range words {
		for _, syn := range a.Synonyms(w, stems[i]) {
			add(syn)
		}
	}
	return out
}

// Set converts terms into a lookup set.
func Set(terms []string) map[string]struct{} {
	m := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		m[t] = struct{}{}
	}
	return m
}
