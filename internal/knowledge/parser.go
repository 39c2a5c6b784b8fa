package knowledge

import (
	"regexp"
	"strings"

	"fapassist/internal/domain"
	"fapassist/internal/lexicon"
	"fapassist/internal/textproc"
)

// Parser splits a flat knowledge document into titled entries.
type Parser struct {
	rules           []lexicon.PriorityRule
	defaultPriority int
	header          *regexp.Regexp
	synonymLine     *regexp.Regexp
	keywordLine     *regexp.Regexp
	listSeparator   *regexp.Regexp
}

// NewParser creates a parser that scores titles with the given priority table.
func NewParser(priority lexicon.PriorityConfig) *Parser {
	rules := make([]lexicon.PriorityRule, 0, len(priority.Rules))
	for _, r := range priority.Rules {
		rules = append(rules, lexicon.PriorityRule{Marker: textproc.Normalize(r.Marker), Priority: r.Priority})
	}
	return &Parser{
		rules:           rules,
		defaultPriority: priority.Default,
		header:          regexp.MustCompile(`^\[([^\]]*)\](.*)$`),
		synonymLine:     regexp.MustCompile(`(?i)^\s*(?:synonymes|synonyms)\s*:\s*(.*)$`),
		keywordLine:     regexp.MustCompile(`(?i)^\s*(?:mots-cl[eé]s|keywords)\s*:\s*(.*)$`),
		listSeparator:   regexp.MustCompile(`[,|]`),
	}
}

var defaultParser = NewParser(lexicon.Default().Priority)

// Parse uses the parser built from the embedded lexicon.
func Parse(raw string) []domain.KnowledgeEntry { return defaultParser.Parse(raw) }

type block struct {
	title string
	lines []string
}

// Parse returns the entries of raw in document order. Text before the first
// header and blocks with an empty title are dropped.
func (p *Parser) Parse(raw string) []domain.KnowledgeEntry {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var (
		entries []domain.KnowledgeEntry
		cur     *block
	)
	flush := func() {
		if cur == nil {
			return
		}
		if e, ok := p.entry(cur); ok {
			entries = append(entries, e)
		}
		cur = nil
	}
	for _, line := range strings.Split(raw, "\n") {
		if m := p.header.FindStringSubmatch(line); m != nil {
			flush()
			cur = &block{title: m[1], lines: []string{m[2]}}
			continue
		}
		if cur != nil {
			cur.lines = append(cur.lines, line)
		}
	}
	flush()
	return entries
}

func (p *Parser) entry(b *block) (domain.KnowledgeEntry, bool) {
	title := strings.TrimSpace(b.title)
	if title == "" {
		return domain.KnowledgeEntry{}, false
	}
	var (
		body     []string
		synonyms []string
		keywords []string
	)
	for _, line := range b.lines {
		if m := p.synonymLine.FindStringSubmatch(line); m != nil {
			synonyms = append(synonyms, p.splitList(m[1])...)
			continue
		}
		if m := p.keywordLine.FindStringSubmatch(line); m != nil {
			keywords = append(keywords, p.splitList(m[1])...)
			continue
		}
		body = append(body, line)
	}
	return domain.KnowledgeEntry{
		Title:    title,
		Body:     strings.TrimSpace(strings.Join(body, "\n")),
		Synonyms: synonyms,
		Keywords: keywords,
		Priority: p.Priority(title),
	}, true
}

func (p *Parser) splitList(s string) []string {
	var out []string
	for _, part := range p.listSeparator.Split(s, -1) {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Priority returns the priority of the first rule whose marker appears in the
// normalized title, or the default.
func (p *Parser) Priority(title string) int {
	norm := textproc.Normalize(title)
	for _, r := range p.rules {
		if r.Marker != "" && strings.Contains(norm, r.Marker) {
			return r.Priority
		}
	}
	return p.defaultPriority
}
