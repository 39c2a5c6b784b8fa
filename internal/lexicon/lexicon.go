// Package lexicon holds the language and domain tuning data used by the text
// pipeline: stopwords, stemming suffixes, synonyms, priority rules, first-turn
// markers and intent markers. The data is versioned YAML, not code.
package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed fr.yaml
var defaultData []byte

// SynonymGroup maps one term to its domain-equivalent terms.
type SynonymGroup struct {
	Term     string   `yaml:"term"`
	Synonyms []string `yaml:"synonyms"`
}

// PriorityRule assigns Priority to entries whose title contains Marker.
type PriorityRule struct {
	Marker   string `yaml:"marker"`
	Priority int    `yaml:"priority"`
}

// StemmingConfig lists the suffixes tried in order and the plural markers.
type StemmingConfig struct {
	Suffixes      []string `yaml:"suffixes"`
	PluralMarkers []string `yaml:"plural_markers"`
}

// PriorityConfig is an ordered, first-match-wins rule table.
type PriorityConfig struct {
	Default int            `yaml:"default"`
	Rules   []PriorityRule `yaml:"rules"`
}

// FirstTurnConfig drives first-turn detection.
type FirstTurnConfig struct {
	MinLength int      `yaml:"min_length"`
	Markers   []string `yaml:"markers"`
}

// IntentMarkers holds the marker keywords of the keyword-driven intent categories.
type IntentMarkers struct {
	Urgent    []string `yaml:"urgent"`
	Blinking  []string `yaml:"blinking"`
	Single    []string `yaml:"single"`
	Unrelated []string `yaml:"unrelated"`
}

// Lexicon is the root of the tuning data file.
type Lexicon struct {
	Version   string          `yaml:"version"`
	Stopwords []string        `yaml:"stopwords"`
	Stemming  StemmingConfig  `yaml:"stemming"`
	Synonyms  []SynonymGroup  `yaml:"synonyms"`
	Priority  PriorityConfig  `yaml:"priority"`
	FirstTurn FirstTurnConfig `yaml:"first_turn"`
	Intents   IntentMarkers   `yaml:"intents"`
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the embedded French automotive lexicon. The embedded file is
// part of the build, so a parse failure panics.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lex, err := Parse(defaultData)
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded data: %v", err))
		}
		defaultLex = lex
	})
	return defaultLex
}

// Load reads a lexicon override from path.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return lex, nil
}

// Parse decodes and validates lexicon YAML.
func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, err
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

// Validate checks the invariants the text pipeline relies on.
func (l *Lexicon) Validate() error {
	if l.Version == "" {
		return errors.New("missing version")
	}
	for _, s := range l.Stemming.Suffixes {
		if s == "" {
			return errors.New("empty stemming suffix")
		}
	}
	for _, g := range l.Synonyms {
		if g.Term == "" {
			return errors.New("synonym group without term")
		}
	}
	for _, r := range l.Priority.Rules {
		if r.Marker == "" {
			return errors.New("priority rule without marker")
		}
	}
	if l.FirstTurn.MinLength < 0 {
		return fmt.Errorf("negative first_turn.min_length %d", l.FirstTurn.MinLength)
	}
	return nil
}
