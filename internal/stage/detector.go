// Package stage decides whether a user turn opens a conversation.
package stage

import (
	"strings"
	"unicode/utf8"

	"fapassist/internal/lexicon"
	"fapassist/internal/textproc"
)

// Detector finds assistant-authored phrases in the conversation history.
type Detector struct {
	minLength int
	markers   []string
}

// New creates a detector from the first-turn tuning data.
func New(cfg lexicon.FirstTurnConfig) *Detector {
	d := &Detector{minLength: cfg.MinLength}
	for _, m := range cfg.Markers {
		if n := textproc.Normalize(m); n != "" {
			d.markers = append(d.markers, n)
		}
	}
	return d
}

var defaultDetector = New(lexicon.Default().FirstTurn)

// IsFirstTurn uses the detector built from the embedded lexicon.
func IsFirstTurn(history string) bool { return defaultDetector.IsFirstTurn(history) }

// IsFirstTurn reports true when history is shorter than the minimum length or
// contains none of the assistant markers.
func (d *Detector) IsFirstTurn(history string) bool {
	if utf8.RuneCountInString(history) < d.minLength {
		return true
	}
	norm := textproc.Normalize(history)
	for _, m := range d.markers {
		if strings.Contains(norm, m) {
			return false
		}
	}
	return true
}
