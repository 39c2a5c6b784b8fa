package intent

import (
	"regexp"

	"fapassist/internal/textproc"
)

// Symptom tags recorded on a Classification.
const (
	SymptomBlinking   = "clignotant"
	SymptomLight      = "voyant"
	SymptomPowerLoss  = "puissance"
	SymptomBlackSmoke = "fumee"
	SymptomClogged    = "sature"
)

// Patterns run on normalized text, so they carry no accents.
var (
	blinkingRe  = regexp.MustCompile(`voyant.*clignotant|clignotant.*voyant|temoin.*clignot|clignote`)
	lightRe     = regexp.MustCompile(`\b(?:voyant|temoin)`)
	powerLossRe = regexp.MustCompile(`\b(?:perte|baisse|manque)\b.*\bpuissance`)
	smokeRe     = regexp.MustCompile(`\bfumees?\b.*\bnoire`)
	cloggedRe   = regexp.MustCompile(`\b(?:sature|encrasse|colmate)`)
	filterRe    = regexp.MustCompile(`\b(?:fap|dpf)\b`)
	overheatRe  = regexp.MustCompile(`surchauff`)
	redEngineRe = regexp.MustCompile(`voyant.*rouge.*moteur`)
	unrelatedRe = regexp.MustCompile(`\b(?:embrayage|freins?|pneus?|batterie|climatisation|vidange|courroie|amortisseurs?|boite de vitesses?)\b`)
	flashRe     = regexp.MustCompile(`\bflash`)
)

var symptomTests = []struct {
	tag string
	re  *regexp.Regexp
}{
	{SymptomBlinking, blinkingRe},
	{SymptomLight, lightRe},
	{SymptomPowerLoss, powerLossRe},
	{SymptomBlackSmoke, smokeRe},
	{SymptomClogged, cloggedRe},
}

// MentionsBlinkingIndicator reports a blinking warning light.
func MentionsBlinkingIndicator(text string) bool { return blinkingRe.MatchString(textproc.Normalize(text)) }

// MentionsWarningLight reports any warning light.
func MentionsWarningLight(text string) bool { return lightRe.MatchString(textproc.Normalize(text)) }

// MentionsPowerLoss reports a loss of engine power.
func MentionsPowerLoss(text string) bool { return powerLossRe.MatchString(textproc.Normalize(text)) }

// MentionsBlackSmoke reports black exhaust smoke.
func MentionsBlackSmoke(text string) bool { return smokeRe.MatchString(textproc.Normalize(text)) }

// MentionsClogging reports a saturated or clogged filter.
func MentionsClogging(text string) bool { return cloggedRe.MatchString(textproc.Normalize(text)) }

// MentionsFilter reports an explicit FAP/DPF mention.
func MentionsFilter(text string) bool { return filterRe.MatchString(textproc.Normalize(text)) }

// MentionsOverheating reports engine overheating.
func MentionsOverheating(text string) bool { return overheatRe.MatchString(textproc.Normalize(text)) }

// MentionsRedEngineLight reports a red engine warning light.
func MentionsRedEngineLight(text string) bool { return redEngineRe.MatchString(textproc.Normalize(text)) }

// MentionsUnrelatedSubsystem reports a part of the car unrelated to the filter.
func MentionsUnrelatedSubsystem(text string) bool {
	return unrelatedRe.MatchString(textproc.Normalize(text))
}

// MentionsFlash reports the word "flash", used by drivers for a blinking light.
func MentionsFlash(text string) bool { return flashRe.MatchString(textproc.Normalize(text)) }

// Symptoms returns the symptom tags found in text, in a fixed order.
func Symptoms(text string) []string {
	return symptoms(textproc.Normalize(text))
}

func symptoms(norm string) []string {
	var out []string
	for _, st := range symptomTests {
		if st.re.MatchString(norm) {
			out = append(out, st.tag)
		}
	}
	return out
}
