package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fapassist/internal/domain"
	"fapassist/internal/lexicon"
)

func scoreOf(t *testing.T, scores []CategoryScore, cat domain.Category) float64 {
	t.Helper()
	for _, s := range scores {
		if s.Category == cat {
			return s.Score
		}
	}
	t.Fatalf("category %s not scored", cat)
	return 0
}

func TestClassify_BlinkingBeatsSingleSymptom(t *testing.T) {
	msg := "mon voyant clignote"
	got := Classify(msg)
	assert.Equal(t, domain.CategoryBlinking, got.Category)
	assert.Equal(t, []string{SymptomBlinking, SymptomLight}, got.Symptoms)

	scores := defaultClassifier.Scores(msg)
	assert.Greater(t, got.Confidence, scoreOf(t, scores, domain.CategorySingle))
	assert.Equal(t, got.Confidence, scoreOf(t, scores, domain.CategoryBlinking))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		category   domain.Category
		confidence float64
		symptoms   []string
	}{
		{"overheating", "Le moteur surchauffe", domain.CategoryUrgent, 30, nil},
		{"red engine light", "voyant rouge moteur allumé", domain.CategoryUrgent, 20, []string{SymptomLight}},
		{"blinking", "mon voyant clignote", domain.CategoryBlinking, 27, []string{SymptomBlinking, SymptomLight}},
		{"multi symptom", "perte de puissance et fumée noire", domain.CategoryMulti, 16, []string{SymptomPowerLoss, SymptomBlackSmoke}},
		{"single symptom", "mon FAP est saturé", domain.CategorySingle, 18, []string{SymptomClogged}},
		{"filter only", "question sur le DPF", domain.CategorySingle, 18, nil},
		{"unrelated", "mes freins grincent", domain.CategoryUnrelated, 12, nil},
		{"red engine light blinking", "mon voyant rouge moteur clignote", domain.CategoryUrgent, 20, []string{SymptomBlinking, SymptomLight}},
		{"overheating while blinking", "le voyant clignote et le moteur surchauffe", domain.CategoryUrgent, 30, []string{SymptomBlinking, SymptomLight}},
		{"turn signal", "le clignotant droit ne marche plus", domain.CategoryGeneric, 0, nil},
		{"generic", "bonjour", domain.CategoryGeneric, 0, nil},
		{"empty", "", domain.CategoryGeneric, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text)
			assert.Equal(t, tt.category, got.Category)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.symptoms, got.Symptoms)
		})
	}
}

func TestClassify_BlinkingWithManySymptoms(t *testing.T) {
	got := Classify("voyant qui clignote, perte de puissance, fumée noire, filtre saturé")
	assert.Equal(t, domain.CategoryBlinking, got.Category)
	assert.Equal(t, []string{SymptomBlinking, SymptomLight, SymptomPowerLoss, SymptomBlackSmoke, SymptomClogged}, got.Symptoms)
}

func TestClassify_UrgencyOutranksBlinking(t *testing.T) {
	msg := "mon voyant rouge moteur clignote"
	scores := defaultClassifier.Scores(msg)
	require.Greater(t, scoreOf(t, scores, domain.CategoryBlinking), scoreOf(t, scores, domain.CategoryUrgent))
	assert.Equal(t, domain.CategoryUrgent, Classify(msg).Category)
}

func TestClassify_MarkersCountOncePerCategory(t *testing.T) {
	msg := "filtre fap dpf particules encrassé, le voyant clignote"
	got := Classify(msg)
	assert.Equal(t, domain.CategoryBlinking, got.Category)
	assert.InDelta(t, 27, got.Confidence, 1e-9)
	assert.InDelta(t, 18, scoreOf(t, defaultClassifier.Scores(msg), domain.CategorySingle), 1e-9)
}

func TestClassify_Deterministic(t *testing.T) {
	msg := "Voyant FAP allumé et perte de puissance sur autoroute"
	first := Classify(msg)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Classify(msg))
	}
}

func TestScores_Order(t *testing.T) {
	scores := New(lexicon.IntentMarkers{}).Scores("rien")
	require.Len(t, scores, 6)
	want := []domain.Category{
		domain.CategoryUrgent,
		domain.CategoryBlinking,
		domain.CategoryMulti,
		domain.CategorySingle,
		domain.CategoryUnrelated,
		domain.CategoryGeneric,
	}
	for i, s := range scores {
		assert.Equal(t, want[i], s.Category)
		assert.Zero(t, s.Score)
	}
}

func TestNew_CustomMarkers(t *testing.T) {
	c := New(lexicon.IntentMarkers{Unrelated: []string{"Essuie-glace"}})
	got := c.Classify("mon essuie-glace est cassé")
	assert.Equal(t, domain.CategoryUnrelated, got.Category)
	assert.InDelta(t, 4, got.Confidence, 1e-9)
}

func TestPredicates(t *testing.T) {
	assert.True(t, MentionsBlinkingIndicator("Le témoin clignote"))
	assert.True(t, MentionsBlinkingIndicator("voyant FAP clignotant"))
	assert.False(t, MentionsBlinkingIndicator("le clignotant droit ne marche plus"))

	assert.True(t, MentionsWarningLight("Témoin allumé"))
	assert.False(t, MentionsWarningLight("tout va bien"))

	assert.True(t, MentionsPowerLoss("Baisse de puissance"))
	assert.False(t, MentionsPowerLoss("puissance correcte"))

	assert.True(t, MentionsBlackSmoke("Fumées noires à l'accélération"))
	assert.False(t, MentionsBlackSmoke("fumée blanche"))

	assert.True(t, MentionsClogging("filtre encrassé"))
	assert.True(t, MentionsFilter("DPF plein"))
	assert.False(t, MentionsFilter("fapxyz"))

	assert.True(t, MentionsOverheating("ça surchauffe"))
	assert.True(t, MentionsRedEngineLight("voyant rouge moteur"))
	assert.True(t, MentionsUnrelatedSubsystem("ma boîte de vitesse craque"))
	assert.False(t, MentionsUnrelatedSubsystem("filtre à particules"))
	assert.True(t, MentionsFlash("ça flashe au tableau de bord"))
}
