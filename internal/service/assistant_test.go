package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fapassist/internal/domain"
	"fapassist/internal/kb"
	"fapassist/internal/llm/mistral"
	"fapassist/internal/stage"
)

const testKB = `[FAP_CLIGNOTANT]
Un voyant clignotant signale un filtre très encrassé. Le véhicule passe en mode dégradé.

[HORAIRES]
Ouvert du lundi au vendredi.

[NETTOYAGE]
Nettoyage haute pression en 48 heures.
`

const followUpHistory = "Utilisateur: mon voyant FAP clignote\n" +
	"Assistant: Bonjour ! Je comprends que voir un voyant FAP clignoter peut être inquiétant."

const followUpQuestion = "il clignote depuis hier, je roule surtout en ville"

type memSource struct {
	mu   sync.Mutex
	text string
	err  error
}

func (m *memSource) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, m.err
}

func (m *memSource) set(text string, err error) {
	m.mu.Lock()
	m.text, m.err = text, err
	m.mu.Unlock()
}

type fakeLLM struct {
	reply string
	err   error
	calls [][]domain.Message
}

func (f *fakeLLM) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newService(t *testing.T, llm domain.ChatClient, opts Options) (*AssistantService, *memSource, *kb.Base) {
	t.Helper()
	src := &memSource{text: testKB}
	base := kb.New(src, kb.Options{})
	require.NoError(t, base.Init(context.Background()))
	return NewAssistantService(base, llm, opts), src, base
}

func TestFirstTurnReply(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"Le voyant FAP clignote", firstTurnTemplates[0].text},
		{"ça flashe au tableau de bord", firstTurnTemplates[0].text},
		{"mon voyant clignote et fumée noire", firstTurnTemplates[0].text},
		{"Témoin allumé depuis ce matin", firstTurnTemplates[1].text},
		{"DPF saturé", firstTurnTemplates[2].text},
		{"perte de puissance en côte", firstTurnTemplates[3].text},
		{"Il manque de la puissance", firstTurnTemplates[3].text},
		{"fumée noire à l'accélération", firstTurnTemplates[4].text},
		{"fumée à l'échappement", generalFirstTurnReply},
		{"Bonjour", generalFirstTurnReply},
		{"", generalFirstTurnReply},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstTurnReply(tt.question), tt.question)
	}
}

func TestFirstTurnTemplates_EndTheFirstTurn(t *testing.T) {
	texts := []string{generalFirstTurnReply}
	for _, tpl := range firstTurnTemplates {
		texts = append(texts, tpl.text)
	}
	for i, text := range texts {
		history := "Utilisateur: q\nAssistant: " + text
		assert.False(t, stage.IsFirstTurn(history), "template %d", i)
	}
}

func TestReply_NoLLM(t *testing.T) {
	svc, _, _ := newService(t, nil, Options{})
	assert.False(t, svc.HasLLM())
	_, err := svc.Reply(context.Background(), "mon voyant clignote", "")
	assert.ErrorIs(t, err, ErrNoLLM)
}

func TestReply_InvalidQuestion(t *testing.T) {
	svc, _, _ := newService(t, &fakeLLM{}, Options{})
	_, err := svc.Reply(context.Background(), "   ", followUpHistory)
	assert.ErrorIs(t, err, ErrInvalidQuestion)
	_, err = svc.Analyze(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidQuestion)
}

func TestReply_FirstTurn(t *testing.T) {
	llm := &fakeLLM{reply: "ne doit pas servir"}
	svc, _, _ := newService(t, llm, Options{Debug: true})

	got, err := svc.Reply(context.Background(), "mon voyant clignote", "")
	require.NoError(t, err)
	assert.Equal(t, firstTurnTemplates[0].text, got.Reply)
	assert.Equal(t, domain.CategoryFirstInteraction, got.NextAction.Category)
	assert.InDelta(t, 10, got.NextAction.Confidence, 1e-9)
	assert.Nil(t, got.Debug)
	assert.Empty(t, llm.calls)
}

func TestReply_FollowUp(t *testing.T) {
	llm := &fakeLLM{reply: "Depuis quand roulez-vous avec ce voyant ?"}
	svc, _, _ := newService(t, llm, Options{})

	got, err := svc.Reply(context.Background(), followUpQuestion, followUpHistory)
	require.NoError(t, err)
	assert.Equal(t, llm.reply, got.Reply)
	assert.Equal(t, domain.CategoryBlinking, got.NextAction.Category)
	assert.Nil(t, got.Debug)

	require.Len(t, llm.calls, 1)
	msgs := llm.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, systemPrompt, msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
	user := msgs[1].Content
	assert.True(t, strings.HasPrefix(user, "Historique: "+followUpHistory+"\nQuestion: "+followUpQuestion+"\n"))
	assert.Contains(t, user, "\nClassification: FAP_CLIGNOTANT\n\nContexte: [FAP_CLIGNOTANT]\nUn voyant clignotant")
}

func TestReply_Debug(t *testing.T) {
	llm := &fakeLLM{reply: "ok"}
	svc, _, _ := newService(t, llm, Options{Debug: true})

	got, err := svc.Reply(context.Background(), followUpQuestion, followUpHistory)
	require.NoError(t, err)
	require.NotNil(t, got.Debug)
	assert.Len(t, got.Debug.QueryTerms, debugTermLimit)
	require.Len(t, got.Debug.TopTitles, 3)
	assert.Equal(t, "FAP_CLIGNOTANT", got.Debug.TopTitles[0])
	assert.Equal(t, got.NextAction, got.Debug.Classification)
	assert.False(t, got.Debug.FirstTurn)
}

func TestReply_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"error status", &mistral.StatusError{Code: 503, Status: "503 Service Unavailable"}, fallbackReply},
		{"empty content", mistral.ErrEmptyReply, emptyReply},
		{"transport", errors.New("dial tcp: connection refused"), backupReply},
		{"client timeout", context.DeadlineExceeded, backupReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(t, &fakeLLM{err: tt.err}, Options{Debug: true})
			got, err := svc.Reply(context.Background(), followUpQuestion, followUpHistory)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Reply)
			assert.Equal(t, domain.CategoryBlinking, got.NextAction.Category)
			assert.Nil(t, got.Debug)
		})
	}
}

func TestReply_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc, _, _ := newService(t, &fakeLLM{err: context.Canceled}, Options{})
	_, err := svc.Reply(ctx, followUpQuestion, followUpHistory)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze(t *testing.T) {
	svc, _, _ := newService(t, nil, Options{})
	a, err := svc.Analyze(context.Background(), "mon voyant clignote", "")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryBlinking, a.Classification.Category)
	assert.True(t, a.FirstTurn)
	assert.Subset(t, a.QueryTerms, []string{"clignote", "temoin"})
	require.NotEmpty(t, a.Context)
	assert.Equal(t, "FAP_CLIGNOTANT", a.Context[0].Title)
}

func TestAnalyze_CachedByNormalizedInput(t *testing.T) {
	svc, src, _ := newService(t, nil, Options{})
	first, err := svc.Analyze(context.Background(), "Mon voyant clignote", "")
	require.NoError(t, err)

	// the source changes but the snapshot is still fresh
	src.set("[AUTRE]\nrien", nil)

	again, err := svc.Analyze(context.Background(), "mon voyant clignote !", "  ")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, svc.analyses.Len())
}

func TestAnalyze_RebuildPurgesCache(t *testing.T) {
	svc, src, base := newService(t, nil, Options{})
	first, err := svc.Analyze(context.Background(), "Mon voyant clignote", "")
	require.NoError(t, err)
	require.Equal(t, "FAP_CLIGNOTANT", first.Context[0].Title)
	_, err = svc.Analyze(context.Background(), "fumée noire", "")
	require.NoError(t, err)
	require.Equal(t, 2, svc.analyses.Len())

	src.set("[AUTRE]\nrien", nil)
	base.Invalidate()

	again, err := svc.Analyze(context.Background(), "mon voyant clignote", "")
	require.NoError(t, err)
	require.Len(t, again.Context, 1)
	assert.Equal(t, "AUTRE", again.Context[0].Title)
	assert.Equal(t, 1, svc.analyses.Len())
}

func TestAnalyze_WithoutKnowledgeBase(t *testing.T) {
	src := &memSource{err: errors.New("fichier absent")}
	base := kb.New(src, kb.Options{})
	llm := &fakeLLM{reply: "ok"}
	svc := NewAssistantService(base, llm, Options{})

	a, err := svc.Analyze(context.Background(), followUpQuestion, followUpHistory)
	require.NoError(t, err)
	assert.Empty(t, a.Context)

	_, err = svc.Reply(context.Background(), followUpQuestion, followUpHistory)
	require.NoError(t, err)
	require.Len(t, llm.calls, 1)
	assert.True(t, strings.HasSuffix(llm.calls[0][1].Content, "Contexte: "+noContextText))

	// a degraded analysis is not cached
	src.set(testKB, nil)
	base.Invalidate()
	a, err = svc.Analyze(context.Background(), followUpQuestion, followUpHistory)
	require.NoError(t, err)
	assert.Len(t, a.Context, 3)
}

func TestAnalyze_NilBase(t *testing.T) {
	svc := NewAssistantService(nil, nil, Options{TopK: 1})
	a, err := svc.Analyze(context.Background(), "fumée noire", "")
	require.NoError(t, err)
	assert.NotNil(t, a.Context)
	assert.Empty(t, a.Context)
	assert.Equal(t, noContextText, contextText(a.Context))
}
