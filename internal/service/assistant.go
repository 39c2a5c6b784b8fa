package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"fapassist/internal/cache"
	"fapassist/internal/domain"
	"fapassist/internal/intent"
	"fapassist/internal/kb"
	"fapassist/internal/lexicon"
	"fapassist/internal/llm/mistral"
	"fapassist/internal/logging"
	"fapassist/internal/stage"
	"fapassist/internal/textproc"
	"fapassist/internal/tfidf"
)

var (
	// ErrInvalidQuestion is returned for an empty or blank question.
	ErrInvalidQuestion = errors.New("service: invalid question")
	// ErrNoLLM is returned by Reply when no language model is configured.
	ErrNoLLM = errors.New("service: no language model configured")
)

// FirstTurnConfidence is reported with the first-interaction next action.
const FirstTurnConfidence = 10

// debugTermLimit bounds the query terms echoed in debug output.
const debugTermLimit = 5

var _ domain.Assistant = (*AssistantService)(nil)

// Options tune an AssistantService. Zero values select the defaults and the
// embedded lexicon.
type Options struct {
	TopK          int
	CacheTTL      time.Duration
	CacheCapacity int
	Debug         bool
	Lexicon       *lexicon.Lexicon
	Now           func() time.Time
}

// AssistantService answers user turns from the knowledge base and a language
// model.
type AssistantService struct {
	base       *kb.Base
	llm        domain.ChatClient
	analyses   *cache.Cache[domain.Analysis]
	analyzer   *textproc.Analyzer
	classifier *intent.Classifier
	detector   *stage.Detector
	topK       int
	debug      bool

	// version of the knowledge-base snapshot the cached analyses were ranked on
	kbVersion atomic.Uint64
}

// NewAssistantService wires the service. base may be nil, in which case no
// context is ever retrieved; llm may be nil, in which case Reply fails with
// ErrNoLLM.
func NewAssistantService(base *kb.Base, llm domain.ChatClient, opts Options) *AssistantService {
	lex := opts.Lexicon
	if lex == nil {
		lex = lexicon.Default()
	}
	var cacheOpts []cache.Option
	if opts.Now != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(opts.Now))
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = tfidf.DefaultTopK
	}
	return &AssistantService{
		base:       base,
		llm:        llm,
		analyses:   cache.New[domain.Analysis](opts.CacheTTL, opts.CacheCapacity, cacheOpts...),
		analyzer:   textproc.NewAnalyzer(lex),
		classifier: intent.New(lex.Intents),
		detector:   stage.New(lex.FirstTurn),
		topK:       topK,
		debug:      opts.Debug,
	}
}

// HasLLM reports whether a language model is configured.
func (s *AssistantService) HasLLM() bool { return s.llm != nil }

// Analyze tokenizes the conversation, retrieves the most relevant knowledge
// entries and classifies the question. Results are cached per normalized
// question and history and dropped whenever the knowledge base is rebuilt.
func (s *AssistantService) Analyze(ctx context.Context, question, history string) (domain.Analysis, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Analysis{}, ErrInvalidQuestion
	}
	var (
		snap  *kb.Snapshot
		kbErr error
	)
	if s.base != nil {
		snap, kbErr = s.base.Snapshot(ctx)
		if kbErr == nil {
			s.syncCache(snap.Version)
		}
	}
	key := cache.Key(question, history)
	if a, ok := s.analyses.Get(key); ok {
		return a, nil
	}

	terms := s.analyzer.Tokenize(history + " " + question)
	a := domain.Analysis{
		QueryTerms:     terms,
		Context:        []domain.KnowledgeEntry{},
		Classification: s.classifier.Classify(question),
		FirstTurn:      s.detector.IsFirstTurn(history),
	}

	switch {
	case kbErr != nil:
		logging.Logger().Warn("assistant: knowledge base unavailable", "err", kbErr)
		return a, nil
	case snap != nil:
		a.Context = tfidf.Rank(snap.Index, snap.Entries, terms, s.topK)
	}
	s.analyses.Set(key, a)
	return a, nil
}

// syncCache purges the analyses ranked against an older snapshot.
func (s *AssistantService) syncCache(version uint64) {
	prev := s.kbVersion.Swap(version)
	if prev == version {
		return
	}
	n := s.analyses.Len()
	s.analyses.Purge()
	if n > 0 {
		logging.Logger().Debug("assistant: analysis cache purged", "entries", n, "kb_version", version)
	}
}

// Reply answers one user turn. A first turn gets a pre-written empathetic
// reply; later turns go to the language model, with fixed fallback replies
// when it fails.
func (s *AssistantService) Reply(ctx context.Context, question, history string) (domain.Reply, error) {
	if s.llm == nil {
		return domain.Reply{}, ErrNoLLM
	}
	if strings.TrimSpace(question) == "" {
		return domain.Reply{}, ErrInvalidQuestion
	}

	if s.detector.IsFirstTurn(history) {
		return domain.Reply{
			Reply: FirstTurnReply(question),
			NextAction: domain.Classification{
				Category:   domain.CategoryFirstInteraction,
				Confidence: FirstTurnConfidence,
			},
		}, nil
	}

	a, err := s.Analyze(ctx, question, history)
	if err != nil {
		return domain.Reply{}, err
	}
	out := domain.Reply{NextAction: a.Classification}

	text, err := s.llm.Chat(ctx, buildMessages(question, history, a))
	var statusErr *mistral.StatusError
	switch {
	case err == nil:
		out.Reply = text
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if ctx.Err() != nil {
			return domain.Reply{}, ctx.Err()
		}
		logging.Logger().Warn("assistant: llm timed out", "err", err)
		out.Reply = backupReply
		return out, nil
	case errors.Is(err, mistral.ErrEmptyReply):
		out.Reply = emptyReply
		return out, nil
	case errors.As(err, &statusErr):
		logging.Logger().Warn("assistant: llm returned an error status", "status", statusErr.Code, "err", err)
		out.Reply = fallbackReply
		return out, nil
	default:
		logging.Logger().Error("assistant: llm call failed", "err", err)
		out.Reply = backupReply
		return out, nil
	}

	if s.debug {
		out.Debug = debugInfo(a)
	}
	return out, nil
}

func debugInfo(a domain.Analysis) *domain.Debug {
	terms := a.QueryTerms
	if len(terms) > debugTermLimit {
		terms = terms[:debugTermLimit]
	}
	titles := make([]string, len(a.Context))
	for i, e := range a.Context {
		titles[i] = e.Title
	}
	return &domain.Debug{
		QueryTerms:     terms,
		TopTitles:      titles,
		Classification: a.Classification,
		FirstTurn:      a.FirstTurn,
	}
}
