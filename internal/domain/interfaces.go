package domain

import "context"

// KnowledgeEntry is one titled block of domain knowledge used as retrievable context.
type KnowledgeEntry struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Synonyms []string `json:"synonyms,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Priority int      `json:"priority"`
}

// Category is a diagnostic intent.
type Category string

const (
	CategoryUrgent    Category = "URGENCE_REELLE"
	CategoryBlinking  Category = "FAP_CLIGNOTANT"
	CategoryMulti     Category = "FAP_MULTI"
	CategorySingle    Category = "FAP_SINGLE"
	CategoryUnrelated Category = "HORS_FAP"
	CategoryGeneric   Category = "GEN"

	// CategoryFirstInteraction is reported as the next action of a first-turn reply.
	CategoryFirstInteraction Category = "FIRST_INTERACTION"
)

// Classification is the result of analyzing one message. Confidence is a
// relative score, not a probability.
type Classification struct {
	Category   Category `json:"type"`
	Confidence float64  `json:"confidence"`
	Symptoms   []string `json:"symptoms,omitempty"`
}

// Analysis is the cached per-request result of ranking and classification.
type Analysis struct {
	QueryTerms     []string         `json:"queryTerms"`
	Context        []KnowledgeEntry `json:"context"`
	Classification Classification   `json:"classification"`
	FirstTurn      bool             `json:"firstTurn"`
}

// Message is one chat message sent to a language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient sends a conversation to a language model and returns its reply.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Debug carries diagnostics returned in development mode.
type Debug struct {
	QueryTerms     []string       `json:"queryTerms"`
	TopTitles      []string       `json:"topBlocks"`
	Classification Classification `json:"classification"`
	FirstTurn      bool           `json:"isFirstInteraction"`
}

// Reply is what the assistant returns for one user turn.
type Reply struct {
	Reply      string         `json:"reply"`
	NextAction Classification `json:"nextAction"`
	Debug      *Debug         `json:"debug,omitempty"`
}

// Assistant defines the operations exposed by the application core.
type Assistant interface {
	Analyze(ctx context.Context, question, history string) (Analysis, error)
	Reply(ctx context.Context, question, history string) (Reply, error)
}
