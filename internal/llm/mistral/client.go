// Package mistral is a chat-completions client for the Mistral API, which
// speaks the OpenAI wire format.
package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fapassist/internal/domain"
	"fapassist/internal/logging"
)

// Default request parameters.
const (
	DefaultBaseURL     = "https://api.mistral.ai/v1"
	DefaultAPIKeyEnv   = "MISTRAL_API_KEY"
	DefaultModel       = "mistral-medium-latest"
	DefaultTemperature = 0.3
	DefaultTopP        = 0.7
	DefaultMaxTokens   = 150
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
)

var (
	// ErrMissingAPIKey is returned by NewClient when the key variable is unset.
	ErrMissingAPIKey = errors.New("mistral: missing API key")
	// ErrEmptyReply is returned when the API answers without any content.
	ErrEmptyReply = errors.New("mistral: empty reply")
)

var _ domain.ChatClient = (*Client)(nil)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "mistral: chat completion failed: " + e.Status
	}
	return "mistral: chat completion failed: " + e.Status + ": " + e.Message
}

// Config configures the client. Zero values select the defaults; a negative
// MaxRetries disables retries and a non-positive RequestsPerSecond disables
// client-side throttling.
type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Temperature       float64
	TopP              float64
	MaxTokens         int
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// Client calls POST {base}/chat/completions.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	client      *http.Client
	maxRetries  int
	limiter     *rate.Limiter
	sleep       func(ctx context.Context, d time.Duration) error
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	TopP        float64          `json:"top_p"`
	MaxTokens   int              `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewClient creates a client, reading the API key from cfg.APIKeyEnv.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: env %s is empty", ErrMissingAPIKey, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.TopP == 0 {
		cfg.TopP = DefaultTopP
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      key,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		limiter:     rate.NewLimiter(limit, 1),
		sleep:       sleepCtx,
	}, nil
}

// Name returns the identifier of this client implementation.
func (c *Client) Name() string { return "mistral" }

// Chat sends messages and returns the trimmed content of the first choice.
// 429 and 5xx responses are retried, honouring Retry-After when present.
func (c *Client) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	data, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("mistral: marshal request: %w", err)
	}
	url := c.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logging.Logger().Debug("mistral: retrying", "attempt", attempt, "err", lastErr)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("mistral: rate limit: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("mistral: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("mistral: send request: %w", err)
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, retryDelay(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &StatusError{Code: resp.StatusCode, Status: resp.Status}
			if attempt < c.maxRetries {
				delay := retryDelay(attempt)
				if ra, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
					delay = ra
				}
				if err := c.sleep(ctx, delay); err != nil {
					return "", err
				}
				continue
			}
			return "", lastErr
		}
		if readErr != nil {
			return "", fmt.Errorf("mistral: read response: %w", readErr)
		}

		var out chatResponse
		decodeErr := json.Unmarshal(body, &out)
		if resp.StatusCode >= 300 {
			msg := strings.TrimSpace(string(body))
			if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
				msg = out.Error.Message
			} else if decodeErr == nil && out.Message != "" {
				msg = out.Message
			}
			return "", &StatusError{Code: resp.StatusCode, Status: resp.Status, Message: msg}
		}
		if decodeErr != nil {
			return "", fmt.Errorf("mistral: decode response: %w", decodeErr)
		}
		if len(out.Choices) == 0 {
			return "", ErrEmptyReply
		}
		content := strings.TrimSpace(out.Choices[0].Message.Content)
		if content == "" {
			return "", ErrEmptyReply
		}
		return content, nil
	}
	return "", lastErr
}

func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
