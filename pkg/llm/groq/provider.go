package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"commonbook-be/pkg/llm"

	"github.com/cenkalti/backoff/v4"
)

// GroqProvider talks to the Groq Cloud OpenAI-compatible chat API.
// It routes the abstract fast/deep mode to concrete Llama models and
// absorbs 429/413 rate limiting with exponential backoff.
type GroqProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client

	maxRetries uint64
}

// Ensure GroqProvider implements Provider
var _ llm.Provider = &GroqProvider{}

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"

	modelFast = "llama-3.1-8b-instant"
	modelDeep = "llama-3.3-70b-versatile"

	// Keep input under ~2000 tokens so input+output stays inside the
	// free-tier TPM ceiling (~4 chars per token).
	maxPromptChars = 8000

	// Cap output so a single call cannot blow the per-minute budget.
	maxSafeTokens = 4000
)

func NewGroqProvider(apiKey string) *GroqProvider {
	return &GroqProvider{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
		maxRetries: 5,
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// --- Interface Implementation ---

func (g *GroqProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{
		Temperature: 0.5,
		Mode:        llm.ModeFast,
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]chatMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		messages[i] = chatMessage{Role: role, Content: msg.Content}
	}

	model := g.resolveModel(options)

	maxTokens := options.MaxTokens
	if maxTokens <= 0 || maxTokens > maxSafeTokens {
		maxTokens = maxSafeTokens
	}

	payload := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: options.Temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	}

	return g.completeWithRetry(ctx, payload)
}

func (g *GroqProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, opts ...llm.Option) (string, error) {
	if len(userPrompt) > maxPromptChars {
		log.Printf("[WARN] Groq prompt too large (%d chars), truncating to %d", len(userPrompt), maxPromptChars)
		userPrompt = userPrompt[:maxPromptChars] + "\n\n[Content truncated for processing limits]"
	}

	history := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
	return g.Chat(ctx, history, opts...)
}

func (g *GroqProvider) resolveModel(options *llm.Options) string {
	if options.Model != "" {
		return options.Model
	}
	if options.Mode == llm.ModeDeep {
		return modelDeep
	}
	return modelFast
}

// rateLimitedError marks a response worth retrying (429 or TPM 413).
type rateLimitedError struct {
	status int
	body   string
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("groq rate limited (status %d): %s", e.status, e.body)
}

func (g *GroqProvider) completeWithRetry(ctx context.Context, payload chatRequest) (string, error) {
	var result string

	operation := func() error {
		text, err := g.completeOnce(ctx, payload)
		if err != nil {
			var rle *rateLimitedError
			if errors.As(err, &rle) {
				log.Printf("[WARN] Groq rate limit hit, backing off: %v", err)
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		result = text
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(2*time.Second),
		backoff.WithMaxInterval(80*time.Second),
	), ctx), g.maxRetries)

	if err := backoff.Retry(operation, policy); err != nil {
		var rle *rateLimitedError
		if errors.As(err, &rle) {
			// All retries exhausted on rate limiting: callers get an empty
			// string rather than a hard failure.
			log.Printf("[ERROR] Groq rate limit: all retries exhausted, returning empty")
			return "", nil
		}
		return "", err
	}

	return result, nil
}

func (g *GroqProvider) completeOnce(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal groq request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build groq request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read groq response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestEntityTooLarge {
		return "", &rateLimitedError{status: resp.StatusCode, body: trimBody(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		// Some TPM errors come back as 400 with a rate_limit type.
		if strings.Contains(strings.ToLower(string(respBody)), "rate_limit") {
			return "", &rateLimitedError{status: resp.StatusCode, body: trimBody(respBody)}
		}
		return "", fmt.Errorf("groq API error (status %d): %s", resp.StatusCode, trimBody(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode groq response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("groq API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
