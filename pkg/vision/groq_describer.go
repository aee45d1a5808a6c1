package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// GroqDescriber sends images to the Groq multimodal chat API and returns
// an analytical description of the data they contain.
type GroqDescriber struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

var _ Describer = &GroqDescriber{}

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

const describePrompt = "Analyze this image. It is likely a chart, graph, or educational diagram. " +
	"Provide a detailed textual description of the data, trends, axis labels, " +
	"and relationships shown. Do not describe the colors or style. " +
	"Focus purely on the information content."

func NewGroqDescriber(apiKey string) *GroqDescriber {
	return &GroqDescriber{
		APIKey:  apiKey,
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "meta-llama/llama-4-scout-17b-16e-instruct",
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type visionRequest struct {
	Model               string          `json:"model"`
	Messages            []visionMessage `json:"messages"`
	Temperature         float64         `json:"temperature"`
	MaxCompletionTokens int             `json:"max_completion_tokens"`
}

type visionMessage struct {
	Role    string        `json:"role"`
	Content []visionBlock `json:"content"`
}

type visionBlock struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *visionImagePart `json:"image_url,omitempty"`
}

type visionImagePart struct {
	URL string `json:"url"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (d *GroqDescriber) Describe(ctx context.Context, imagePath string) (string, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Sprintf("%s: image file not found]", UnavailableSentinel), nil
	}

	mime := mimeTypes[strings.ToLower(filepath.Ext(imagePath))]
	if mime == "" {
		mime = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(raw))

	payload := visionRequest{
		Model: d.Model,
		Messages: []visionMessage{
			{
				Role: "user",
				Content: []visionBlock{
					{Type: "text", Text: describePrompt},
					{Type: "image_url", ImageURL: &visionImagePart{URL: dataURL}},
				},
			},
		},
		Temperature:         0.1, // strict factual description
		MaxCompletionTokens: 1024,
	}

	var description string
	operation := func() error {
		text, retryable, err := d.describeOnce(ctx, payload)
		if err != nil {
			if retryable {
				log.Printf("[WARN] Groq vision rate limit on %s, backing off", filepath.Base(imagePath))
				return err
			}
			return backoff.Permanent(err)
		}
		description = text
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(3*time.Second),
	), ctx), 3)

	if err := backoff.Retry(operation, policy); err != nil {
		// The sentinel keeps the pipeline moving; a broken image never
		// fails a whole synthesis run.
		return fmt.Sprintf("%s: %v]", UnavailableSentinel, err), nil
	}

	return "[VISUAL DATA DESCRIPTION]: " + description, nil
}

func (d *GroqDescriber) describeOnce(ctx context.Context, payload visionRequest) (string, bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.APIKey)

	resp, err := d.Client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("read vision response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("vision rate limited: %s", strings.TrimSpace(string(respBody)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("vision API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed visionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, fmt.Errorf("decode vision response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("vision API returned no choices")
	}

	return parsed.Choices[0].Message.Content, false, nil
}
