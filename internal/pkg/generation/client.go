package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fieldnotes-app/fieldnotes/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.openai.com/v1"

// Generator is the opaque generation collaborator: input text plus
// parameters in, output text or failure out. The notes service only ever
// talks to this interface so tests can stub it.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	APIKey     string
	Model      string
	APIBaseURL string

	MaxTokens   int
	Temperature float64

	HTTPClient *http.Client
}

// NewClientFromEnv builds a generation client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("GENERATION_API_KEY", "")),
		Model:      strings.TrimSpace(env.GetEnv("GENERATION_MODEL", "gpt-4.1-mini")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("GENERATION_API_BASE_URL", defaultAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// Generate performs one chat completion and returns the model output.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("GENERATION_API_KEY is not configured")
	}

	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	reqBody := struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
		Temperature float64   `json:"temperature,omitempty"`
	}{
		Model: c.Model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.APIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("generation request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("generation response contained no output")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
