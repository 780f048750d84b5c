package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = `You are a SQL generator for an analytics warehouse.

RULES:
1. Generate ONLY SELECT queries.
2. Never use DELETE, UPDATE, DROP, INSERT, ALTER, CREATE, TRUNCATE, MERGE.
3. Always include a LIMIT clause (default LIMIT 100).
4. Return ONLY the SQL query, no explanation.`

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// HTTPTranslator speaks the chat-completions wire format most hosted
// providers expose.
type HTTPTranslator struct {
	cfg    Config
	client *http.Client
}

func NewHTTPTranslator(cfg Config) *HTTPTranslator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &HTTPTranslator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, question, schema string) (string, error) {
	system := systemPrompt
	if schema != "" {
		system += "\n\nSchema:\n" + schema
	}

	content, err := t.complete(ctx, system, question)
	if err != nil {
		return "", err
	}

	return stripCodeFences(content), nil
}

func (t *HTTPTranslator) Explain(ctx context.Context, question, sql, summary string) (string, error) {
	prompt := fmt.Sprintf("Question: %s\nSQL: %s\nResult summary: %s\n\nSummarize the answer in one or two sentences.",
		question, sql, summary)
	return t.complete(ctx, "You explain query results concisely.", prompt)
}

func (t *HTTPTranslator) complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: t.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: t.cfg.Temperature,
		MaxTokens:   t.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(t.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translator request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode translator response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("translator returned %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("translator returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// stripCodeFences unwraps ```sql fenced responses some models insist on.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "sql")
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
