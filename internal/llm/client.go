// Package llm implements the challenge generation and evaluation services
// on top of the OpenRouter chat completion API. Replies are requested in
// JSON mode and parsed strictly, with one retry on malformed output.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openrouter "github.com/revrost/go-openrouter"
)

// Config holds OpenRouter client configuration
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client wraps the OpenRouter API with JSON-mode completion helpers
type Client struct {
	api     *openrouter.Client
	model   string
	timeout time.Duration
	log     *slog.Logger
}

// NewClient creates an OpenRouter-backed client
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "openai/gpt-4o-mini"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		api:     openrouter.NewClient(cfg.APIKey),
		model:   model,
		timeout: timeout,
		log:     logger.With(slog.String("component", "llm")),
	}, nil
}

// completeJSON sends a system+user prompt pair and unmarshals the JSON
// reply into dest. Malformed output is retried once with the parse error
// fed back to the model.
func (c *Client) completeJSON(ctx context.Context, system, user string, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openrouter.ChatCompletionMessage{
		{Role: openrouter.ChatMessageRoleSystem, Content: openrouter.Content{Text: system}},
		{Role: openrouter.ChatMessageRoleUser, Content: openrouter.Content{Text: user}},
	}

	reply, err := c.complete(ctx, messages)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(extractJSON(reply)), dest); err == nil {
		return nil
	}

	c.log.Warn("malformed JSON reply, retrying once", "model", c.model)

	messages = append(messages,
		openrouter.ChatCompletionMessage{Role: openrouter.ChatMessageRoleAssistant, Content: openrouter.Content{Text: reply}},
		openrouter.ChatCompletionMessage{Role: openrouter.ChatMessageRoleUser, Content: openrouter.Content{
			Text: "The previous reply was not valid JSON. Respond again with only the JSON object, no prose.",
		}},
	)

	reply, err = c.complete(ctx, messages)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(extractJSON(reply)), dest); err != nil {
		return fmt.Errorf("model returned invalid JSON after retry: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, messages []openrouter.ChatCompletionMessage) (string, error) {
	start := time.Now()

	resp, err := c.api.CreateChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openrouter.ChatCompletionResponseFormat{
			Type: openrouter.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	c.log.Debug("chat completion",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return resp.Choices[0].Message.Content.Text, nil
}

// extractJSON strips markdown code fences some models wrap around JSON
func extractJSON(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
