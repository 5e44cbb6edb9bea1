// Package openai is the message-array backend for OpenAI-compatible chat
// completion endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ctxpkg "github.com/stupiduntilnot/pharmassist/internal/context"
	"github.com/stupiduntilnot/pharmassist/internal/model"
)

const DefaultURL = "https://api.openai.com/v1/chat/completions"

// Client is a minimal OpenAI chat completions client.
type Client struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
	assembler  ctxpkg.Assembler
}

// NewClient creates an OpenAI client. An empty apiKey is a configuration
// error; an empty url falls back to the public endpoint.
func NewClient(apiKey, url, modelName string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &model.ConfigurationError{Backend: "openai", Setting: "OPENAI_API_KEY"}
	}
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		apiKey: apiKey,
		url:    url,
		model:  modelName,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		assembler: &ctxpkg.StandardAssembler{},
	}, nil
}

// Message represents a chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (c *Client) Name() string { return "openai" }

// Complete sends a chat completion request built from req.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.CompletionResponse, error) {
	assembled := c.assembler.Assemble(req.System, req.Sections, req.Turns)
	messages := make([]Message, 0, len(assembled))
	for _, m := range assembled {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}
	return c.ChatCompletion(ctx, messages)
}

// ChatCompletion sends already-serialized messages and returns a CompletionResponse.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message) (model.CompletionResponse, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.2,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("failed to marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("failed to create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("failed reading openai response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.CompletionResponse{}, fmt.Errorf("openai non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.CompletionResponse{}, fmt.Errorf("failed to parse openai response: %s", truncate(string(body), 400))
	}

	result := model.CompletionResponse{Content: model.EmptyResponse}
	if parsed.Usage != nil {
		result.InputTokens = parsed.Usage.PromptTokens
		result.OutputTokens = parsed.Usage.CompletionTokens
	}
	if len(parsed.Choices) > 0 {
		if content := strings.TrimSpace(parsed.Choices[0].Message.Content); content != "" {
			result.Content = content
		}
	}
	return result, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
