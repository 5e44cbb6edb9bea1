// Package ollama is the concatenated-prompt backend for a local Ollama server.
package ollama

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

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

// Client calls Ollama's /api/generate with the whole conversation flattened
// into one prompt.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates an Ollama client, applying defaults for empty values.
func NewClient(baseURL, modelName string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (c *Client) Name() string { return "ollama" }

// Complete flattens req into a single prompt and generates a reply.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.CompletionResponse, error) {
	return c.Generate(ctx, ctxpkg.FlattenPrompt(req.System, req.Sections, req.Turns))
}

// Generate sends a raw prompt without streaming.
func (c *Client) Generate(ctx context.Context, prompt string) (model.CompletionResponse, error) {
	jsonData, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("marshaling ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("creating ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
		return model.CompletionResponse{}, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, body)
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return model.CompletionResponse{}, fmt.Errorf("decoding ollama response: %w", err)
	}

	result := model.CompletionResponse{
		Content:      strings.TrimSpace(gen.Response),
		InputTokens:  gen.PromptEvalCount,
		OutputTokens: gen.EvalCount,
	}
	if result.Content == "" {
		result.Content = model.EmptyResponse
	}
	return result, nil
}
