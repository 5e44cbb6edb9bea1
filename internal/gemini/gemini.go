// Package gemini is the message-array backend for the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	ctxpkg "github.com/stupiduntilnot/pharmassist/internal/context"
	"github.com/stupiduntilnot/pharmassist/internal/model"
)

const DefaultModel = "gemini-2.5-flash"

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates replies with Gemini. Instructions and context sections
// go into the system instruction; prior turns become user/model contents.
type Client struct {
	models generator
	model  string
}

// NewClient creates a Gemini client. An empty apiKey is a configuration error.
func NewClient(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &model.ConfigurationError{Backend: "gemini", Setting: "GEMINI_API_KEY"}
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{models: client.Models, model: modelName}, nil
}

func (c *Client) Name() string { return "gemini" }

// Complete sends req as a GenerateContent call.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.CompletionResponse, error) {
	system, contents := buildContents(req)
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("gemini generate failed: %w", err)
	}

	result := model.CompletionResponse{Content: model.EmptyResponse}
	if resp == nil {
		return result, nil
	}
	if resp.UsageMetadata != nil {
		result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if text := strings.TrimSpace(resp.Text()); text != "" {
		result.Content = text
	}
	return result, nil
}

// buildContents keeps the same logical order as the other backends:
// system messages (instructions, then context) fold into one instruction,
// and the remaining turns map onto Gemini roles.
func buildContents(req model.Request) (string, []*genai.Content) {
	assembled := (&ctxpkg.StandardAssembler{}).Assemble(req.System, req.Sections, req.Turns)

	var system []string
	contents := make([]*genai.Content, 0, len(assembled))
	for _, m := range assembled {
		switch m.Role {
		case ctxpkg.RoleSystem:
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, m.Content)
			}
		case ctxpkg.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
