package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/oukeidos/transdoc/internal/apperrors"
	"github.com/oukeidos/transdoc/internal/httpclient"
	"github.com/oukeidos/transdoc/internal/llm"
)

// Client handles communication with the Gemini API.
type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string, modelName string) (*Client, error) {
	// option.WithHTTPClient interferes with the genai library's
	// internal header injection for API keys; timeouts are enforced
	// via context in Translate instead.
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"

	return &Client{
		client:    client,
		model:     model,
		modelName: modelName,
	}, nil
}

// Close closes the underlying genai client.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ llm.Invoker = (*Client)(nil)

// ModelID returns the configured model name.
func (c *Client) ModelID() string { return c.modelName }

// Translate sends one segment to Gemini and returns the raw response text.
func (c *Client) Translate(ctx context.Context, req llm.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()

	c.model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.Prompts.System)},
	}

	var prompt strings.Builder
	if req.ContextWindow != "" {
		prompt.WriteString(req.Prompts.Previous)
		prompt.WriteString("\n")
		prompt.WriteString(req.ContextWindow)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString(req.Prompts.User)
	prompt.WriteString("\n")
	prompt.WriteString(req.Payload)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text, err := extractResponseText(resp)
	if err != nil {
		return "", apperrors.Empty(err)
	}
	return text, nil
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response received from Gemini")
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			continue
		}
		var combined string
		for _, part := range candidate.Content.Parts {
			text, ok := part.(genai.Text)
			if !ok {
				continue
			}
			combined += string(text)
		}
		if combined != "" {
			return combined, nil
		}
	}
	return "", fmt.Errorf("no text parts found in Gemini response")
}
