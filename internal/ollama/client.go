package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oukeidos/transdoc/internal/apperrors"
	"github.com/oukeidos/transdoc/internal/httpclient"
	"github.com/oukeidos/transdoc/internal/llm"
)

// DefaultBaseURL is the address of a locally running Ollama server.
const DefaultBaseURL = "http://localhost:11434"

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`

	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

type tagsResponse struct {
	Models []TagModel `json:"models"`
}

// TagModel describes one locally installed model as reported by the server.
type TagModel struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Client talks to a local Ollama server.
type Client struct {
	model   string
	baseURL string
}

func NewClient(model string, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

var _ llm.Invoker = (*Client)(nil)

// ModelID returns the configured model identifier.
func (c *Client) ModelID() string { return c.model }

// Translate sends one segment to the local model and returns the raw
// response text.
func (c *Client) Translate(ctx context.Context, req llm.Request) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: req.Prompts.System},
	}
	var user strings.Builder
	if req.ContextWindow != "" {
		user.WriteString(req.Prompts.Previous)
		user.WriteString("\n")
		user.WriteString(req.ContextWindow)
		user.WriteString("\n\n")
	}
	user.WriteString(req.Prompts.User)
	user.WriteString("\n")
	user.WriteString(req.Payload)
	messages = append(messages, chatMessage{Role: "user", Content: user.String()})

	body := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Format:   "json",
		Options:  &chatOptions{Temperature: 0.2},
	}

	resp, err := c.chat(ctx, body)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", apperrors.Empty(fmt.Errorf("ollama returned an empty message for model %s", c.model))
	}
	return text, nil
}

func (c *Client) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := httpclient.GetDefaultClient()
	body, resp, err := httpclient.DoAndRead(client, httpReq)
	if err != nil {
		return nil, apperrors.New(
			apperrors.KindTransient,
			"Ollama request failed. Is the server running? (ollama serve)",
			fmt.Errorf("request failed: %w", err),
		)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyOllamaError(resp.StatusCode, resp.Status, body)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.Malformed(fmt.Errorf("failed to decode ollama response: %w", err))
	}

	slog.Debug("Ollama API Response",
		"status", resp.Status,
		"model", result.Model,
		"prompt_tokens", result.PromptEvalCount,
		"output_tokens", result.EvalCount)

	return &result, nil
}

// ListModels returns the models installed on the local server.
func (c *Client) ListModels(ctx context.Context) ([]TagModel, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := httpclient.GetDefaultClient()
	body, resp, err := httpclient.DoAndRead(client, httpReq)
	if err != nil {
		return nil, apperrors.New(
			apperrors.KindTransient,
			"Ollama request failed. Is the server running? (ollama serve)",
			fmt.Errorf("request failed: %w", err),
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyOllamaError(resp.StatusCode, resp.Status, body)
	}

	var result tagsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode ollama tags response: %w", err)
	}
	return result.Models, nil
}

func classifyOllamaError(statusCode int, status string, body []byte) error {
	var envelope errorEnvelope
	_ = json.Unmarshal(body, &envelope)
	cause := fmt.Errorf("ollama status=%s message=%s", status, envelope.Error)

	switch {
	case statusCode == http.StatusNotFound:
		if strings.Contains(strings.ToLower(envelope.Error), "not found") {
			return apperrors.New(
				apperrors.KindBadRequest,
				"Model is not installed locally. Pull it first (ollama pull <model>).",
				cause,
			)
		}
		return apperrors.New(apperrors.KindBadRequest, "Ollama resource not found (404).", cause)
	case statusCode == http.StatusBadRequest:
		return apperrors.New(apperrors.KindBadRequest, "Ollama request rejected (400).", cause)
	case statusCode >= 500:
		return apperrors.New(
			apperrors.KindTransient,
			fmt.Sprintf("Ollama server error (%d). Please retry.", statusCode),
			cause,
		)
	default:
		return apperrors.New(
			apperrors.KindBadRequest,
			fmt.Sprintf("Ollama API error (%d): %s", statusCode, status),
			cause,
		)
	}
}
