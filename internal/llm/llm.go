package llm

import (
	"context"

	"github.com/oukeidos/transdoc/internal/prompts"
)

// Request carries one translation call's inputs.
type Request struct {
	// Payload is a JSON object mapping unit IDs to source text.
	Payload string
	// ContextWindow holds the trailing translated lines, or the
	// language-pair default when no usable trailing output exists.
	ContextWindow string
	Prompts       prompts.Set
}

// Invoker sends one segment to a model backend and returns the raw
// response text. Errors are kinded via internal/apperrors.
type Invoker interface {
	Translate(ctx context.Context, req Request) (string, error)
	ModelID() string
}
