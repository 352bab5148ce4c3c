package pipeline

import (
	"fmt"

	"github.com/oukeidos/transdoc/internal/llm"
	"github.com/oukeidos/transdoc/internal/segmenter"
)

// Config holds all configuration required for running a document
// translation session.
type Config struct {
	// IO Paths
	InputPath    string
	OutputPath   string
	WorkspaceDir string
	LogPath      string // Optional: JSONL log destination

	// Backend
	Invoker llm.Invoker

	// Processing Parameters
	MaxToken int

	// Flags
	Overwrite bool

	// Languages
	SourceLang string
	TargetLang string

	// Glossary Mapping (Source Term -> Target Term)
	Glossary     map[string]string
	GlossaryPath string

	// Callbacks
	// OnProgress is called inline with a completion fraction in [0,1]
	// and a coarse stage label. Never called from another goroutine.
	OnProgress func(fraction float64, stage string)

	// OnConfirmOverwrite is called when the output file exists.
	// It should return true if the file should be overwritten.
	OnConfirmOverwrite func(path string) bool
}

const MaxMaxToken = 32768

// Normalize applies safe bounds to config values and returns any adjustments.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	if c.MaxToken <= 0 {
		notes = append(notes, fmt.Sprintf("max-token defaulted to %d", segmenter.DefaultMaxToken))
		c.MaxToken = segmenter.DefaultMaxToken
	}
	if c.MaxToken > MaxMaxToken {
		notes = append(notes, fmt.Sprintf("max-token clamped from %d to %d", c.MaxToken, MaxMaxToken))
		c.MaxToken = MaxMaxToken
	}
	return c, notes
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	if c.Invoker == nil {
		return fmt.Errorf("translation backend is required")
	}
	if c.MaxToken <= 0 {
		return fmt.Errorf("maxToken must be greater than 0, got %d", c.MaxToken)
	}
	if c.SourceLang == "" || c.TargetLang == "" {
		return fmt.Errorf("source and target languages are required")
	}
	return nil
}
