// Package config loads optional CLI defaults from a YAML file so
// recurring flags (model, languages, workspace) do not have to be
// repeated on every invocation. Flags always win over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File mirrors the on-disk config layout.
type File struct {
	// Model is the default model identifier.
	Model string `yaml:"model"`
	// Online selects the Gemini backend instead of a local Ollama
	// server.
	Online bool `yaml:"online"`
	// Source and Target are default language codes.
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	// MaxToken is the default per-request token budget.
	MaxToken int `yaml:"max_token"`
	// Workspace overrides the scratch directory location.
	Workspace string `yaml:"workspace"`
	// OllamaURL overrides the local server address.
	OllamaURL string `yaml:"ollama_url"`
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "transdoc", "config.yaml"), nil
}

// Load reads the config file at path. A missing file is not an error;
// it yields zero defaults.
func Load(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return f, nil
}

// LoadDefault loads the config from the default location.
func LoadDefault() (File, error) {
	path, err := DefaultPath()
	if err != nil {
		// No resolvable config dir means no defaults.
		return File{}, nil
	}
	return Load(path)
}
