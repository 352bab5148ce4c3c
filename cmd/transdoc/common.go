package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/oukeidos/transdoc/internal/auth"
	"github.com/oukeidos/transdoc/internal/gemini"
	"github.com/oukeidos/transdoc/internal/language"
	"github.com/oukeidos/transdoc/internal/llm"
	"github.com/oukeidos/transdoc/internal/logger"
	"github.com/oukeidos/transdoc/internal/ollama"
	"github.com/oukeidos/transdoc/internal/pipeline"
)

var (
	isTerminal   = term.IsTerminal
	getKey       = auth.GetKey
	getEnvKey    = auth.GetEnvKey
	getStatus    = auth.GetStatus
	promptForKey = auth.PromptForAPIKey
)

// resolveAPIKey handles the logic for finding the Gemini API key.
func resolveAPIKey(allowEnv, envOnly bool) (string, string, error) {
	if envOnly {
		if key, ok := getEnvKey(); ok {
			return key, "Environment Variable", nil
		}
		return "", "", fmt.Errorf("env-only set but GEMINI_API_KEY is not set")
	}

	if key, source := getKey(false); key != "" {
		return key, source, nil
	}

	if allowEnv {
		if key, ok := getEnvKey(); ok {
			return key, "Environment Variable", nil
		}
	}

	if isTerminal(int(os.Stdin.Fd())) {
		key, err := promptForKey("Gemini API Key (press Enter to skip): ")
		if err != nil {
			return "", "", fmt.Errorf("error reading API key: %w", err)
		}
		if strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), "Terminal Prompt", nil
		}
	}

	if !isTerminal(int(os.Stdin.Fd())) {
		return "", "", fmt.Errorf("no API key available (non-interactive shell); set keychain or use --allow-env")
	}
	if allowEnv {
		return "", "", fmt.Errorf("API key is required; not found in keychain or environment")
	}
	return "", "", fmt.Errorf("API key is required; not found in keychain (environment disabled by default; use --allow-env)")
}

func resolveLanguageCode(input string) (string, error) {
	if lang, ok := language.GetLanguage(input); ok {
		return lang.Code, nil
	}
	needle := strings.TrimSpace(input)
	if needle == "" {
		return "", fmt.Errorf("language is empty")
	}
	for _, entry := range language.GetSupportedLanguages() {
		if strings.EqualFold(entry.Name, needle) {
			return entry.Code, nil
		}
	}
	return "", fmt.Errorf("unsupported language: %s", input)
}

// buildInvoker selects the model backend: Gemini when online is set,
// otherwise a local Ollama server.
func buildInvoker(ctx context.Context, opts *translateOptions) (llm.Invoker, func(), error) {
	if opts.online {
		key, source, err := resolveAPIKey(opts.allowEnv, opts.envOnly)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using API Key", "service", "gemini", "source", source)

		client, err := gemini.NewClient(ctx, key, opts.modelName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	}
	return ollama.NewClient(opts.modelName, opts.ollamaURL), func() {}, nil
}

// defaultWorkspaceDir derives a per-document scratch path next to the
// user cache directory, falling back to the input's directory.
func defaultWorkspaceDir(inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "transdoc", base)
	}
	return filepath.Join(filepath.Dir(inputPath), "."+base+".transdoc")
}

func printRunSummary(result pipeline.TranslationResult, duration time.Duration, model string) {
	fmt.Println("\n--- Execution Stats ---")
	fmt.Printf("Time: %s\n", duration)
	fmt.Printf("Model: %s\n", model)
	fmt.Printf("Status: %s\n", result.Status)
	if result.TotalUnits > 0 {
		fmt.Printf("Units: %d translated, %d missing of %d total\n",
			result.TotalUnits-len(result.MissingUnits), len(result.MissingUnits), result.TotalUnits)
	}
	if len(result.MissingUnits) > 0 {
		fmt.Printf("Untranslated unit IDs: %v\n", result.MissingUnits)
		if result.QueuePath != "" {
			fmt.Printf("Their source text is kept at: %s\n", result.QueuePath)
		}
	}
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("Cancellation requested")
		cancel()
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
