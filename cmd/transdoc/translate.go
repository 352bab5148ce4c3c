package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oukeidos/transdoc/internal/cleanup"
	"github.com/oukeidos/transdoc/internal/config"
	"github.com/oukeidos/transdoc/internal/document"
	"github.com/oukeidos/transdoc/internal/files"
	"github.com/oukeidos/transdoc/internal/glossary"
	"github.com/oukeidos/transdoc/internal/logger"
	"github.com/oukeidos/transdoc/internal/pipeline"
	"github.com/oukeidos/transdoc/internal/prompt"
	"github.com/oukeidos/transdoc/internal/segmenter"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultOllamaModel = "llama3.1:8b"
)

type translateOptions struct {
	modelName      string
	online         bool
	ollamaURL      string
	maxToken       int
	workspaceDir   string
	yes            bool
	logFilePath    string
	glossaryPath   string
	sourceLangCode string
	targetLangCode string
	allowEnv       bool
	envOnly        bool
	debug          bool
}

func newTranslateCmd() *cobra.Command {
	opts := translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate <input> <output>",
		Short: "Translate a document (" + document.SupportedExtensionsLabel() + ")",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				_ = cmd.Usage()
				return fmt.Errorf("input and output files are required")
			}
			return runTranslate(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addTranslateFlags(cmd, &opts)
	return cmd
}

func addTranslateFlags(cmd *cobra.Command, opts *translateOptions) {
	cmd.Flags().StringVar(&opts.modelName, "model", "", "Model name (default depends on backend)")
	cmd.Flags().BoolVar(&opts.online, "online", false, "Use the Gemini API instead of a local Ollama server")
	cmd.Flags().StringVar(&opts.ollamaURL, "ollama-url", "", "Local Ollama server address (default "+defaultOllamaURLLabel+")")
	cmd.Flags().IntVar(&opts.maxToken, "max-token", segmenter.DefaultMaxToken, "Token budget per translation request")
	cmd.Flags().StringVar(&opts.workspaceDir, "workspace", "", "Scratch directory for intermediate state")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Overwrite output file without asking")
	cmd.Flags().StringVar(&opts.logFilePath, "log-file", "", "Path to save machine-readable JSONL logs")
	cmd.Flags().StringVar(&opts.glossaryPath, "glossary", "", "Path to term mapping JSON file")
	cmd.Flags().StringVar(&opts.sourceLangCode, "source", "en", "Source language code")
	cmd.Flags().StringVar(&opts.targetLangCode, "target", "ko", "Target language code")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API key from environment variables")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for API keys")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
}

const defaultOllamaURLLabel = "http://localhost:11434"

// applyConfigDefaults fills options the user did not set on the
// command line from the per-user config file.
func applyConfigDefaults(cmd *cobra.Command, opts *translateOptions) {
	file, err := config.LoadDefault()
	if err != nil {
		logger.Warn("Ignoring config file", "error", err)
		return
	}
	flags := cmd.Flags()
	if !flags.Changed("model") && file.Model != "" {
		opts.modelName = file.Model
	}
	if !flags.Changed("online") && file.Online {
		opts.online = true
	}
	if !flags.Changed("ollama-url") && file.OllamaURL != "" {
		opts.ollamaURL = file.OllamaURL
	}
	if !flags.Changed("max-token") && file.MaxToken > 0 {
		opts.maxToken = file.MaxToken
	}
	if !flags.Changed("workspace") && file.Workspace != "" {
		opts.workspaceDir = file.Workspace
	}
	if !flags.Changed("source") && file.Source != "" {
		opts.sourceLangCode = file.Source
	}
	if !flags.Changed("target") && file.Target != "" {
		opts.targetLangCode = file.Target
	}
}

func runTranslate(cmd *cobra.Command, args []string, opts *translateOptions) error {
	if len(args) < 2 {
		return fmt.Errorf("input and output files are required")
	}
	if len(args) > 2 {
		fmt.Fprintf(os.Stderr, "Warning: expected 2 arguments but got %d. Did you forget quotes around file paths?\n", len(args))
		fmt.Fprintf(os.Stderr, "  Using input: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "  Using output: %s\n", args[1])
	}
	if err := document.ValidatePathPair(args[0], args[1]); err != nil {
		return err
	}

	logLevel := logger.LevelInfo
	if opts.debug {
		logLevel = logger.LevelDebug
	}
	var logFileW io.Writer
	if opts.logFilePath != "" {
		if err := files.RejectSymlinkPath(opts.logFilePath); err != nil {
			return err
		}
		f, err := os.OpenFile(opts.logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register(f.Close)
		logFileW = f
	}
	logger.Init(logLevel, logFileW)

	applyConfigDefaults(cmd, opts)
	if opts.modelName == "" {
		if opts.online {
			opts.modelName = defaultGeminiModel
		} else {
			opts.modelName = defaultOllamaModel
		}
	}

	sourceCode, err := resolveLanguageCode(opts.sourceLangCode)
	if err != nil {
		return err
	}
	targetCode, err := resolveLanguageCode(opts.targetLangCode)
	if err != nil {
		return err
	}

	var terms map[string]string
	if opts.glossaryPath != "" {
		terms, err = glossary.LoadFile(opts.glossaryPath, sourceCode, targetCode)
		if err != nil {
			return err
		}
	}

	startTime := time.Now()
	ctx, stop := signalContext()
	defer stop()

	invoker, closeInvoker, err := buildInvoker(ctx, opts)
	if err != nil {
		return err
	}
	defer closeInvoker()

	workspaceDir := opts.workspaceDir
	if workspaceDir == "" {
		workspaceDir = defaultWorkspaceDir(args[0])
	}

	cfg := pipeline.Config{
		InputPath:    args[0],
		OutputPath:   args[1],
		WorkspaceDir: workspaceDir,
		LogPath:      opts.logFilePath,
		Invoker:      invoker,
		MaxToken:     opts.maxToken,
		Overwrite:    opts.yes,
		SourceLang:   sourceCode,
		TargetLang:   targetCode,
		Glossary:     terms,
		GlossaryPath: opts.glossaryPath,
		OnProgress: func(fraction float64, stage string) {
			logger.Info("Progress", "stage", stage, "percent", int(fraction*100))
		},
		OnConfirmOverwrite: func(path string) bool {
			confirmed, err := prompt.DefaultConfirmer().ConfirmOverwrite(path, opts.yes)
			if err != nil {
				logger.Error("Overwrite confirmation failed", "error", err)
				return false
			}
			return confirmed
		},
	}

	result, err := pipeline.RunTranslation(ctx, cfg)

	// Always print stats, partial success included.
	printRunSummary(result, time.Since(startTime), opts.modelName)

	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Translation canceled", "error", err)
			return nil
		}
		return err
	}

	return translationStatusError(result)
}

func translationStatusError(result pipeline.TranslationResult) error {
	switch result.Status {
	case pipeline.TranslationStatusSuccess:
		return nil
	case pipeline.TranslationStatusSkipped:
		return nil
	case pipeline.TranslationStatusPartialSuccess, pipeline.TranslationStatusFailure:
		if result.QueuePath != "" {
			return fmt.Errorf("translation finished with status: %s (%d units untranslated; failure queue: %s)",
				result.Status, len(result.MissingUnits), result.QueuePath)
		}
		return fmt.Errorf("translation finished with status: %s", result.Status)
	default:
		return fmt.Errorf("translation finished with unknown status: %q", result.Status)
	}
}
