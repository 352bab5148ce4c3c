package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oukeidos/transdoc/internal/document"
	"github.com/oukeidos/transdoc/internal/logger"
	"github.com/oukeidos/transdoc/internal/pipeline"
)

var runResumePipeline = pipeline.RunResume

func newResumeCmd() *cobra.Command {
	opts := translateOptions{}
	cmd := &cobra.Command{
		Use:   "resume <input> <output>",
		Short: "Resume an interrupted translation from its workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				_ = cmd.Usage()
				return fmt.Errorf("input and output files are required")
			}
			return runResume(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addTranslateFlags(cmd, &opts)
	return cmd
}

func runResume(cmd *cobra.Command, args []string, opts *translateOptions) error {
	if err := document.ValidatePathPair(args[0], args[1]); err != nil {
		return err
	}

	logLevel := logger.LevelInfo
	if opts.debug {
		logLevel = logger.LevelDebug
	}
	logger.Init(logLevel, nil)

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
		Invoker:      invoker,
		MaxToken:     opts.maxToken,
		Overwrite:    opts.yes,
		SourceLang:   sourceCode,
		TargetLang:   targetCode,
		OnProgress: func(fraction float64, stage string) {
			logger.Info("Progress", "stage", stage, "percent", int(fraction*100))
		},
	}

	result, err := runResumePipeline(ctx, cfg)
	printRunSummary(result, time.Since(startTime), opts.modelName)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Resume canceled", "error", err)
			return nil
		}
		return err
	}
	return translationStatusError(result)
}
