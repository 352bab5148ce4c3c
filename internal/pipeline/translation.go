package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oukeidos/transdoc/internal/document"
	"github.com/oukeidos/transdoc/internal/files"
	"github.com/oukeidos/transdoc/internal/language"
	"github.com/oukeidos/transdoc/internal/logger"
	"github.com/oukeidos/transdoc/internal/prompts"
	"github.com/oukeidos/transdoc/internal/workspace"
)

// RunTranslation executes the full document translation pipeline.
// Translation failure for a subset of units is never fatal: the run
// still writes an output file and surfaces the missing units in the
// result.
func RunTranslation(ctx context.Context, cfg Config) (TranslationResult, error) {
	var notes []string
	cfg, notes = cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return TranslationResult{}, fmt.Errorf("invalid configuration: %w", err)
	}

	// 1. Validation & Setup
	absIn, err := filepath.Abs(cfg.InputPath)
	if err != nil {
		return TranslationResult{}, fmt.Errorf("failed to resolve input path: %w", err)
	}
	absOut, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		return TranslationResult{}, fmt.Errorf("failed to resolve output path: %w", err)
	}
	if absIn == absOut {
		return TranslationResult{}, fmt.Errorf("input and output files are the same (%s)", absIn)
	}
	if inInfo, err := os.Stat(absIn); err == nil {
		if outInfo, err := os.Stat(absOut); err == nil {
			if os.SameFile(inInfo, outInfo) {
				return TranslationResult{}, fmt.Errorf("input and output files are the same (%s)", absIn)
			}
		} else if !os.IsNotExist(err) {
			return TranslationResult{}, fmt.Errorf("failed to stat output path: %w", err)
		}
	} else {
		return TranslationResult{}, fmt.Errorf("failed to stat input path: %w", err)
	}
	if err := files.RejectSymlinkPath(cfg.OutputPath); err != nil {
		return TranslationResult{}, err
	}

	shouldOverwrite := cfg.Overwrite
	outputExists := false
	if _, err := os.Stat(cfg.OutputPath); err == nil {
		outputExists = true
		if cfg.OnConfirmOverwrite != nil {
			shouldOverwrite = cfg.OnConfirmOverwrite(cfg.OutputPath)
		}
		if !shouldOverwrite {
			logger.Info("Output file exists. Aborted by user.", "path", cfg.OutputPath)
			return TranslationResult{Status: TranslationStatusSkipped}, nil
		}
		logger.Info("Overwriting output file", "path", cfg.OutputPath)
	}

	srcLang, ok := language.GetLanguage(cfg.SourceLang)
	if !ok {
		return TranslationResult{}, fmt.Errorf("unsupported source language: %s", cfg.SourceLang)
	}
	tgtLang, ok := language.GetLanguage(cfg.TargetLang)
	if !ok {
		return TranslationResult{}, fmt.Errorf("unsupported target language: %s", cfg.TargetLang)
	}
	if srcLang.Code == tgtLang.Code {
		return TranslationResult{}, fmt.Errorf("source and target languages must be different (%s)", srcLang.Code)
	}

	if err := document.ValidatePathPair(cfg.InputPath, cfg.OutputPath); err != nil {
		return TranslationResult{}, err
	}
	format, err := document.ForPath(cfg.InputPath)
	if err != nil {
		return TranslationResult{}, err
	}

	// 2. Workspace & Extraction
	ws, err := workspace.Open(cfg.WorkspaceDir)
	if err != nil {
		return TranslationResult{}, err
	}
	if err := ws.Clear(); err != nil {
		return TranslationResult{}, err
	}

	units, err := format.Extract(cfg.InputPath)
	if err != nil {
		return TranslationResult{}, fmt.Errorf("failed to extract document text: %w", err)
	}
	if err := ws.SaveUnits(units); err != nil {
		return TranslationResult{}, fmt.Errorf("failed to persist unit store: %w", err)
	}
	logger.Info("Extracted document text",
		"format", format.Name(), "units", len(units), "path", cfg.InputPath)

	recorder, err := ws.Recorder()
	if err != nil {
		return TranslationResult{}, err
	}

	// 3. Translate
	pset := prompts.Load(srcLang, tgtLang)
	if len(cfg.Glossary) > 0 {
		pset = pset.WithGlossary(cfg.Glossary)
		logger.Info("Loaded glossary mapping", "count", len(cfg.Glossary))
	}

	tr := NewTranslator(cfg.Invoker, pset, ws.Queue(), recorder, cfg.MaxToken, cfg.OnProgress)
	logger.Info("Starting translation", "model", cfg.Invoker.ModelID(), "max_token", cfg.MaxToken)
	if err := tr.Run(ctx, units); err != nil {
		return TranslationResult{}, fmt.Errorf("fatal translation error: %w", err)
	}

	// 4. Validate & Sort
	results, missing := recorder.Finalize(units)
	status := statusFromCounts(len(missing), len(units))
	result := TranslationResult{
		Status:       status,
		MissingUnits: missing,
		TotalUnits:   len(units),
		QueuePath:    ws.Queue().Path(),
	}
	logger.Info("Translation finished",
		"status", status, "translated", len(results), "missing", len(missing))

	// 5. Write
	effectiveOutputPath := cfg.OutputPath
	if !(outputExists && shouldOverwrite) {
		safePath, changed, err := files.SafePath(cfg.OutputPath)
		if err != nil {
			return result, fmt.Errorf("failed to resolve output path: %w", err)
		}
		if changed {
			logger.Warn("Output path adjusted to avoid overwrite",
				"original", cfg.OutputPath, "effective", safePath)
			effectiveOutputPath = safePath
		}
	}

	onWrite := cfg.OnProgress
	if onWrite == nil {
		onWrite = func(float64, string) {}
	}
	if err := format.Write(cfg.InputPath, effectiveOutputPath, units, results, onWrite); err != nil {
		return result, fmt.Errorf("failed to save output file: %w", err)
	}
	result.OutputPath = effectiveOutputPath
	logger.Info("Saved results", "path", effectiveOutputPath)

	if len(missing) > 0 {
		logger.Warn("Some units remain untranslated",
			"count", len(missing), "queue", result.QueuePath)
	}
	return result, nil
}
