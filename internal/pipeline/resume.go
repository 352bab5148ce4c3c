package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/oukeidos/transdoc/internal/document"
	"github.com/oukeidos/transdoc/internal/files"
	"github.com/oukeidos/transdoc/internal/language"
	"github.com/oukeidos/transdoc/internal/logger"
	"github.com/oukeidos/transdoc/internal/prompts"
	"github.com/oukeidos/transdoc/internal/workspace"
)

// RunResume continues an interrupted run from its workspace. Units
// already recorded by the previous run are kept; everything else goes
// through the normal translation and recovery tiers again.
func RunResume(ctx context.Context, cfg Config) (TranslationResult, error) {
	var notes []string
	cfg, notes = cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return TranslationResult{}, fmt.Errorf("invalid configuration: %w", err)
	}

	srcLang, ok := language.GetLanguage(cfg.SourceLang)
	if !ok {
		return TranslationResult{}, fmt.Errorf("unsupported source language: %s", cfg.SourceLang)
	}
	tgtLang, ok := language.GetLanguage(cfg.TargetLang)
	if !ok {
		return TranslationResult{}, fmt.Errorf("unsupported target language: %s", cfg.TargetLang)
	}

	if err := document.ValidatePathPair(cfg.InputPath, cfg.OutputPath); err != nil {
		return TranslationResult{}, err
	}
	format, err := document.ForPath(cfg.InputPath)
	if err != nil {
		return TranslationResult{}, err
	}

	ws, err := workspace.Open(cfg.WorkspaceDir)
	if err != nil {
		return TranslationResult{}, err
	}
	units, err := ws.LoadUnits()
	if err != nil {
		if os.IsNotExist(err) {
			return TranslationResult{}, fmt.Errorf("nothing to resume: workspace %s has no unit store", cfg.WorkspaceDir)
		}
		return TranslationResult{}, err
	}
	recorder, err := ws.Recorder()
	if err != nil {
		return TranslationResult{}, err
	}

	var pending []document.Unit
	for _, u := range units {
		if !recorder.Has(u.ID) {
			pending = append(pending, u)
		}
	}
	logger.Info("Resuming translation",
		"units", len(units), "recorded", recorder.Len(), "pending", len(pending))

	// The pending set covers every queued unit, so the stale queue
	// must not double-book them.
	if err := ws.Queue().ReplaceWith(nil); err != nil {
		return TranslationResult{}, err
	}

	if len(pending) > 0 {
		pset := prompts.Load(srcLang, tgtLang)
		if len(cfg.Glossary) > 0 {
			pset = pset.WithGlossary(cfg.Glossary)
		}
		tr := NewTranslator(cfg.Invoker, pset, ws.Queue(), recorder, cfg.MaxToken, cfg.OnProgress)
		if err := tr.Run(ctx, pending); err != nil {
			return TranslationResult{}, fmt.Errorf("fatal translation error: %w", err)
		}
	}

	results, missing := recorder.Finalize(units)
	status := statusFromCounts(len(missing), len(units))
	result := TranslationResult{
		Status:       status,
		MissingUnits: missing,
		TotalUnits:   len(units),
		QueuePath:    ws.Queue().Path(),
	}
	logger.Info("Resume finished",
		"status", status, "translated", len(results), "missing", len(missing))

	effectiveOutputPath := cfg.OutputPath
	if !cfg.Overwrite {
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
	return result, nil
}
