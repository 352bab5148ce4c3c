package pipeline

import (
	"context"
	"fmt"

	"github.com/oukeidos/transdoc/internal/apperrors"
	"github.com/oukeidos/transdoc/internal/document"
	"github.com/oukeidos/transdoc/internal/llm"
	"github.com/oukeidos/transdoc/internal/logger"
	"github.com/oukeidos/transdoc/internal/prompts"
	"github.com/oukeidos/transdoc/internal/segmenter"
	"github.com/oukeidos/transdoc/internal/workspace"
)

const (
	// segmentAttempts caps consecutive translation attempts within a
	// single tier before a segment is escalated.
	segmentAttempts = 2
	// batchRetryRounds caps the batch-retry tier. It bounds worst-case
	// latency against a persistently degraded backend while giving
	// transient errors several chances.
	batchRetryRounds = 3
)

// recoveryState is a stage of the cascading recovery strategy.
type recoveryState int

const (
	statePrimary recoveryState = iota
	stateBatchRetry
	stateLineRetry
	stateDone
)

// Translator drives segment-by-segment translation of one document,
// escalating failures through the recovery tiers. It owns the context
// window, the failure queue and the continuity log for the run; no two
// instances may share a workspace.
type Translator struct {
	invoker  llm.Invoker
	prompts  prompts.Set
	window   *ContextWindow
	queue    *workspace.FailureQueue
	recorder *workspace.Recorder
	log      continuityLog
	maxToken int

	// failed stays true until a recovery tier reports no remaining work.
	failed bool

	onProgress func(fraction float64, stage string)
}

// NewTranslator wires a translation engine over one workspace run.
func NewTranslator(invoker llm.Invoker, pset prompts.Set, queue *workspace.FailureQueue, recorder *workspace.Recorder, maxToken int, onProgress func(float64, string)) *Translator {
	if onProgress == nil {
		onProgress = func(float64, string) {}
	}
	return &Translator{
		invoker:    invoker,
		prompts:    pset,
		window:     NewContextWindow(pset.DefaultContext),
		queue:      queue,
		recorder:   recorder,
		maxToken:   maxToken,
		onProgress: onProgress,
	}
}

// Failed reports whether unresolved units remain after the last
// executed tier.
func (t *Translator) Failed() bool { return t.failed }

// Continuity returns the raw-output log of the run in append order.
func (t *Translator) Continuity() []ContinuityEntry { return t.log.Entries() }

// Run executes the full recovery pipeline over the extracted units:
// the primary pass, then up to three batch-retry rounds, then one
// line-by-line pass. Per-call errors never propagate; unresolved units
// simply remain in the failure queue.
func (t *Translator) Run(ctx context.Context, units []document.Unit) error {
	state := statePrimary
	round := 0

	for state != stateDone {
		switch state {
		case statePrimary:
			if err := t.translateContent(ctx, units); err != nil {
				return err
			}
			if t.failed {
				state = stateBatchRetry
			} else {
				state = stateDone
			}

		case stateBatchRetry:
			round++
			recovered, hadWork, err := t.retranslateFailedContent(ctx)
			if err != nil {
				return err
			}
			switch {
			case !hadWork:
				t.failed = false
				state = stateDone
			case t.queue.IsEmptyOrAbsent():
				t.failed = false
				state = stateDone
			case recovered == 0 || round >= batchRetryRounds:
				state = stateLineRetry
			}

		case stateLineRetry:
			if err := t.retranslateFailedLines(ctx); err != nil {
				return err
			}
			state = stateDone
		}
	}
	return nil
}

// translateContent runs the primary pass over the full unit store.
// Every unit ends it either recorded as translated or present in the
// failure queue exactly once.
func (t *Translator) translateContent(ctx context.Context, units []document.Unit) error {
	stream := segmenter.New(units, t.maxToken)
	for {
		segment, ok := stream.Next()
		if !ok {
			break
		}
		if err := t.translateSegment(ctx, segment, false); err != nil {
			return err
		}
		t.onProgress(stream.Progress(), "translating")
	}
	return nil
}

// retranslateFailedContent runs one batch-retry round: snapshot and
// clear the queue, re-segment the snapshot, and replay the primary
// per-segment logic. It reports how many units were recovered and
// whether there was any work to do. An unusable queue file is logged
// and treated as no work.
func (t *Translator) retranslateFailedContent(ctx context.Context) (recovered int, hadWork bool, err error) {
	if t.queue.IsEmptyOrAbsent() {
		return 0, false, nil
	}
	entries, err := t.queue.DrainAll()
	if err != nil {
		logger.Warn("Failure queue is unusable, skipping batch retry", "error", err)
		return 0, false, nil
	}
	if len(entries) == 0 {
		return 0, false, nil
	}

	units := entriesToUnits(entries)
	logger.Info("Batch retry round", "units", len(units))

	before := t.recorder.Len()
	stream := segmenter.New(units, t.maxToken)
	for {
		segment, ok := stream.Next()
		if !ok {
			break
		}
		if err := t.translateSegment(ctx, segment, false); err != nil {
			return 0, true, err
		}
		t.onProgress(stream.Progress(), "recovering")
	}
	return t.recorder.Len() - before, true, nil
}

// retranslateFailedLines retries each remaining unit in isolation.
// Individual problematic units frequently succeed alone even when they
// poison a larger segment's parse. Whatever still fails is persisted
// as the final failure queue.
func (t *Translator) retranslateFailedLines(ctx context.Context) error {
	entries, err := t.queue.DrainAll()
	if err != nil {
		logger.Warn("Failure queue is unusable, skipping line retry", "error", err)
		t.failed = false
		return nil
	}
	if len(entries) == 0 {
		t.failed = false
		return nil
	}
	logger.Info("Line-by-line retry", "units", len(entries))

	var remaining []workspace.Entry
	for i, entry := range entries {
		unit := document.Unit{ID: entry.Count, Text: entry.Value}
		ok, err := t.attemptLine(ctx, unit)
		if err != nil {
			return err
		}
		if !ok {
			remaining = append(remaining, entry)
		}
		t.onProgress(float64(i+1)/float64(len(entries)), "recovering lines")
	}

	if err := t.queue.ReplaceWith(remaining); err != nil {
		return fmt.Errorf("failed to persist final failure queue: %w", err)
	}
	t.failed = len(remaining) > 0
	return nil
}

// translateSegment attempts one segment up to segmentAttempts times.
// On exhaustion every unit is pushed to the failure queue and the last
// attempted text, if any, is kept as a best-effort continuity artifact.
func (t *Translator) translateSegment(ctx context.Context, segment []document.Unit, lineRule bool) error {
	decoded, lastRaw, ok := t.attemptSegment(ctx, segment)
	if !ok {
		for _, u := range segment {
			if err := t.queue.Append(u.ID, u.Text); err != nil {
				return fmt.Errorf("failed to queue unit %d: %w", u.ID, err)
			}
		}
		t.failed = true
		t.log.append(BestEffort, lastRaw)
		return nil
	}

	output := ""
	for i, u := range segment {
		t.recorder.Set(u.ID, decoded[u.ID])
		if i > 0 {
			output += "\n"
		}
		output += decoded[u.ID]
	}
	if err := t.recorder.Flush(); err != nil {
		return fmt.Errorf("failed to persist results: %w", err)
	}
	if lineRule {
		t.window.UpdateFromLine(output)
	} else {
		t.window.UpdateFromSegment(output)
	}
	t.log.append(Validated, lastRaw)
	return nil
}

// attemptLine retries one unit in isolation, updating the context
// window with the line rule on success.
func (t *Translator) attemptLine(ctx context.Context, unit document.Unit) (bool, error) {
	decoded, _, ok := t.attemptSegment(ctx, []document.Unit{unit})
	if !ok {
		return false, nil
	}
	t.recorder.Set(unit.ID, decoded[unit.ID])
	if err := t.recorder.Flush(); err != nil {
		return false, fmt.Errorf("failed to persist results: %w", err)
	}
	t.window.UpdateFromLine(decoded[unit.ID])
	return true, nil
}

// attemptSegment issues up to segmentAttempts translation calls and
// validates coverage of the response. All call errors are handled
// here; the raw text of the last attempt is returned either way.
func (t *Translator) attemptSegment(ctx context.Context, segment []document.Unit) (decoded map[int]string, lastRaw string, ok bool) {
	req := llm.Request{
		Payload: llm.EncodeUnits(segment),
		Prompts: t.prompts,
	}

	for attempt := 1; attempt <= segmentAttempts; attempt++ {
		req.ContextWindow = t.window.Current()

		raw, err := t.invoker.Translate(ctx, req)
		if raw != "" {
			lastRaw = raw
		}
		if err == nil {
			decoded, err = llm.DecodeTranslations(raw)
		}
		if err == nil {
			err = validateCoverage(segment, decoded)
		}
		if err == nil {
			return decoded, lastRaw, true
		}

		kind, _ := apperrors.KindOf(err)
		logger.Warn("Segment translation attempt failed",
			"attempt", attempt,
			"units", len(segment),
			"kind", kind,
			"error", apperrors.PublicMessage(err))

		if !apperrors.IsRetryable(err) {
			break
		}
	}
	return nil, lastRaw, false
}

// validateCoverage requires a non-empty translation for every unit in
// the segment. A partial response is treated as malformed so the whole
// segment is retried rather than silently dropping units.
func validateCoverage(segment []document.Unit, decoded map[int]string) error {
	for _, u := range segment {
		if decoded[u.ID] == "" {
			return apperrors.Malformed(fmt.Errorf("response is missing unit %d", u.ID))
		}
	}
	return nil
}

func entriesToUnits(entries []workspace.Entry) []document.Unit {
	units := make([]document.Unit, len(entries))
	for i, e := range entries {
		units[i] = document.Unit{ID: e.Count, Text: e.Value}
	}
	return units
}
