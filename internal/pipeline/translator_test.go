package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/oukeidos/transdoc/internal/apperrors"
	"github.com/oukeidos/transdoc/internal/document"
	"github.com/oukeidos/transdoc/internal/llm"
	"github.com/oukeidos/transdoc/internal/prompts"
	"github.com/oukeidos/transdoc/internal/workspace"
)

var testPrompts = prompts.Set{
	System:         "system",
	User:           "Translate:",
	Previous:       "Previous translation:",
	DefaultContext: testDefault,
}

// flakyBackend translates every unit as "T:"+source, but fails any
// request containing a unit that still has scripted failures left.
type flakyBackend struct {
	failuresLeft map[int]int
	err          func() error

	requests     []llm.Request
	callsPerUnit map[int]int
}

func newFlakyBackend(failures map[int]int) *flakyBackend {
	left := make(map[int]int, len(failures))
	for id, n := range failures {
		left[id] = n
	}
	return &flakyBackend{
		failuresLeft: left,
		err:          func() error { return apperrors.Transient(errors.New("backend hiccup")) },
		callsPerUnit: make(map[int]int),
	}
}

func (b *flakyBackend) ModelID() string { return "flaky" }

func (b *flakyBackend) Translate(_ context.Context, req llm.Request) (string, error) {
	b.requests = append(b.requests, req)

	var payload map[string]string
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		return "", fmt.Errorf("test backend could not parse payload: %w", err)
	}

	ids := make([]int, 0, len(payload))
	for key := range payload {
		id, err := strconv.Atoi(key)
		if err != nil {
			return "", fmt.Errorf("test backend got non-numeric key %q", key)
		}
		ids = append(ids, id)
		b.callsPerUnit[id]++
	}

	fail := false
	for _, id := range ids {
		if b.failuresLeft[id] > 0 {
			b.failuresLeft[id]--
			fail = true
		}
	}
	if fail {
		return "", b.err()
	}

	sort.Ints(ids)
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[strconv.Itoa(id)] = "T:" + payload[strconv.Itoa(id)]
	}
	data, _ := json.Marshal(out)
	return string(data), nil
}

func makeTestUnits(n int) []document.Unit {
	units := make([]document.Unit, n)
	for i := range units {
		units[i] = document.Unit{ID: i + 1, Text: fmt.Sprintf("source line number %d", i+1)}
	}
	return units
}

func newTestTranslator(t *testing.T, backend llm.Invoker, maxToken int) (*Translator, *workspace.Workspace, *workspace.Recorder) {
	t.Helper()
	ws, err := workspace.Open(filepath.Join(t.TempDir(), "scratch"))
	if err != nil {
		t.Fatalf("workspace.Open failed: %v", err)
	}
	rec, err := ws.Recorder()
	if err != nil {
		t.Fatalf("Recorder failed: %v", err)
	}
	return NewTranslator(backend, testPrompts, ws.Queue(), rec, maxToken, nil), ws, rec
}

func TestTranslator_RoundTripWithBatchRecovery(t *testing.T) {
	// Units 3 and 7 fail twice (exhausting the primary tier) and then
	// succeed on the batch-retry tier.
	backend := newFlakyBackend(map[int]int{3: 2, 7: 2})
	units := makeTestUnits(10)
	// A budget of 1 forces one unit per segment.
	tr, ws, rec := newTestTranslator(t, backend, 1)

	if err := tr.Run(context.Background(), units); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	results, missing := rec.Finalize(units)
	if len(missing) != 0 {
		t.Errorf("expected empty missing report, got %v", missing)
	}
	if tr.Failed() {
		t.Error("expected failed status to end false")
	}
	if !ws.Queue().IsEmptyOrAbsent() {
		t.Error("expected final failure queue to be empty")
	}
	for _, u := range units {
		if results[u.ID] != "T:"+u.Text {
			t.Errorf("unit %d: got %q", u.ID, results[u.ID])
		}
	}

	// 2 failed attempts in the primary tier plus 1 successful batch
	// retry.
	if got := backend.callsPerUnit[3]; got != 3 {
		t.Errorf("unit 3 saw %d calls, want 3", got)
	}
	if got := backend.callsPerUnit[1]; got != 1 {
		t.Errorf("unit 1 saw %d calls, want 1", got)
	}
}

func TestTranslator_PermanentFailure(t *testing.T) {
	backend := newFlakyBackend(map[int]int{2: 1000})
	units := makeTestUnits(3)
	tr, ws, rec := newTestTranslator(t, backend, 1)

	if err := tr.Run(context.Background(), units); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	_, missing := rec.Finalize(units)
	if len(missing) != 1 || missing[0] != 2 {
		t.Errorf("expected missing report [2], got %v", missing)
	}
	if !tr.Failed() {
		t.Error("expected failed status to end true")
	}

	// The persisted queue holds the original source text.
	data, err := os.ReadFile(ws.Queue().Path())
	if err != nil {
		t.Fatalf("read final queue: %v", err)
	}
	var entries []workspace.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("parse final queue: %v", err)
	}
	if len(entries) != 1 || entries[0].Count != 2 || entries[0].Value != units[1].Text {
		t.Errorf("unexpected final queue %+v", entries)
	}

	// 2 primary attempts, 2 in the single batch round (which recovers
	// nothing and stops the tier), 2 line-by-line.
	if got := backend.callsPerUnit[2]; got != 6 {
		t.Errorf("unit 2 saw %d calls, want 6", got)
	}
}

func TestTranslator_BatchTierRunsAtMostThreeRounds(t *testing.T) {
	// One unit recovers per round, keeping each round productive, while
	// unit 1 never succeeds. The tier must still stop after 3 rounds.
	backend := newFlakyBackend(map[int]int{
		1: 1000,
		2: 2, // recovered in round 1
		3: 4, // recovered in round 2
		4: 6, // recovered in round 3
	})
	units := makeTestUnits(4)
	tr, _, rec := newTestTranslator(t, backend, 1)

	if err := tr.Run(context.Background(), units); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	_, missing := rec.Finalize(units)
	if len(missing) != 1 || missing[0] != 1 {
		t.Errorf("expected only unit 1 missing, got %v", missing)
	}

	// 2 primary + 2 per batch round (x3) + 2 line-by-line.
	if got := backend.callsPerUnit[1]; got != 10 {
		t.Errorf("unit 1 saw %d calls, want 10", got)
	}
}

func TestTranslator_NonRetryableSkipsSecondAttempt(t *testing.T) {
	backend := newFlakyBackend(map[int]int{1: 1000})
	backend.err = func() error { return apperrors.Auth(errors.New("bad key")) }
	units := makeTestUnits(1)
	tr, _, rec := newTestTranslator(t, backend, 1)

	if err := tr.Run(context.Background(), units); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	_, missing := rec.Finalize(units)
	if len(missing) != 1 {
		t.Errorf("expected unit to stay missing, got %v", missing)
	}
	// One attempt per tier: primary, one batch round, line retry.
	if got := backend.callsPerUnit[1]; got != 3 {
		t.Errorf("unit 1 saw %d calls, want 3", got)
	}
}

func TestTranslator_ContextCarryOver(t *testing.T) {
	backend := newFlakyBackend(nil)
	units := makeTestUnits(6)
	// Each unit costs about 6 tokens, so a budget of 26 yields a
	// 4-unit segment followed by a 2-unit segment.
	tr, _, _ := newTestTranslator(t, backend, 26)

	if err := tr.translateContent(context.Background(), units); err != nil {
		t.Fatalf("translateContent failed: %v", err)
	}

	if len(backend.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(backend.requests))
	}
	if got := backend.requests[0].ContextWindow; got != testDefault {
		t.Errorf("first request window = %q, want default", got)
	}
	// Four output lines: the window is the three preceding the last.
	want := "T:source line number 1\nT:source line number 2\nT:source line number 3"
	if got := backend.requests[1].ContextWindow; got != want {
		t.Errorf("second request window = %q, want %q", got, want)
	}

	// The final 2-line segment cannot sustain continuity.
	if got := tr.window.Current(); got != testDefault {
		t.Errorf("window after short segment = %q, want default", got)
	}
}

func TestTranslator_CorruptedQueueReportsNoWork(t *testing.T) {
	backend := newFlakyBackend(nil)
	tr, ws, rec := newTestTranslator(t, backend, 1)
	rec.Set(1, "already recorded")
	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if err := os.WriteFile(ws.Queue().Path(), []byte("not a queue"), 0600); err != nil {
		t.Fatalf("write corrupt queue: %v", err)
	}

	recovered, hadWork, err := tr.retranslateFailedContent(context.Background())
	if err != nil {
		t.Fatalf("retranslateFailedContent raised: %v", err)
	}
	if hadWork || recovered != 0 {
		t.Errorf("expected no work, got recovered=%d hadWork=%v", recovered, hadWork)
	}
	if backend.requests != nil {
		t.Error("expected no backend calls for a corrupt queue")
	}

	// Existing recordings stay untouched.
	rec2, err := ws.Recorder()
	if err != nil {
		t.Fatalf("reopen recorder: %v", err)
	}
	if !rec2.Has(1) {
		t.Error("existing recording was lost")
	}
}

func TestTranslator_ContinuityLogTags(t *testing.T) {
	// First call returns unparsable text twice (exhausting the
	// segment), the rest succeed.
	calls := 0
	backend := &llm.MockFunc{Fn: func(req llm.Request) (string, error) {
		calls++
		if calls <= 2 {
			return "no json here", nil
		}
		var payload map[string]string
		_ = json.Unmarshal([]byte(req.Payload), &payload)
		out := make(map[string]string, len(payload))
		for k, v := range payload {
			out[k] = "T:" + v
		}
		data, _ := json.Marshal(out)
		return string(data), nil
	}}

	units := makeTestUnits(2)
	tr, _, _ := newTestTranslator(t, backend, 1)
	if err := tr.translateContent(context.Background(), units); err != nil {
		t.Fatalf("translateContent failed: %v", err)
	}

	entries := tr.Continuity()
	if len(entries) != 2 {
		t.Fatalf("expected 2 continuity entries, got %d", len(entries))
	}
	if entries[0].Tag != BestEffort || entries[0].Text != "no json here" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Tag != Validated {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
}

func TestTranslator_ProgressReportedPerSegment(t *testing.T) {
	backend := newFlakyBackend(map[int]int{2: 1000})
	units := makeTestUnits(4)

	ws, err := workspace.Open(filepath.Join(t.TempDir(), "scratch"))
	if err != nil {
		t.Fatalf("workspace.Open failed: %v", err)
	}
	rec, err := ws.Recorder()
	if err != nil {
		t.Fatalf("Recorder failed: %v", err)
	}

	var fractions []float64
	tr := NewTranslator(backend, testPrompts, ws.Queue(), rec, 1, func(f float64, _ string) {
		fractions = append(fractions, f)
	})

	if err := tr.translateContent(context.Background(), units); err != nil {
		t.Fatalf("translateContent failed: %v", err)
	}

	// One callback per segment, failed segments included.
	want := []float64{0.25, 0.5, 0.75, 1}
	if len(fractions) != len(want) {
		t.Fatalf("expected %d callbacks, got %v", len(want), fractions)
	}
	for i := range want {
		if fractions[i] != want[i] {
			t.Errorf("callback %d = %v, want %v", i, fractions[i], want[i])
		}
	}
}

func TestTranslator_SecondAttemptRecoversFromMalformedResponse(t *testing.T) {
	backend := &llm.MockInvoker{Steps: []llm.MockStep{
		{Response: "no json here"},
		{Response: `{"1":"T:source line number 1"}`},
	}}
	units := makeTestUnits(1)
	tr, ws, rec := newTestTranslator(t, backend, 1)

	if err := tr.Run(context.Background(), units); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := backend.Calls(); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
	results, missing := rec.Finalize(units)
	if len(missing) != 0 {
		t.Errorf("expected empty missing report, got %v", missing)
	}
	if results[1] != "T:source line number 1" {
		t.Errorf("unit 1: got %q", results[1])
	}
	if tr.Failed() {
		t.Error("expected failed status to end false")
	}
	if !ws.Queue().IsEmptyOrAbsent() {
		t.Error("expected failure queue to stay empty")
	}

	// Both attempts carry the same payload and the seed context.
	if len(backend.Requests) != 2 {
		t.Fatalf("expected 2 recorded requests, got %d", len(backend.Requests))
	}
	if backend.Requests[0].Payload != backend.Requests[1].Payload {
		t.Errorf("payload changed between attempts: %q vs %q",
			backend.Requests[0].Payload, backend.Requests[1].Payload)
	}
	for i, req := range backend.Requests {
		if req.ContextWindow != testDefault {
			t.Errorf("request %d context = %q, want default", i, req.ContextWindow)
		}
	}
}
