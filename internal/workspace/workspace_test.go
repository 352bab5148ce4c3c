package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/oukeidos/transdoc/internal/document"
)

func openTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := Open(filepath.Join(t.TempDir(), "scratch"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return ws
}

func TestWorkspace_UnitsRoundTrip(t *testing.T) {
	ws := openTestWorkspace(t)

	units := []document.Unit{
		{ID: 1, Text: "first line"},
		{ID: 2, Text: "second line"},
	}
	if err := ws.SaveUnits(units); err != nil {
		t.Fatalf("SaveUnits failed: %v", err)
	}

	loaded, err := ws.LoadUnits()
	if err != nil {
		t.Fatalf("LoadUnits failed: %v", err)
	}
	if len(loaded) != 2 || loaded[0] != units[0] || loaded[1] != units[1] {
		t.Errorf("loaded units mismatch: %+v", loaded)
	}
}

func TestWorkspace_ClearRemovesStores(t *testing.T) {
	ws := openTestWorkspace(t)

	if err := ws.SaveUnits([]document.Unit{{ID: 1, Text: "x"}}); err != nil {
		t.Fatalf("SaveUnits failed: %v", err)
	}
	if err := ws.Queue().Append(1, "x"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := ws.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := ws.LoadUnits(); !os.IsNotExist(err) {
		t.Errorf("expected unit store to be gone, got %v", err)
	}
	if !ws.Queue().IsEmptyOrAbsent() {
		t.Error("expected queue to be absent after Clear")
	}

	// Clearing an already-clean workspace is a no-op.
	if err := ws.Clear(); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}

func TestFailureQueue_DrainAbsentIsEmpty(t *testing.T) {
	q := openTestWorkspace(t).Queue()

	entries, err := q.DrainAll()
	if err != nil {
		t.Fatalf("DrainAll on absent file failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %+v", entries)
	}
	if !q.IsEmptyOrAbsent() {
		t.Error("expected IsEmptyOrAbsent to be true")
	}
}

func TestFailureQueue_AppendDrainReplace(t *testing.T) {
	q := openTestWorkspace(t).Queue()

	if err := q.Append(3, "third"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := q.Append(7, "seventh"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if q.IsEmptyOrAbsent() {
		t.Error("expected queue to be non-empty")
	}

	entries, err := q.DrainAll()
	if err != nil {
		t.Fatalf("DrainAll failed: %v", err)
	}
	want := []Entry{{Count: 3, Value: "third"}, {Count: 7, Value: "seventh"}}
	if len(entries) != 2 || entries[0] != want[0] || entries[1] != want[1] {
		t.Errorf("drained entries mismatch: %+v", entries)
	}

	// Drain resets the file, not just the in-memory view.
	entries, err = q.DrainAll()
	if err != nil || len(entries) != 0 {
		t.Errorf("expected empty queue after drain, got %+v err=%v", entries, err)
	}

	if err := q.ReplaceWith([]Entry{{Count: 9, Value: "ninth"}}); err != nil {
		t.Fatalf("ReplaceWith failed: %v", err)
	}
	entries, err = q.DrainAll()
	if err != nil || len(entries) != 1 || entries[0].Count != 9 {
		t.Errorf("expected replaced entries, got %+v err=%v", entries, err)
	}
}

func TestFailureQueue_CorruptFileIsUnusable(t *testing.T) {
	q := openTestWorkspace(t).Queue()

	if err := os.WriteFile(q.Path(), []byte("{not json"), 0600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	if _, err := q.DrainAll(); !errors.Is(err, ErrQueueUnusable) {
		t.Errorf("expected ErrQueueUnusable, got %v", err)
	}
	if !q.IsEmptyOrAbsent() {
		t.Error("unusable queue should count as empty")
	}

	// A fresh append supersedes the corrupt content.
	if err := q.Append(1, "one"); err != nil {
		t.Fatalf("Append over corrupt file failed: %v", err)
	}
	entries, err := q.DrainAll()
	if err != nil || len(entries) != 1 || entries[0].Value != "one" {
		t.Errorf("expected queue recovered after append, got %+v err=%v", entries, err)
	}
}

func TestRecorder_PersistsAndFinalizes(t *testing.T) {
	ws := openTestWorkspace(t)

	rec, err := ws.Recorder()
	if err != nil {
		t.Fatalf("Recorder failed: %v", err)
	}
	rec.Set(1, "uno")
	rec.Set(3, "tres")
	rec.Set(3, "tres!")
	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Reopening sees the persisted results.
	rec2, err := ws.Recorder()
	if err != nil {
		t.Fatalf("second Recorder failed: %v", err)
	}
	if !rec2.Has(1) || !rec2.Has(3) || rec2.Len() != 2 {
		t.Errorf("reloaded recorder mismatch: len=%d", rec2.Len())
	}

	units := []document.Unit{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	results, missing := rec2.Finalize(units)
	if results[3] != "tres!" {
		t.Errorf("expected overwrite to win, got %q", results[3])
	}
	if len(missing) != 2 || missing[0] != 2 || missing[1] != 4 {
		t.Errorf("missing mismatch: %v", missing)
	}
}
