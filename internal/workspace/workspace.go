// Package workspace manages the per-run scratch directory: the source
// unit store, the results store and the failure queue. Everything in it
// is recreated for each document run and written atomically so a
// half-finished run never leaves a torn file behind.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/oukeidos/transdoc/internal/document"
	"github.com/oukeidos/transdoc/internal/files"
)

const (
	unitsFileName    = "units.json"
	resultsFileName  = "results.json"
	failuresFileName = "failures.json"
)

// Workspace is a scratch directory for one document run.
type Workspace struct {
	dir string
}

// Open prepares the scratch directory, creating it if needed.
func Open(dir string) (*Workspace, error) {
	if dir == "" {
		return nil, fmt.Errorf("workspace directory is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the scratch directory path.
func (w *Workspace) Dir() string { return w.dir }

// Clear removes the stores of a previous run. The directory itself is
// kept so a caller-supplied path stays valid.
func (w *Workspace) Clear() error {
	for _, name := range []string{unitsFileName, resultsFileName, failuresFileName} {
		if err := os.Remove(filepath.Join(w.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear workspace file %s: %w", name, err)
		}
	}
	return nil
}

// Queue returns the failure queue backed by this workspace.
func (w *Workspace) Queue() *FailureQueue {
	return &FailureQueue{path: filepath.Join(w.dir, failuresFileName)}
}

// SaveUnits persists the extracted source units.
func (w *Workspace) SaveUnits(units []document.Unit) error {
	data, err := json.MarshalIndent(units, "", "  ")
	if err != nil {
		return err
	}
	return files.AtomicWrite(filepath.Join(w.dir, unitsFileName), data, 0600)
}

// LoadUnits reads back the source units saved by a previous run.
func (w *Workspace) LoadUnits() ([]document.Unit, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, unitsFileName))
	if err != nil {
		return nil, err
	}
	var units []document.Unit
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("unit store is corrupt: %w", err)
	}
	return units, nil
}

// Recorder accumulates validated translations keyed by unit ID and
// persists them after every change so a crashed run can be resumed.
type Recorder struct {
	path    string
	results map[int]string
}

// Recorder opens the results store, loading any results persisted by a
// previous run over the same workspace.
func (w *Workspace) Recorder() (*Recorder, error) {
	r := &Recorder{
		path:    filepath.Join(w.dir, resultsFileName),
		results: make(map[int]string),
	}
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &r.results); err != nil {
		return nil, fmt.Errorf("results store is corrupt: %w", err)
	}
	return r, nil
}

// Set records one validated translation. Re-recording the same unit
// overwrites the earlier value.
func (r *Recorder) Set(id int, text string) {
	r.results[id] = text
}

// Has reports whether a unit already has a validated translation.
func (r *Recorder) Has(id int) bool {
	_, ok := r.results[id]
	return ok
}

// Len returns the number of recorded translations.
func (r *Recorder) Len() int { return len(r.results) }

// Flush persists the current results atomically.
func (r *Recorder) Flush() error {
	data, err := json.MarshalIndent(r.results, "", "  ")
	if err != nil {
		return err
	}
	return files.AtomicWrite(r.path, data, 0600)
}

// Finalize returns the recorded translations and the IDs of units
// that never received one, sorted ascending.
func (r *Recorder) Finalize(units []document.Unit) (document.Translations, []int) {
	results := make(document.Translations, len(r.results))
	for id, text := range r.results {
		results[id] = text
	}
	var missing []int
	for _, u := range units {
		if _, ok := results[u.ID]; !ok {
			missing = append(missing, u.ID)
		}
	}
	sort.Ints(missing)
	return results, missing
}
