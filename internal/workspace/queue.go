package workspace

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/oukeidos/transdoc/internal/files"
)

// Entry is one failed unit awaiting retry. The field names match the
// on-disk queue format.
type Entry struct {
	Count int    `json:"count"`
	Value string `json:"value"`
}

// ErrQueueUnusable marks a queue file whose content does not parse.
// Callers log it and treat the queue as having no work; it is never
// fatal to the run.
var ErrQueueUnusable = errors.New("failure queue file is unusable")

// FailureQueue is a file-backed ordered list of failed units. A missing
// file is an empty queue. Every mutation is written through atomically,
// so the next read within the same run always sees it.
type FailureQueue struct {
	path string
}

// Path returns the queue file location.
func (q *FailureQueue) Path() string { return q.path }

func (q *FailureQueue) load() ([]Entry, error) {
	data, err := os.ReadFile(q.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, ErrQueueUnusable
	}
	return entries, nil
}

func (q *FailureQueue) store(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return files.AtomicWrite(q.path, data, 0600)
}

// Append adds one failed unit to the end of the queue.
func (q *FailureQueue) Append(id int, sourceText string) error {
	entries, err := q.load()
	if err != nil {
		if !errors.Is(err, ErrQueueUnusable) {
			return err
		}
		// An unusable file is superseded by the fresh entry rather
		// than blocking the run.
		entries = nil
	}
	entries = append(entries, Entry{Count: id, Value: sourceText})
	return q.store(entries)
}

// DrainAll destructively reads the queue: it returns all entries and
// resets the file to an empty list. A missing file yields no entries;
// an unusable file yields no entries and ErrQueueUnusable.
func (q *FailureQueue) DrainAll() ([]Entry, error) {
	entries, err := q.load()
	if err != nil {
		return nil, err
	}
	if err := q.store(nil); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplaceWith overwrites the queue with the given entries.
func (q *FailureQueue) ReplaceWith(entries []Entry) error {
	return q.store(entries)
}

// IsEmptyOrAbsent reports whether the queue holds no retryable work.
// An unusable file counts as empty.
func (q *FailureQueue) IsEmptyOrAbsent() bool {
	entries, err := q.load()
	if err != nil {
		return true
	}
	return len(entries) == 0
}
