package pipeline

// ContinuityTag distinguishes trusted translated text from unverified
// salvage kept only to prime later context.
type ContinuityTag string

const (
	// Validated marks text that parsed and was recorded as a result.
	Validated ContinuityTag = "validated"
	// BestEffort marks the last attempted text of a failed segment.
	// It never reaches the output document.
	BestEffort ContinuityTag = "best_effort"
)

// ContinuityEntry is one appended piece of raw model output.
type ContinuityEntry struct {
	Tag  ContinuityTag
	Text string
}

// continuityLog collects the raw translated text of a single run in
// order. It lives only in memory.
type continuityLog struct {
	entries []ContinuityEntry
}

func (l *continuityLog) append(tag ContinuityTag, text string) {
	if text == "" {
		return
	}
	l.entries = append(l.entries, ContinuityEntry{Tag: tag, Text: text})
}

// Entries returns the log in append order.
func (l *continuityLog) Entries() []ContinuityEntry {
	return l.entries
}
