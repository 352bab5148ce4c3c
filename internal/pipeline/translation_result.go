package pipeline

// TranslationStatus is the terminal state of a translation run.
type TranslationStatus string

const (
	TranslationStatusSuccess        TranslationStatus = "Success"
	TranslationStatusPartialSuccess TranslationStatus = "Partial Success"
	TranslationStatusFailure        TranslationStatus = "Failure"
	TranslationStatusSkipped        TranslationStatus = "Skipped"
)

// TranslationResult contains structured outputs from RunTranslation.
type TranslationResult struct {
	Status     TranslationStatus
	OutputPath string

	// MissingUnits lists the IDs of units left untranslated after all
	// recovery tiers, sorted ascending. The persisted failure queue at
	// QueuePath holds their source text.
	MissingUnits []int
	TotalUnits   int
	QueuePath    string
}

func statusFromCounts(missing, total int) TranslationStatus {
	if total == 0 || missing == 0 {
		return TranslationStatusSuccess
	}
	if missing < total {
		return TranslationStatusPartialSuccess
	}
	return TranslationStatusFailure
}
