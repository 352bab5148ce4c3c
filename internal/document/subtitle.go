package document

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astisub"
	"github.com/oukeidos/transdoc/internal/files"
)

func init() {
	register(subtitleFormat{})
}

// subtitleFormat round-trips subtitle files through go-astisub. One unit
// per cue; multi-line cues are joined with "\n" and split back on write.
type subtitleFormat struct{}

func (subtitleFormat) Name() string { return "subtitle" }

func (subtitleFormat) Extensions() []string {
	return []string{".srt", ".vtt", ".ssa", ".ass", ".ttml", ".stl"}
}

// saveSubtitles renders by the output extension, so any subtitle
// format converts to any other.
func (subtitleFormat) CanConvert(_, _ string) bool { return true }

func (subtitleFormat) Extract(path string) ([]Unit, error) {
	subs, err := astisub.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	if len(subs.Items) == 0 {
		return nil, fmt.Errorf("no subtitles found in file")
	}

	units := make([]Unit, 0, len(subs.Items))
	for i, item := range subs.Items {
		lines := make([]string, 0, len(item.Lines))
		for _, l := range item.Lines {
			lines = append(lines, l.String())
		}
		units = append(units, Unit{ID: i + 1, Text: strings.Join(lines, "\n")})
	}
	return units, nil
}

func (f subtitleFormat) Write(inputPath, outputPath string, units []Unit, results Translations, onProgress ProgressFunc) error {
	subs, err := astisub.OpenFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to reopen subtitle file: %w", err)
	}
	if len(subs.Items) != len(units) {
		return fmt.Errorf("subtitle cue count changed between extraction and write: %d != %d", len(subs.Items), len(units))
	}

	for i, item := range subs.Items {
		text := textFor(units[i], results)
		item.Lines = item.Lines[:0]
		for _, line := range strings.Split(text, "\n") {
			item.Lines = append(item.Lines, astisub.Line{
				Items: []astisub.LineItem{{Text: line}},
			})
		}
		if onProgress != nil && len(subs.Items) > 0 {
			onProgress(float64(i+1)/float64(len(subs.Items)), "Writing subtitles")
		}
	}

	return saveSubtitles(outputPath, subs)
}

func saveSubtitles(path string, subs *astisub.Subtitles) error {
	// WriteToSSA dereferences Metadata.
	if subs.Metadata == nil {
		subs.Metadata = &astisub.Metadata{SSAScriptType: "v4.00+"}
	}

	var buf bytes.Buffer
	var writeErr error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt":
		writeErr = subs.WriteToWebVTT(&buf)
	case ".ssa", ".ass":
		writeErr = subs.WriteToSSA(&buf)
	case ".ttml":
		writeErr = subs.WriteToTTML(&buf)
	case ".stl":
		writeErr = subs.WriteToSTL(&buf)
	default:
		writeErr = subs.WriteToSRT(&buf)
	}
	if writeErr != nil {
		return fmt.Errorf("failed to render subtitles: %w", writeErr)
	}

	return files.AtomicWrite(path, buf.Bytes(), 0600)
}
