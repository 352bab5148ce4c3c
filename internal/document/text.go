package document

import (
	"fmt"
	"os"
	"strings"

	"github.com/oukeidos/transdoc/internal/files"
)

func init() {
	register(textFormat{})
}

// textFormat translates plain text and markdown line by line. Blank
// lines carry no units and are reproduced verbatim, preserving
// paragraph structure.
type textFormat struct{}

func (textFormat) Name() string { return "text" }

func (textFormat) Extensions() []string { return []string{".txt", ".md"} }

// Both extensions render as plain text, so cross-writing is safe.
func (textFormat) CanConvert(_, _ string) bool { return true }

func (textFormat) Extract(path string) ([]Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	var units []Unit
	nextID := 1
	for _, line := range splitLines(string(data)) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		units = append(units, Unit{ID: nextID, Text: line})
		nextID++
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("file contains no translatable text")
	}
	return units, nil
}

func (textFormat) Write(inputPath, outputPath string, units []Unit, results Translations, onProgress ProgressFunc) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to reread text file: %w", err)
	}

	lines := splitLines(string(data))
	next := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if next >= len(units) {
			return fmt.Errorf("line count changed between extraction and write")
		}
		lines[i] = textFor(units[next], results)
		next++
		if onProgress != nil {
			onProgress(float64(next)/float64(len(units)), "Writing text")
		}
	}
	if next != len(units) {
		return fmt.Errorf("line count changed between extraction and write: %d != %d", next, len(units))
	}

	return files.AtomicWrite(outputPath, []byte(strings.Join(lines, "\n")), 0600)
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
