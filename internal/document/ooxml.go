package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/oukeidos/transdoc/internal/files"
)

func init() {
	register(ooxmlFormat{})
}

// ooxmlFormat edits text runs inside Office Open XML containers in
// place: everything outside the run contents is copied byte-exact, so
// styling, tables, media and relationships survive translation.
//
// Note there is no reader in the GoWord/GoExcel/GoPPT family; those
// libraries only generate new documents, so run editing works on the
// raw parts directly.
type ooxmlFormat struct{}

func (ooxmlFormat) Name() string { return "office" }

func (ooxmlFormat) Extensions() []string {
	return []string{".docx", ".xlsx", ".pptx"}
}

// runPattern matches one non-empty text run for the given tag, e.g.
// <w:t xml:space="preserve">Hello</w:t>.
func runPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?s)(<%s(?:\s[^>]*)?>)(.*?)(</%s>)`, tag, tag))
}

var (
	wordRun   = runPattern("w:t")
	sheetRun  = runPattern("t")
	slideRun  = runPattern("a:t")
	slideName = regexp.MustCompile(`^ppt/slides/slide[0-9]+\.xml$`)
)

// textParts returns the zip entry names holding translatable runs, in a
// stable order, with the run pattern for each.
func textParts(ext string, r *zip.Reader) ([]string, *regexp.Regexp, error) {
	switch ext {
	case ".docx":
		return []string{"word/document.xml"}, wordRun, nil
	case ".xlsx":
		return []string{"xl/sharedStrings.xml"}, sheetRun, nil
	case ".pptx":
		var slides []string
		for _, f := range r.File {
			if slideName.MatchString(f.Name) {
				slides = append(slides, f.Name)
			}
		}
		sort.Strings(slides)
		if len(slides) == 0 {
			return nil, nil, fmt.Errorf("no slides found in presentation")
		}
		return slides, slideRun, nil
	default:
		return nil, nil, fmt.Errorf("not an OOXML extension: %s", ext)
	}
}

func (ooxmlFormat) Extract(path string) ([]Unit, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer zr.Close()

	parts, pattern, err := textParts(strings.ToLower(filepath.Ext(path)), &zr.Reader)
	if err != nil {
		return nil, err
	}

	var units []Unit
	nextID := 1
	for _, name := range parts {
		content, err := readZipEntry(&zr.Reader, name)
		if err != nil {
			return nil, err
		}
		for _, m := range pattern.FindAllSubmatch(content, -1) {
			text, err := unescapeXML(m[2])
			if err != nil {
				return nil, fmt.Errorf("invalid text run in %s: %w", name, err)
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			units = append(units, Unit{ID: nextID, Text: text})
			nextID++
		}
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("document contains no translatable text")
	}
	return units, nil
}

func (ooxmlFormat) Write(inputPath, outputPath string, units []Unit, results Translations, onProgress ProgressFunc) error {
	zr, err := zip.OpenReader(inputPath)
	if err != nil {
		return fmt.Errorf("failed to reopen document: %w", err)
	}
	defer zr.Close()

	parts, pattern, err := textParts(strings.ToLower(filepath.Ext(inputPath)), &zr.Reader)
	if err != nil {
		return err
	}
	partSet := make(map[string]bool, len(parts))
	for _, p := range parts {
		partSet[p] = true
	}

	// Runs are replaced in the same order extraction assigned IDs.
	next := 0
	replaceRuns := func(content []byte) []byte {
		return pattern.ReplaceAllFunc(content, func(m []byte) []byte {
			sub := pattern.FindSubmatch(m)
			text, err := unescapeXML(sub[2])
			if err != nil || strings.TrimSpace(text) == "" {
				return m
			}
			if next >= len(units) {
				return m
			}
			unit := units[next]
			next++

			var out bytes.Buffer
			out.Write(sub[1])
			xml.EscapeText(&out, []byte(textFor(unit, results)))
			out.Write(sub[3])
			return out.Bytes()
		})
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "transdoc-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	total := len(zr.File)
	for i, f := range zr.File {
		if partSet[f.Name] {
			content, err := readZipEntry(&zr.Reader, f.Name)
			if err != nil {
				return err
			}
			header := f.FileHeader
			w, err := zw.CreateHeader(&header)
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", f.Name, err)
			}
			if _, err := w.Write(replaceRuns(content)); err != nil {
				return fmt.Errorf("failed to write %s: %w", f.Name, err)
			}
		} else {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("failed to copy %s: %w", f.Name, err)
			}
		}
		if onProgress != nil {
			onProgress(float64(i+1)/float64(total), "Rebuilding document")
		}
	}
	if next != len(units) {
		return fmt.Errorf("text runs changed between extraction and write: replaced %d of %d", next, len(units))
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := files.RejectSymlinkPath(outputPath); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	keep = true
	return nil
}

func readZipEntry(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("missing document part: %s", name)
}

func unescapeXML(raw []byte) (string, error) {
	var v struct {
		Text string `xml:",chardata"`
	}
	wrapped := append(append([]byte("<x>"), raw...), []byte("</x>")...)
	if err := xml.Unmarshal(wrapped, &v); err != nil {
		return "", err
	}
	return v.Text, nil
}
