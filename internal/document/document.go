package document

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Unit is the smallest addressable piece of translatable source text.
// IDs are positive, stable and unique within one document; they are
// assigned once at extraction time and never renumbered.
type Unit struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Translations maps unit IDs to validated translated text.
type Translations map[int]string

// ProgressFunc reports a fraction in [0,1] and a short description.
type ProgressFunc func(fraction float64, desc string)

// Format extracts translatable units from a file and writes a
// translated replacement preserving the original structure.
// Units missing from the translation map keep their source text.
type Format interface {
	Name() string
	Extensions() []string
	Extract(path string) ([]Unit, error)
	Write(inputPath, outputPath string, units []Unit, results Translations, onProgress ProgressFunc) error
}

var formats []Format

func register(f Format) {
	formats = append(formats, f)
}

// ForPath returns the format adapter responsible for the file extension.
func ForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range formats {
		for _, e := range f.Extensions() {
			if e == ext {
				return f, nil
			}
		}
	}
	if ext == "" {
		ext = "(none)"
	}
	return nil, fmt.Errorf("unsupported file extension %q (supported: %s)", ext, SupportedExtensionsLabel())
}

// converter is implemented by adapters whose Write can render an output
// extension different from the input's. Adapters without it require the
// two extensions to match even within their own family.
type converter interface {
	CanConvert(inExt, outExt string) bool
}

// ValidatePathPair checks that outputPath can be written from
// inputPath. Writers rebuild the output from the input's structure, so
// the pair must resolve to one adapter, and to one extension unless the
// adapter supports conversion.
func ValidatePathPair(inputPath, outputPath string) error {
	inFormat, err := ForPath(inputPath)
	if err != nil {
		return err
	}
	outFormat, err := ForPath(outputPath)
	if err != nil {
		return err
	}
	inExt := strings.ToLower(filepath.Ext(inputPath))
	outExt := strings.ToLower(filepath.Ext(outputPath))
	if inFormat.Name() != outFormat.Name() {
		return fmt.Errorf("output extension %q does not match the %s input (expected one of: %s)",
			outExt, inFormat.Name(), strings.Join(inFormat.Extensions(), ", "))
	}
	if inExt == outExt {
		return nil
	}
	if c, ok := inFormat.(converter); ok && c.CanConvert(inExt, outExt) {
		return nil
	}
	return fmt.Errorf("cannot convert %q input to %q output", inExt, outExt)
}

// SupportedExtensionsLabel returns a comma-separated extension list for usage text.
func SupportedExtensionsLabel() string {
	var exts []string
	for _, f := range formats {
		exts = append(exts, f.Extensions()...)
	}
	return strings.Join(exts, ", ")
}

// SupportedFormats lists registered adapters for the CLI.
func SupportedFormats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

func textFor(u Unit, results Translations) string {
	if t, ok := results[u.ID]; ok && strings.TrimSpace(t) != "" {
		return t
	}
	return u.Text
}
