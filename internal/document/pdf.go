package document

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/props"
	rpdf "rsc.io/pdf"

	"github.com/oukeidos/transdoc/internal/files"
)

func init() {
	register(pdfFormat{})
}

// pdfFormat extracts text lines from a PDF and writes the translation
// as a fresh text-only PDF. PDFs carry no reusable text-run structure,
// so unlike the other adapters the original layout is not preserved;
// pages and line order are.
type pdfFormat struct{}

func (pdfFormat) Name() string { return "pdf" }

func (pdfFormat) Extensions() []string { return []string{".pdf"} }

// pdfLine is one visual text line with the page it came from.
type pdfLine struct {
	page int
	text string
}

func (pdfFormat) Extract(path string) ([]Unit, error) {
	lines, err := extractPDFLines(path)
	if err != nil {
		return nil, err
	}
	units := make([]Unit, len(lines))
	for i, l := range lines {
		units[i] = Unit{ID: i + 1, Text: l.text}
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("document contains no extractable text")
	}
	return units, nil
}

func (pdfFormat) Write(inputPath, outputPath string, units []Unit, results Translations, onProgress ProgressFunc) error {
	lines, err := extractPDFLines(inputPath)
	if err != nil {
		return err
	}
	if len(lines) != len(units) {
		return fmt.Errorf("page text changed between extraction and write: %d != %d", len(lines), len(units))
	}

	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		WithDefaultFont(&props.Font{
			Family: fontfamily.Arial,
			Size:   11,
		}).
		Build()
	m := maroto.New(cfg)

	currentPage := 0
	for i, l := range lines {
		if l.page != currentPage {
			if currentPage != 0 {
				m.AddRow(8)
			}
			currentPage = l.page
		}
		m.AddRow(6,
			col.New(12).Add(
				text.New(textFor(units[i], results), props.Text{
					Family: fontfamily.Arial,
					Size:   11,
				}),
			),
		)
		if onProgress != nil {
			onProgress(float64(i+1)/float64(len(lines)), "Rendering PDF")
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	return files.AtomicWrite(outputPath, doc.GetBytes(), 0600)
}

func extractPDFLines(path string) ([]pdfLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	reader, err := rpdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var lines []pdfLine
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, pageLines(pageNum, page.Content().Text)...)
	}
	return lines, nil
}

// pageLines groups positioned glyph fragments into visual lines by
// descending Y coordinate, then ascending X within one line.
func pageLines(pageNum int, texts []rpdf.Text) []pdfLine {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]rpdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > yTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []pdfLine
	var sb strings.Builder
	lastY := sorted[0].Y
	lastEnd := 0.0
	flush := func() {
		line := strings.TrimSpace(sb.String())
		sb.Reset()
		if line != "" {
			lines = append(lines, pdfLine{page: pageNum, text: line})
		}
	}
	for _, t := range sorted {
		if math.Abs(t.Y-lastY) > yTolerance {
			flush()
			lastY = t.Y
			lastEnd = 0
		}
		if lastEnd != 0 && t.X-lastEnd > wordGap(t.FontSize) {
			sb.WriteString(" ")
		}
		sb.WriteString(t.S)
		lastEnd = t.X + t.W
	}
	flush()
	return lines
}

const yTolerance = 2.0

func wordGap(fontSize float64) float64 {
	if fontSize <= 0 {
		return 1.0
	}
	return fontSize * 0.2
}
