package document

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello world</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve"> </w:t></w:r></w:p>
<w:p><w:r><w:t>Fish &amp; chips</w:t></w:r></w:p>
</w:body>
</w:document>`

func writeTestDocx(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml":   testDocumentXML,
		"word/styles.xml":     `<?xml version="1.0"?><w:styles/>`,
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestOOXMLExtract(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	writeTestDocx(t, in)

	units, err := ooxmlFormat{}.Extract(in)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	want := []Unit{{ID: 1, Text: "Hello world"}, {ID: 2, Text: "Fish & chips"}}
	if len(units) != len(want) {
		t.Fatalf("got %d units, want %d: %+v", len(units), len(want), units)
	}
	for i := range want {
		if units[i] != want[i] {
			t.Errorf("unit %d = %+v, want %+v", i, units[i], want[i])
		}
	}
}

func TestOOXMLWriteReplacesRuns(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	out := filepath.Join(dir, "out.docx")
	writeTestDocx(t, in)

	units, err := ooxmlFormat{}.Extract(in)
	if err != nil {
		t.Fatal(err)
	}
	results := Translations{1: "Bonjour", 2: "Moules & frites"}
	if err := (ooxmlFormat{}).Write(in, out, units, results, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}
	defer zr.Close()

	doc, err := readZipEntry(&zr.Reader, "word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	body := string(doc)
	if !strings.Contains(body, "<w:t>Bonjour</w:t>") {
		t.Errorf("translated run missing from output: %s", body)
	}
	if !strings.Contains(body, "Moules &amp; frites") {
		t.Errorf("translation should be XML-escaped: %s", body)
	}
	if strings.Contains(body, "Hello world") {
		t.Errorf("source text still present in output: %s", body)
	}
	// The whitespace-only run carries no unit and is kept verbatim.
	if !strings.Contains(body, `<w:t xml:space="preserve"> </w:t>`) {
		t.Errorf("whitespace run was altered: %s", body)
	}

	styles, err := readZipEntry(&zr.Reader, "word/styles.xml")
	if err != nil {
		t.Fatal(err)
	}
	if string(styles) != `<?xml version="1.0"?><w:styles/>` {
		t.Errorf("untranslated part changed: %s", styles)
	}
}

func TestOOXMLWriteKeepsSourceForMissingUnits(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	out := filepath.Join(dir, "out.docx")
	writeTestDocx(t, in)

	units, err := ooxmlFormat{}.Extract(in)
	if err != nil {
		t.Fatal(err)
	}
	if err := (ooxmlFormat{}).Write(in, out, units, Translations{1: "Bonjour"}, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	doc, err := readZipEntry(&zr.Reader, "word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc), "Fish &amp; chips") {
		t.Errorf("missing unit should keep source text: %s", doc)
	}
}

func TestOOXMLExtractNoText(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "empty.docx")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(`<w:document><w:body/></w:document>`)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(in, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := (ooxmlFormat{}).Extract(in); err == nil {
		t.Fatal("expected error for document with no translatable text")
	}
}
