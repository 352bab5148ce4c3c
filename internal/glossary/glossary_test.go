package glossary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncodeDecodeMappings_NormalizesZh(t *testing.T) {
	in := []TermMapping{{Source: "Alice", Target: "爱丽丝"}}
	data, err := EncodeMappings(in, "en", "zh")
	if err != nil {
		t.Fatalf("EncodeMappings failed: %v", err)
	}
	if !strings.Contains(string(data), `"zh-Hans"`) {
		t.Fatalf("expected zh-Hans key in output, got: %s", string(data))
	}
	out, err := DecodeMappings(data, "en", "zh")
	if err != nil {
		t.Fatalf("DecodeMappings failed: %v", err)
	}
	if len(out) != 1 || out[0].Source != "Alice" || out[0].Target != "爱丽丝" {
		t.Fatalf("unexpected decoded mappings: %+v", out)
	}
}

func TestDecodeMappings_MissingKey(t *testing.T) {
	data := []byte(`[{"en":"Bob"}]`)
	_, err := DecodeMappings(data, "en", "ko")
	if err == nil {
		t.Fatalf("expected error for missing target key")
	}
}

func TestDecodeMappings_UnsupportedLanguage(t *testing.T) {
	data := []byte(`[{"en":"Bob","xx":"?"}]`)
	if _, err := DecodeMappings(data, "en", "xx"); err == nil {
		t.Fatalf("expected error for unsupported language")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.json")
	content := `[{"en":"Widget","fr":"Gadget"},{"en":"Cloud","fr":"Nuage"}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write glossary: %v", err)
	}

	dict, err := LoadFile(path, "en", "fr")
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(dict) != 2 || dict["Widget"] != "Gadget" || dict["Cloud"] != "Nuage" {
		t.Fatalf("unexpected dict: %v", dict)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"), "en", "fr"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
