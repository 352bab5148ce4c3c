package llm

import (
	"testing"

	"github.com/oukeidos/transdoc/internal/apperrors"
	"github.com/oukeidos/transdoc/internal/document"
)

func TestEncodeUnits_PreservesOrder(t *testing.T) {
	units := []document.Unit{
		{ID: 3, Text: "third"},
		{ID: 1, Text: "first"},
		{ID: 2, Text: `with "quotes"`},
	}
	got := EncodeUnits(units)
	want := `{"3": "third", "1": "first", "2": "with \"quotes\""}`
	if got != want {
		t.Fatalf("EncodeUnits() = %s, want %s", got, want)
	}
}

func TestDecodeTranslations(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind apperrors.Kind
		wantLen  int
	}{
		{"plain object", `{"1": "uno", "2": "dos"}`, "", 2},
		{"fenced", "```json\n{\"1\": \"uno\"}\n```", "", 1},
		{"commentary prefix", "Here you go:\n{\"1\": \"uno\"}", "", 1},
		{"empty", "", apperrors.KindEmpty, 0},
		{"whitespace", "   \n ", apperrors.KindEmpty, 0},
		{"empty mapping", `{}`, apperrors.KindEmpty, 0},
		{"not json", "sorry, I cannot", apperrors.KindMalformed, 0},
		{"non numeric key", `{"abc": "x"}`, apperrors.KindMalformed, 0},
		{"array", `["uno"]`, apperrors.KindMalformed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTranslations(tt.raw)
			if tt.wantKind != "" {
				kind, ok := apperrors.KindOf(err)
				if !ok || kind != tt.wantKind {
					t.Fatalf("DecodeTranslations() error = %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeTranslations() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("DecodeTranslations() len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestDecodeTranslations_TrimsValues(t *testing.T) {
	got, err := DecodeTranslations(`{"7": "  hola  "}`)
	if err != nil {
		t.Fatal(err)
	}
	if got[7] != "hola" {
		t.Fatalf("value = %q, want %q", got[7], "hola")
	}
}
