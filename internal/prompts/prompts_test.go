package prompts

import (
	"strings"
	"testing"

	"github.com/oukeidos/transdoc/internal/language"
)

func testPair(t *testing.T) (language.Language, language.Language) {
	t.Helper()
	src, ok := language.GetLanguage("en")
	if !ok {
		t.Fatal("en not supported")
	}
	tgt, ok := language.GetLanguage("fr")
	if !ok {
		t.Fatal("fr not supported")
	}
	return src, tgt
}

func TestLoadNamesBothLanguages(t *testing.T) {
	src, tgt := testPair(t)
	set := Load(src, tgt)
	if !strings.Contains(set.System, "English") || !strings.Contains(set.System, "French") {
		t.Errorf("system prompt should name both languages: %q", set.System)
	}
	if !strings.Contains(set.User, "French") {
		t.Errorf("user prompt should name the target language: %q", set.User)
	}
	if set.DefaultContext != "[beginning of French translation]" {
		t.Errorf("default context = %q", set.DefaultContext)
	}
}

func TestWithGlossarySortsTerms(t *testing.T) {
	src, tgt := testPair(t)
	base := Load(src, tgt)

	mapping := map[string]string{
		"zebra":  "zebre",
		"apple":  "pomme",
		"mango":  "mangue",
		"banana": "banane",
	}
	got := base.WithGlossary(mapping).System

	idx := func(term string) int { return strings.Index(got, "- "+term+" -> ") }
	order := []string{"apple", "banana", "mango", "zebra"}
	for i := 0; i < len(order)-1; i++ {
		a, b := idx(order[i]), idx(order[i+1])
		if a < 0 || b < 0 {
			t.Fatalf("term missing from glossary section: %q", got)
		}
		if a > b {
			t.Errorf("terms out of order: %s after %s", order[i], order[i+1])
		}
	}

	// Identical inputs must produce identical prompts.
	if again := base.WithGlossary(mapping).System; again != got {
		t.Error("glossary section differs between identical calls")
	}
}

func TestWithGlossaryEmptyMappingUnchanged(t *testing.T) {
	src, tgt := testPair(t)
	base := Load(src, tgt)
	if got := base.WithGlossary(nil); got.System != base.System {
		t.Error("empty mapping should leave the prompt set unchanged")
	}
}
