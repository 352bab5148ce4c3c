// Package glossary loads user-supplied term mappings that pin the
// translation of domain vocabulary (product names, people, recurring
// phrases) across a whole document.
package glossary

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/oukeidos/transdoc/internal/language"
)

// TermMapping binds one source-language term to its required
// target-language rendering.
type TermMapping struct {
	Source string
	Target string
}

func normalizeCode(code string) (string, error) {
	lang, ok := language.GetLanguage(code)
	if !ok {
		return "", fmt.Errorf("unsupported language: %s", code)
	}
	return lang.Code, nil
}

func schemaKeys(sourceCode, targetCode string) (string, string, error) {
	src, err := normalizeCode(sourceCode)
	if err != nil {
		return "", "", err
	}
	tgt, err := normalizeCode(targetCode)
	if err != nil {
		return "", "", err
	}
	return src, tgt, nil
}

// EncodeMappings serializes mappings keyed by normalized language codes.
func EncodeMappings(mappings []TermMapping, sourceCode, targetCode string) ([]byte, error) {
	sourceKey, targetKey, err := schemaKeys(sourceCode, targetCode)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, map[string]string{
			sourceKey: m.Source,
			targetKey: m.Target,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecodeMappings parses a glossary file's content. Each entry must
// carry both the source and target language keys.
func DecodeMappings(data []byte, sourceCode, targetCode string) ([]TermMapping, error) {
	sourceKey, targetKey, err := schemaKeys(sourceCode, targetCode)
	if err != nil {
		return nil, err
	}
	var raw []map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	mappings := make([]TermMapping, 0, len(raw))
	for _, entry := range raw {
		srcVal, ok := entry[sourceKey]
		if !ok {
			return nil, fmt.Errorf("missing source field %q", sourceKey)
		}
		tgtVal, ok := entry[targetKey]
		if !ok {
			return nil, fmt.Errorf("missing target field %q", targetKey)
		}
		mappings = append(mappings, TermMapping{
			Source: srcVal,
			Target: tgtVal,
		})
	}
	return mappings, nil
}

// LoadFile reads a glossary file and returns a source-to-target map
// ready for prompt injection.
func LoadFile(path, sourceCode, targetCode string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file %s: %w", path, err)
	}
	mappings, err := DecodeMappings(data, sourceCode, targetCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse glossary file %s: %w", path, err)
	}
	dict := make(map[string]string, len(mappings))
	for _, m := range mappings {
		dict[m.Source] = m.Target
	}
	return dict, nil
}
