package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/oukeidos/transdoc/internal/apperrors"
	"github.com/oukeidos/transdoc/internal/document"
)

// EncodeUnits renders units as a JSON object keyed by unit ID,
// preserving unit order so the model sees the document sequence.
func EncodeUnits(units []document.Unit) string {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, u := range units {
		if i > 0 {
			buf.WriteString(", ")
		}
		key, _ := json.Marshal(strconv.Itoa(u.ID))
		val, _ := json.Marshal(u.Text)
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
	}
	buf.WriteString("}")
	return buf.String()
}

// CleanRaw strips markdown code fences and surrounding noise that
// models wrap around JSON output.
func CleanRaw(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	// Models occasionally prepend commentary; recover the object.
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// DecodeTranslations parses raw model output into a unit-keyed mapping.
// Empty output yields an empty-kind error, unparsable output a
// malformed-kind error; both are retryable.
func DecodeTranslations(raw string) (map[int]string, error) {
	cleaned := CleanRaw(raw)
	if cleaned == "" {
		return nil, apperrors.Empty(fmt.Errorf("model returned no text"))
	}

	var keyed map[string]string
	if err := json.Unmarshal([]byte(cleaned), &keyed); err != nil {
		return nil, apperrors.Malformed(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if len(keyed) == 0 {
		return nil, apperrors.Empty(fmt.Errorf("model returned an empty mapping"))
	}

	out := make(map[int]string, len(keyed))
	for k, v := range keyed {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || id <= 0 {
			return nil, apperrors.Malformed(fmt.Errorf("non-numeric unit key %q in response", k))
		}
		out[id] = strings.TrimSpace(v)
	}
	return out, nil
}
