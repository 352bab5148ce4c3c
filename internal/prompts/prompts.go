package prompts

import (
	"fmt"
	"sort"

	"github.com/oukeidos/transdoc/internal/language"
)

// Set holds the prompt texts for one language pair.
type Set struct {
	// System is the model's standing instruction.
	System string
	// User prefixes the segment payload in each call.
	User string
	// Previous prefixes the context window in each call.
	Previous string
	// DefaultContext seeds the context window when no usable trailing
	// translation exists.
	DefaultContext string
}

// Load builds the prompt set for a source/target pair.
func Load(src, tgt language.Language) Set {
	system := fmt.Sprintf(`You are a professional %s to %s translator specializing in documents.
Translate the provided %s document lines into %s.

1. Input Structure:
- The input is a JSON object mapping numeric line IDs to %s source text.
- A "Previous translation" block may precede it. It is context only; do NOT translate it or include it in the output.

2. Output Structure:
- The output MUST be a JSON object with exactly the same numeric IDs as the input.
- Each value must contain ONLY the %s translation of the corresponding source text.
- Respond ONLY with the JSON object. No commentary, no code fences.

3. Rules:
- Maintain the original tone, register and terminology.
- Preserve inline formatting markers, numbers and placeholders exactly.
- Write ONLY the %s translation; do not include the %s source text.`,
		src.Name, tgt.Name, src.Name, tgt.Name, src.Name, tgt.Name, tgt.Name, src.Name)

	return Set{
		System:         system,
		User:           fmt.Sprintf("Translate the following lines into %s:", tgt.Name),
		Previous:       "Previous translation (context only):",
		DefaultContext: fmt.Sprintf("[beginning of %s translation]", tgt.Name),
	}
}

// WithGlossary appends a fixed-term mapping to the system prompt.
func (s Set) WithGlossary(mapping map[string]string) Set {
	if len(mapping) == 0 {
		return s
	}
	keys := make([]string, 0, len(mapping))
	for src := range mapping {
		keys = append(keys, src)
	}
	sort.Strings(keys)

	extra := "\n\nCRITICAL: The following terms MUST be translated as specified:\n"
	for _, src := range keys {
		extra += fmt.Sprintf("- %s -> %s\n", src, mapping[src])
	}
	s.System += extra
	return s
}
