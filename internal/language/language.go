package language

import "sort"

// Language represents a supported language.
type Language struct {
	Code string
	Name string
}

// Languages is a map of supported language codes.
var Languages = map[string]Language{
	"ar":      {Code: "ar", Name: "Arabic"},
	"bg":      {Code: "bg", Name: "Bulgarian"},
	"cs":      {Code: "cs", Name: "Czech"},
	"da":      {Code: "da", Name: "Danish"},
	"de":      {Code: "de", Name: "German"},
	"el":      {Code: "el", Name: "Greek"},
	"en":      {Code: "en", Name: "English"},
	"es":      {Code: "es", Name: "Spanish"},
	"fi":      {Code: "fi", Name: "Finnish"},
	"fr":      {Code: "fr", Name: "French"},
	"hi":      {Code: "hi", Name: "Hindi"},
	"hu":      {Code: "hu", Name: "Hungarian"},
	"id":      {Code: "id", Name: "Indonesian"},
	"it":      {Code: "it", Name: "Italian"},
	"ja":      {Code: "ja", Name: "Japanese"},
	"ko":      {Code: "ko", Name: "Korean"},
	"nl":      {Code: "nl", Name: "Dutch"},
	"no":      {Code: "no", Name: "Norwegian"},
	"pl":      {Code: "pl", Name: "Polish"},
	"pt":      {Code: "pt", Name: "Portuguese"},
	"ro":      {Code: "ro", Name: "Romanian"},
	"ru":      {Code: "ru", Name: "Russian"},
	"sv":      {Code: "sv", Name: "Swedish"},
	"th":      {Code: "th", Name: "Thai"},
	"tr":      {Code: "tr", Name: "Turkish"},
	"uk":      {Code: "uk", Name: "Ukrainian"},
	"vi":      {Code: "vi", Name: "Vietnamese"},
	"zh":      {Code: "zh-Hans", Name: "Chinese (Simplified)"},
	"zh-Hans": {Code: "zh-Hans", Name: "Chinese (Simplified)"},
	"zh-Hant": {Code: "zh-Hant", Name: "Chinese (Traditional)"},
}

// GetLanguage returns the language for a code, or false if unsupported.
func GetLanguage(code string) (Language, bool) {
	lang, ok := Languages[code]
	return lang, ok
}

// LanguageEntry represents a map entry for listing.
type LanguageEntry struct {
	ID string // The map key (CLI flag)
	Language
}

// GetSupportedLanguages returns supported languages sorted by Name and then ID.
func GetSupportedLanguages() []LanguageEntry {
	entries := make([]LanguageEntry, 0, len(Languages))
	for k, v := range Languages {
		entries = append(entries, LanguageEntry{ID: k, Language: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}
