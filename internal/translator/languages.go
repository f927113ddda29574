package translator

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageLabel returns the English display name of a language code,
// e.g. "es" -> "Spanish". Unknown codes are returned unchanged.
func LanguageLabel(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
