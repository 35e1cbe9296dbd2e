package schema

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label generates a human label from a camelCase field name:
// "interfaceSize" becomes "Interface size", "modalYoutubeWidth" becomes
// "Popup youtube width".
func Label(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	s = strings.Replace(s, "modal", "popup", 1)
	s = strings.Replace(s, "nav", "navigation", 1)
	return ucfirst(s)
}

func ucfirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	// Casers are stateful; one per call keeps Label safe for concurrent use.
	return cases.Upper(language.Und).String(string(r)) + s[size:]
}
