package utils

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Initials returns the upper-cased first letters of the first two words of a name.
func Initials(fullName string) string {
	names := strings.Fields(fullName)
	var b strings.Builder
	for i, name := range names {
		if i == 2 {
			break
		}
		r, _ := utf8.DecodeRuneInString(name)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// FormatDate renders t as dd/mm/yyyy in t's location. The zero time renders as "-".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}
