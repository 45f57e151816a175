package validators

import (
	"net/http"
	"strings"
	"unicode/utf8"
)

// MaxQueryValueLength bounds free-form query values before they reach services.
const MaxQueryValueLength = 256

// SanitizeString trims input, collapses inner whitespace runs to a single
// space and truncates the result to maxLen runes. maxLen <= 0 disables the cap.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 || utf8.RuneCountInString(cleaned) <= maxLen {
		return cleaned
	}
	runes := []rune(cleaned)
	return strings.TrimSpace(string(runes[:maxLen]))
}

// QueryString returns the sanitized value of a query parameter.
func QueryString(r *http.Request, key string) string {
	return SanitizeString(r.URL.Query().Get(key), MaxQueryValueLength)
}
