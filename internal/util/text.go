package util

import "strings"

// SanitizePostgresText strips the byte sequences postgres text and jsonb
// columns reject: invalid utf8, raw null bytes, and the escaped null code
// point inside json documents.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	sanitized = strings.ReplaceAll(sanitized, "\x00", "")
	return strings.ReplaceAll(sanitized, "\\u0000", "")
}
