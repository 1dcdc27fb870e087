// Package logutil keeps secrets and oversized values out of logs and reports.
package logutil

import (
	"strings"
	"unicode/utf8"
)

// Redacted replaces sensitive values.
const Redacted = "[REDACTED]"

// IsSensitive returns true when a key likely names a credential.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "apikey"), strings.Contains(normalized, "accesskey"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	default:
		return false
	}
}

// Redact returns Redacted for non-empty values of sensitive keys.
func Redact(key, value string) string {
	if value != "" && IsSensitive(key) {
		return Redacted
	}
	return value
}

// Truncate returns a single-line preview of at most maxChars runes.
func Truncate(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || utf8.RuneCountInString(normalized) <= maxChars {
		return normalized
	}
	runes := []rune(normalized)
	return string(runes[:maxChars]) + "... [truncated]"
}
