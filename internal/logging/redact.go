package logging

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Argument names whose values are message content and never logged verbatim.
var contentFields = []string{
	"message",
	"text",
	"body",
	"caption",
	"content",
}

// Argument names that carry credentials.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"credential",
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9]{20,})`),
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{32,})["']?`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// previewRunes is how much of a message body Preview keeps.
const previewRunes = 12

// Redact replaces secret-looking substrings in a string.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// Preview shortens a message body for log output.
func Preview(body string) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= previewRunes {
		return Redact(body)
	}
	runes := []rune(body)
	return Redact(string(runes[:previewRunes])) + "…"
}

// RedactArgs returns a copy of host request arguments that is safe to log.
func RedactArgs(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		switch {
		case IsSensitiveField(k):
			result[k] = RedactedValue
		case isContentField(k):
			if s, ok := v.(string); ok {
				result[k] = Preview(s)
			} else {
				result[k] = RedactedValue
			}
		default:
			if nested, ok := v.(map[string]any); ok {
				result[k] = RedactArgs(nested)
			} else if s, ok := v.(string); ok {
				result[k] = Redact(s)
			} else {
				result[k] = v
			}
		}
	}
	return result
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lowerName := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerName, field) {
			return true
		}
	}
	return false
}

func isContentField(name string) bool {
	lowerName := strings.ToLower(name)
	for _, field := range contentFields {
		if lowerName == field {
			return true
		}
	}
	return false
}
