package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// Endpoint returns a slog attribute for a node or collector address with any
// embedded credentials and query string masked. Unparsable values are masked
// entirely.
func Endpoint(key, raw string) slog.Attr {
	return slog.String(key, RedactURL(raw))
}

// RedactURL masks the password component and query string of raw. Addresses
// without a scheme are returned unchanged.
func RedactURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.Contains(trimmed, "://") {
		return trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return RedactedValue
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), RedactedValue)
		}
	}
	if parsed.RawQuery != "" {
		parsed.RawQuery = "redacted"
	}
	return parsed.String()
}
