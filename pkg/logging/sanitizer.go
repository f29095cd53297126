package logging

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	// Matches e-mail addresses embedded in free text such as driver errors
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// SanitizeConnectionString removes credentials from a connection string.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return sanitized
}

// SanitizeError strips credentials and panelist e-mail addresses from an error message.
// Unique-constraint errors from the participants table echo the offending e-mail.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := SanitizeConnectionString(err.Error())
	sanitized = emailPattern.ReplaceAllStringFunc(sanitized, MaskEmail)

	return sanitized
}

// MaskEmail keeps the first character of the local part and the domain:
// "alex@example.org" becomes "a***@example.org". Values without an @ are fully redacted.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return RedactedText
	}
	return email[:1] + "***" + email[at:]
}

// Email returns a zap field carrying a masked e-mail address.
func Email(key, email string) zap.Field {
	return zap.String(key, MaskEmail(email))
}

// Error returns a zap field carrying a sanitized error message.
func Error(err error) zap.Field {
	return zap.String("error", SanitizeError(err))
}
