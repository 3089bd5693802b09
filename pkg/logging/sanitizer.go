package logging

import "regexp"

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// OAuth bearer tokens in headers or error strings.
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`)

	// access_token / refresh_token values in URLs and form bodies.
	tokenParamPattern = regexp.MustCompile(`(?i)(access_token|refresh_token|client_secret|code)=[^;&\s"]+`)

	// user:pass@host credentials in connection strings.
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// Sanitize removes credential material from a string before logging.
// Upstream errors routinely echo the request URL, which can carry tokens.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	out := bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	out = tokenParamPattern.ReplaceAllString(out, "${1}="+RedactedText)
	out = connStringPattern.ReplaceAllString(out, "://"+RedactedText+"@"+RedactedText)
	return out
}

// SanitizeError sanitizes an error message for logging. Nil-safe.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return Sanitize(err.Error())
}
