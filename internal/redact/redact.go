// Package redact strips credentials from strings before they are logged or
// returned in error responses. The service handles a Telegram bot token, LLM
// API keys, a Google service account and a database URL; any of them can end
// up inside a wrapped transport error.
package redact

import "regexp"

// Placeholders substituted for redacted material.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedBotTokenPlaceholder   = "[REDACTED_BOT_TOKEN]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedPrivateKeyPlaceholder = "[REDACTED_PRIVATE_KEY]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules run in order; later patterns never match an earlier placeholder.
var rules = []rule{
	{
		regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
		RedactedPrivateKeyPlaceholder,
	},
	{
		regexp.MustCompile(`bot\d{5,}:[A-Za-z0-9_-]{20,}`),
		RedactedBotTokenPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(postgres(?:ql)?)://[^@\s/]+@`),
		"${1}://" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedJWTPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(Bearer\s+)[A-Za-z0-9_\-.~+/=]{8,}`),
		"${1}" + RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)((?:api[_-]?key|key|token|secret|password)=)[^&\s"'\[]+`),
		"${1}" + RedactionPlaceholder,
	},
}

// String redacts credentials in input.
func String(input string) string {
	if input == "" {
		return input
	}
	for _, r := range rules {
		input = r.pattern.ReplaceAllString(input, r.replacement)
	}
	return input
}

// Error redacts credentials in err's message.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
