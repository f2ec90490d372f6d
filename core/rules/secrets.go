package rules

import (
	"regexp"
	"strings"

	"github.com/traelabs/trae/schema"
)

// SecretPattern describes one literal secret format. When the regex has a
// capture group, group 1 is the secret value; otherwise the whole match is.
type SecretPattern struct {
	Name        string
	Description string
	Severity    schema.Severity
	Regex       *regexp.Regexp
}

// SecretPatterns are checked in order; the first match on a line wins.
var SecretPatterns = []SecretPattern{
	{
		Name:        "aws_access_key_id",
		Description: "AWS access key ID",
		Severity:    schema.CriticalSeverity,
		Regex:       regexp.MustCompile(`(?:^|[^A-Z0-9])((?:A3T[A-Z0-9]|AKIA|ABIA|ACCA|AGPA|AIDA|AIPA|ANPA|ANVA|APKA|AROA|ASCA|ASIA)[A-Z0-9]{16})(?:[^A-Z0-9]|$)`),
	},
	{
		Name:        "github_token",
		Description: "GitHub token",
		Severity:    schema.CriticalSeverity,
		Regex:       regexp.MustCompile(`(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36,}|github_pat_[A-Za-z0-9]{22}_[A-Za-z0-9]{59}`),
	},
	{
		Name:        "stripe_live_key",
		Description: "Stripe live key",
		Severity:    schema.CriticalSeverity,
		Regex:       regexp.MustCompile(`(?:sk|rk)_live_[A-Za-z0-9]{24,}`),
	},
	{
		Name:        "stripe_test_key",
		Description: "Stripe test key",
		Severity:    schema.InfoSeverity,
		Regex:       regexp.MustCompile(`sk_test_[A-Za-z0-9]{24,}`),
	},
	{
		Name:        "slack_token",
		Description: "Slack token",
		Severity:    schema.CriticalSeverity,
		Regex:       regexp.MustCompile(`xox[bp]-[0-9]{10,13}-[0-9]{10,13}-(?:[0-9]{10,13}-)?[A-Za-z0-9]{24,32}`),
	},
	{
		Name:        "slack_webhook",
		Description: "Slack webhook URL",
		Severity:    schema.WarningSeverity,
		Regex:       regexp.MustCompile(`https://hooks\.slack\.com/services/T[A-Z0-9]{8,}/B[A-Z0-9]{8,}/[A-Za-z0-9]{24}`),
	},
	{
		Name:        "private_key",
		Description: "private key block",
		Severity:    schema.CriticalSeverity,
		Regex:       regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`),
	},
	{
		Name:        "jwt",
		Description: "JSON web token",
		Severity:    schema.WarningSeverity,
		Regex:       regexp.MustCompile(`eyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`),
	},
	{
		Name:        "google_api_key",
		Description: "Google API key",
		Severity:    schema.CriticalSeverity,
		Regex:       regexp.MustCompile(`AIza[A-Za-z0-9_-]{35}`),
	},
	{
		Name:        "openai_key",
		Description: "OpenAI-style API key",
		Severity:    schema.CriticalSeverity,
		Regex:       regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}`),
	},
	{
		Name:        "api_key_assignment",
		Description: "API key",
		Severity:    schema.CriticalSeverity,
		Regex:       regexp.MustCompile(`(?i)\w*(?:api[_-]?key|apikey)\w*\s*(?::=|[:=])\s*["']([^"']{8,})["']`),
	},
	{
		Name:        "password_assignment",
		Description: "password",
		Severity:    schema.CriticalSeverity,
		Regex:       regexp.MustCompile(`(?i)\w*(?:password|passwd|pwd)\w*\s*(?::=|[:=])\s*["']([^"']{4,})["']`),
	},
	{
		Name:        "token_assignment",
		Description: "token",
		Severity:    schema.WarningSeverity,
		Regex:       regexp.MustCompile(`(?i)\w*(?:secret|token)\w*\s*(?::=|[:=])\s*["']([^"']{8,})["']`),
	},
}

// placeholderHints mark values that are obviously not real credentials.
var placeholderHints = []string{
	"example", "sample", "placeholder", "dummy", "changeme", "<your", "your_", "xxxxxxxx", "redacted",
}

// FindSecret returns the first secret pattern matching line and the byte
// span of the secret value within it.
func FindSecret(line string) (SecretPattern, int, int, bool) {
	if len(line) > 1000 {
		return SecretPattern{}, 0, 0, false
	}
	for _, p := range SecretPatterns {
		m := p.Regex.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		start, end := m[0], m[1]
		if len(m) >= 4 && m[2] >= 0 {
			start, end = m[2], m[3]
		}
		if isPlaceholder(line[start:end]) {
			continue
		}
		return p, start, end, true
	}
	return SecretPattern{}, 0, 0, false
}

func isPlaceholder(value string) bool {
	lower := strings.ToLower(value)
	for _, hint := range placeholderHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
