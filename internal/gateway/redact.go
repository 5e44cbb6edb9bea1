package gateway

import (
	"regexp"
	"strings"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._\-=/+]+`),
	regexp.MustCompile(`(?i)\b(sk-[A-Za-z0-9\-_]{8,})\b`),
	regexp.MustCompile(`(?i)\b([A-Za-z0-9_]*(TOKEN|SECRET|PASSWORD|API_KEY))\b\s*[:=]\s*["']?([^\s"']+)`),
	regexp.MustCompile(`(?i)\bkey=[^\s&"']+`),
	regexp.MustCompile(`\bbot[0-9]+:[A-Za-z0-9_\-]+`),
}

// redactSecrets masks credentials that backend errors sometimes echo back
// (URLs with keys, auth headers).
func redactSecrets(text string) (string, bool) {
	out := text
	redacted := false
	for _, p := range secretPatterns {
		out = p.ReplaceAllStringFunc(out, func(m string) string {
			redacted = true
			if k, _, ok := strings.Cut(m, "="); ok {
				return k + "=***REDACTED***"
			}
			if k, _, ok := strings.Cut(m, ":"); ok && !strings.HasPrefix(m, "bot") {
				return k + ": ***REDACTED***"
			}
			return "***REDACTED***"
		})
	}
	return out, redacted
}
