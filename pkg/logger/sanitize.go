package logger

import (
	"net/url"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

// SanitizedEmail masks an email address for logging (e.g., "c***@***.edu"). Mask lengths are
// fixed so that the log does not leak how long the address is.
func SanitizedEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "[invalid-email]"
	}
	local, domain := email[:at], email[at+1:]

	masked := local[:1] + "***@"
	if dot := strings.LastIndex(domain, "."); dot >= 0 {
		return masked + "***" + domain[dot:]
	}
	return masked + "***"
}

// parameter names whose values never reach the logs
var sensitiveParams = []string{"password", "token", "secret", "email", "auth", "csrf"}

func isSensitiveParam(name string) bool {
	name = strings.ToLower(name)
	for _, param := range sensitiveParams {
		if strings.Contains(name, param) {
			return true
		}
	}
	return false
}

// RedactQuery returns rawQuery with the values of sensitive parameters replaced. Keys come
// back sorted. A query that cannot be parsed is redacted as a whole.
func RedactQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return redacted
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, value := range values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			if isSensitiveParam(key) {
				b.WriteString(redacted)
			} else {
				b.WriteString(url.QueryEscape(value))
			}
		}
	}
	return b.String()
}
