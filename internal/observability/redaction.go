package observability

import "regexp"

var (
	botTokenPattern    = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)
	dsnPasswordPattern = regexp.MustCompile(`(://[^:/@\s]+):[^@\s]+@`)
)

// RedactSecrets masks bot tokens and connection-string passwords so errors
// from the transport and the database can be logged as-is.
func RedactSecrets(input string) (redacted string, changed bool) {
	out := input

	next := botTokenPattern.ReplaceAllString(out, "[REDACTED_TOKEN]")
	changed = changed || next != out
	out = next

	next = dsnPasswordPattern.ReplaceAllString(out, "$1:[REDACTED]@")
	changed = changed || next != out
	out = next

	return out, changed
}
