package logger

import "strings"

// RedactEmail masks the local part of an address for safe logging:
// "john.doe@gmail.com" becomes "jo***@gmail.com". Local parts of two
// characters or fewer are fully masked. Anything that is not a single
// local@domain pair becomes "***@***".
func RedactEmail(email string) string {
	name, domain, ok := strings.Cut(email, "@")
	if !ok || name == "" || domain == "" || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(name) > 2 {
		return name[:2] + "***@" + domain
	}
	return "***@" + domain
}
