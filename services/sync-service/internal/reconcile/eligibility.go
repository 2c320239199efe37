package reconcile

import "strings"

// UsableEmail reports whether email can identify a contact in the marketing
// system. Empty, malformed, redacted and deleted addresses are excluded.
func UsableEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}

	local, domain := email[:at], email[at+1:]
	if strings.HasPrefix(local, "redacted") || strings.HasPrefix(local, "deleted") {
		return false
	}
	return !strings.HasSuffix(domain, ".invalid")
}
