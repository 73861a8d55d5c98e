package utils

import "strings"

const emailMask = "***"

// MaskEmail keeps at most two leading characters of the local part and the
// whole domain: "abcdef@x.com" -> "ab***@x.com". Input without '@' yields "".
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return ""
	}
	local, domain := []rune(email[:at]), email[at+1:]
	if len(local) > 2 {
		local = local[:2]
	}
	return string(local) + emailMask + "@" + domain
}
