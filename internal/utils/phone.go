package utils

import (
	"regexp"
	"strings"
)

var (
	mobilePattern = regexp.MustCompile(`^01\d{8,9}$`)
	codePattern   = regexp.MustCompile(`^\d{6}$`)
)

// Digits strips every non-digit rune.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsMobile reports whether a digits-only number is a domestic mobile number
// (01 prefix, 10 or 11 digits).
func IsMobile(digits string) bool {
	return mobilePattern.MatchString(digits)
}

func IsCode(digits string) bool {
	return codePattern.MatchString(digits)
}
