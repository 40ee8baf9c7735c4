package common

import (
	"bytes"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// HasAnyFold reports whether s contains any of the substrings, ignoring case.
func HasAnyFold(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// TrimBOM strips a leading UTF-8 byte order mark and surrounding whitespace.
func TrimBOM(b []byte) []byte {
	return bytes.TrimSpace(bytes.TrimPrefix(b, utf8BOM))
}
