package format

import (
	"encoding/hex"
	"unicode"
	"unicode/utf8"
)

// Payload renders msg as text if it is printable and as a hex dump
// otherwise. The result always ends with a newline.
func Payload(msg []byte) string {
	if !printable(msg) {
		return hex.Dump(msg)
	}

	s := string(msg)
	if len(s) == 0 || s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func printable(msg []byte) bool {
	if !utf8.Valid(msg) {
		return false
	}
	for _, r := range string(msg) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
