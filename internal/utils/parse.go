// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts a string to an int. Surrounding whitespace is ignored.
// If the string is blank or cannot be parsed as an integer, def is returned.
//
// Example:
//
//	n := utils.AtoiDefault("2", 0)   // returns 2
//	n = utils.AtoiDefault(" 3 ", 0)  // returns 3
//	n = utils.AtoiDefault("x", 0)    // returns 0
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// FlagDefault interprets a query-string switch. "0", "false", "no" and "off"
// turn it off, "1", "true", "yes" and "on" turn it on (case-insensitive), and
// anything else, including absence, yields def.
func FlagDefault(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "false", "no", "off":
		return false
	case "1", "true", "yes", "on":
		return true
	default:
		return def
	}
}

// IsDigits reports whether s is non-empty and consists only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
