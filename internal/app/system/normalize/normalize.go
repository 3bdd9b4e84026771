// Package normalize trims and case-folds user input before it is stored or compared.
package normalize

import "strings"

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// QueryParam trims a query string value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// JoinCode trims a pasted join code and lowercases it. Codes are hex, so
// case does not carry meaning.
func JoinCode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
