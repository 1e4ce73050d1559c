// Package utils provides small, domain-free helpers shared across layers.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or not a
// number. Handlers use it for the page and page_size query parameters, where
// a malformed value should fall back to the default rather than fail the
// request.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
