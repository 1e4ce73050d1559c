// Package pattern implements wildcard redirect patterns: literal paths with a
// single '*' capture token, compiled once and matched against full candidate
// paths.
//
// A pattern like "/old-blog/*" compiles to an anchored regular expression with
// all literal characters escaped and the wildcard replaced by one capturing
// group that spans any characters, including '/'. Matching is whole-string:
// "/blog/*" never matches "/blogging/x", and the extension-less "/products"
// never swallows "/products/x". The captured segment can then be substituted
// into a destination that carries its own '*'.
package pattern

import (
	"errors"
	"regexp"
	"strings"
)

// Wildcard is the capture token recognized in patterns and destinations.
const Wildcard = "*"

var (
	// ErrNoWildcard is returned when a pattern contains no '*' token.
	// Such rules belong in the exact-rule store, not here.
	ErrNoWildcard = errors.New("pattern must contain a '*' wildcard")

	// ErrMultipleWildcards is returned when a pattern contains more than one
	// '*' token. Only a single capture group is supported; rejecting at
	// compile time keeps rule creation from persisting undefined behavior.
	ErrMultipleWildcards = errors.New("pattern must contain exactly one '*' wildcard")

	// ErrEmptyPattern is returned for blank input.
	ErrEmptyPattern = errors.New("pattern is empty")
)

// Compiled is a validated, ready-to-match wildcard pattern. Values are
// immutable after Compile and safe for concurrent use.
type Compiled struct {
	raw string
	re  *regexp.Regexp
}

// Compile validates and compiles a wildcard pattern. The pattern must contain
// exactly one '*'; the literal portions are regex-escaped and the expression
// is anchored so only full-string candidates match.
func Compile(p string) (*Compiled, error) {
	if strings.TrimSpace(p) == "" {
		return nil, ErrEmptyPattern
	}
	switch n := strings.Count(p, Wildcard); {
	case n == 0:
		return nil, ErrNoWildcard
	case n > 1:
		return nil, ErrMultipleWildcards
	}

	i := strings.Index(p, Wildcard)
	expr := "^" + regexp.QuoteMeta(p[:i]) + "(.*)" + regexp.QuoteMeta(p[i+1:]) + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		// QuoteMeta output always compiles; kept for defense against regexp
		// package changes.
		return nil, err
	}
	return &Compiled{raw: p, re: re}, nil
}

// String returns the original pattern text.
func (c *Compiled) String() string { return c.raw }

// Match reports whether path matches the full pattern and, when it does,
// returns the substring captured at the '*' position. The capture may be
// empty ("/old-blog/*" matches "/old-blog/" with an empty capture).
func (c *Compiled) Match(path string) (capture string, ok bool) {
	m := c.re.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Expand substitutes capture for the '*' in a destination path. Destinations
// without a wildcard are returned unchanged, which supports rules that map
// many sources onto one fixed destination. Only the first '*' is replaced,
// mirroring the substitution applied at rule evaluation time.
func Expand(toPath, capture string) string {
	return strings.Replace(toPath, Wildcard, capture, 1)
}

// Validate reports whether p would compile, without retaining the compiled
// form. Used by the rule service to reject bad patterns at creation time.
func Validate(p string) error {
	_, err := Compile(p)
	return err
}
