package endpoint

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidInput = errors.New("endpoint: invalid input")

const maxPatternLength = 500

var pathVarToken = regexp.MustCompile(`\{[^/{}]+}`)

// Pattern is a compiled URL pattern. Supported wildcards: {var} matches one
// path segment, * matches within a segment, ** matches across segments.
// Matching is always anchored over the full request path.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// NewPattern validates and compiles a pattern once; Matches is then allocation-free.
func NewPattern(raw string) (Pattern, error) {
	if strings.TrimSpace(raw) == "" {
		return Pattern{}, fmt.Errorf("%w: url pattern is required", ErrInvalidInput)
	}
	if !strings.HasPrefix(raw, "/") {
		return Pattern{}, fmt.Errorf("%w: url pattern must start with '/': %q", ErrInvalidInput, raw)
	}
	if len(raw) > maxPatternLength {
		return Pattern{}, fmt.Errorf("%w: url pattern exceeds %d characters", ErrInvalidInput, maxPatternLength)
	}
	re, err := compilePattern(raw)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return Pattern{raw: raw, re: re}, nil
}

// compilePattern substitutes wildcard tokens with placeholders before quoting,
// so literal metacharacters (notably '.') are escaped without mangling the
// already-substituted wildcard fragments.
func compilePattern(raw string) (*regexp.Regexp, error) {
	s := strings.ReplaceAll(raw, "**", "\x01")
	s = strings.ReplaceAll(s, "*", "\x02")
	s = pathVarToken.ReplaceAllString(s, "\x03")
	s = regexp.QuoteMeta(s)
	s = strings.ReplaceAll(s, "\x01", ".*")
	s = strings.ReplaceAll(s, "\x02", "[^/]*")
	s = strings.ReplaceAll(s, "\x03", "[^/]+")
	return regexp.Compile("^" + s + "$")
}

// String returns the original pattern text.
func (p Pattern) String() string { return p.raw }

// IsZero reports whether the pattern was never compiled.
func (p Pattern) IsZero() bool { return p.re == nil }

// Matches reports whether requestPath is fully covered by the pattern.
func (p Pattern) Matches(requestPath string) bool {
	if p.re == nil || requestPath == "" {
		return false
	}
	return p.re.MatchString(requestPath)
}

// IsExact reports whether the pattern contains no wildcard tokens.
func (p Pattern) IsExact() bool {
	return p.literalPrefix() == p.raw
}

// literalPrefix returns the pattern text before the first wildcard token,
// used to rank specificity when several patterns match one path.
func (p Pattern) literalPrefix() string {
	end := len(p.raw)
	if i := strings.IndexByte(p.raw, '*'); i >= 0 && i < end {
		end = i
	}
	if i := strings.IndexByte(p.raw, '{'); i >= 0 && i < end {
		end = i
	}
	return p.raw[:end]
}

// moreSpecificThan ranks two patterns that both match some path: longer
// literal prefix wins, then the longer pattern text.
func (p Pattern) moreSpecificThan(other Pattern) bool {
	pl, ol := len(p.literalPrefix()), len(other.literalPrefix())
	if pl != ol {
		return pl > ol
	}
	return len(p.raw) > len(other.raw)
}
