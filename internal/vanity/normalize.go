package vanity

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dlclark/regexp2"
)

// DefaultPattern accepts ASCII letters, digits and underscore, 3 to 32 long.
const DefaultPattern = `^[A-Za-z0-9_]{3,32}$`

const matchTimeout = 250 * time.Millisecond

// Normalizer turns raw source entries into canonical candidates.
type Normalizer struct {
	caseInsensitive bool
	re              *regexp2.Regexp
}

// NewNormalizer compiles pattern (DefaultPattern when empty).
func NewNormalizer(pattern string, caseInsensitive bool) (*Normalizer, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile candidate pattern: %w", err)
	}
	re.MatchTimeout = matchTimeout
	return &Normalizer{caseInsensitive: caseInsensitive, re: re}, nil
}

// MustNormalizer is NewNormalizer that panics on a bad pattern.
func MustNormalizer(pattern string, caseInsensitive bool) *Normalizer {
	n, err := NewNormalizer(pattern, caseInsensitive)
	if err != nil {
		panic(err)
	}
	return n
}

// CaseInsensitive reports whether candidates are folded to lower case.
func (n *Normalizer) CaseInsensitive() bool {
	return n.caseInsensitive
}

// byteOrderMark leads files saved by some Windows editors.
const byteOrderMark = '\uFEFF'

// Normalize trims and optionally folds raw, then checks it against the pattern.
// Names that fail are dropped by callers rather than rewritten.
func (n *Normalizer) Normalize(raw string) (string, error) {
	c := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == byteOrderMark
	})
	if c == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCandidate)
	}
	if n.caseInsensitive {
		c = strings.ToLower(c)
	}
	ok, err := n.re.MatchString(c)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidCandidate, c, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCandidate, c)
	}
	return c, nil
}
