package pattern

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// backReference matches a \N placeholder or an escaped backslash, which is
// consumed whole so that \\1 stays a literal backslash followed by 1.
var backReference = regexp.MustCompile(`\\\\|\\(\d+)`)

// HasBackReferences reports whether source refers to groups of another match
// with \N placeholders.
func HasBackReferences(source string) bool {
	for _, m := range backReference.FindAllStringSubmatch(source, -1) {
		if m[1] != "" {
			return true
		}
	}
	return false
}

// Template is a pattern whose \N placeholders are filled from the captures of
// a different match before compiling.
type Template struct {
	source  string
	timeout time.Duration
}

// NewTemplate validates source by compiling a placeholder expansion.
func NewTemplate(source string, timeout time.Duration) (*Template, error) {
	t := &Template{source: source, timeout: timeout}
	if _, err := regexp2.Compile(t.Substitute(nil), regexp2.None); err != nil {
		return nil, err
	}
	return t, nil
}

// String returns the unexpanded source.
func (t *Template) String() string {
	return t.source
}

// Substitute replaces every \N with the escaped literal text of captures[N].
// Placeholders without a capture become empty.
func (t *Template) Substitute(captures []string) string {
	return backReference.ReplaceAllStringFunc(t.source, func(ref string) string {
		if ref == `\\` {
			return ref
		}
		n, err := strconv.Atoi(strings.TrimPrefix(ref, `\`))
		if err != nil || n >= len(captures) {
			return ""
		}
		return regexp2.Escape(captures[n])
	})
}

// Expand substitutes captures and compiles the result. It returns the
// expanded source together with the pattern.
func (t *Template) Expand(captures []string) (string, *Pattern, error) {
	src := t.Substitute(captures)
	p, err := Compile(src, t.timeout)
	if err != nil {
		return src, nil, err
	}
	return src, p, nil
}
