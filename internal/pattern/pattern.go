// Package pattern wraps the regular expression dialect used by grammars.
//
// Grammar patterns are written for backtracking engines: they rely on
// lookbehind, back-references and the \G anchor, none of which RE2 offers.
// Matching is done on rune slices so that every offset reported here is a
// character offset, and so that lookbehind can see text before the search
// position.
package pattern

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// ErrTimeout is returned when a match exceeds the pattern's time budget.
var ErrTimeout = errors.New("pattern: match time budget exceeded")

// Pattern is a compiled regular expression. It is safe for concurrent use.
type Pattern struct {
	source string
	re     *regexp2.Regexp
}

// Compile compiles source. A zero timeout leaves matching unbounded.
func Compile(source string, timeout time.Duration) (*Pattern, error) {
	re, err := regexp2.Compile(source, regexp2.None)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	return &Pattern{source: source, re: re}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *Pattern {
	p, err := Compile(source, 0)
	if err != nil {
		panic(fmt.Sprintf("pattern: Compile(%q): %v", source, err))
	}
	return p
}

// String returns the source text of the pattern.
func (p *Pattern) String() string {
	return p.source
}

// Group is one capture group of a match. Start and End are -1 when the
// group did not participate in the match.
type Group struct {
	Name  string
	Start int
	End   int
	Text  string
}

// Matched reports whether the group participated in the match.
func (g Group) Matched() bool {
	return g.Start >= 0
}

// Match is the result of a successful search.
type Match struct {
	Start  int
	End    int
	Groups []Group
	named  map[string]int
}

// Group returns the positional group n, or an unmatched group when n is out
// of range.
func (m *Match) Group(n int) Group {
	if n < 0 || n >= len(m.Groups) {
		return Group{Start: -1, End: -1}
	}
	return m.Groups[n]
}

// Named returns the group with the given name.
func (m *Match) Named(name string) (Group, bool) {
	i, ok := m.Index(name)
	if !ok {
		return Group{Start: -1, End: -1}, false
	}
	return m.Groups[i], true
}

// Index returns the position of the named group in Groups.
func (m *Match) Index(name string) (int, bool) {
	i, ok := m.named[name]
	return i, ok
}

// Texts returns the captured text of every positional group, with the empty
// string for groups that did not participate.
func (m *Match) Texts() []string {
	out := make([]string, len(m.Groups))
	for i, g := range m.Groups {
		out[i] = g.Text
	}
	return out
}

// FindAt searches text for the leftmost match starting at or after from.
// Text before from stays visible to lookbehind assertions. A nil match with
// a nil error means there is no match.
func (p *Pattern) FindAt(text []rune, from int) (*Match, error) {
	if from > len(text) {
		return nil, nil
	}
	m, err := p.re.FindRunesMatchStartingAt(text, from)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrTimeout, p.source, err)
	}
	if m == nil {
		return nil, nil
	}

	groups := m.Groups()
	out := &Match{
		Start:  m.Index,
		End:    m.Index + m.Length,
		Groups: make([]Group, len(groups)),
	}
	for i := range groups {
		g := &groups[i]
		if len(g.Captures) == 0 {
			out.Groups[i] = Group{Name: g.Name, Start: -1, End: -1}
		} else {
			out.Groups[i] = Group{
				Name:  g.Name,
				Start: g.Index,
				End:   g.Index + g.Length,
				Text:  g.String(),
			}
		}
		if g.Name != "" && !isNumber(g.Name) {
			if out.named == nil {
				out.named = make(map[string]int)
			}
			out.named[g.Name] = i
		}
	}
	return out, nil
}

func isNumber(s string) bool {
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
