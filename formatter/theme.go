package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/gnoswap-labs/tmscope/internal/trie"
)

// Theme maps scope selectors to styles. A style is a space separated list
// of attribute names, e.g. "green bold" or "hi-blue italic".
type Theme map[string]string

// DefaultTheme returns the theme used when the configuration names none.
func DefaultTheme() Theme {
	return Theme{
		"comment":                "hi-black italic",
		"string":                 "green",
		"constant.character":     "hi-green",
		"constant.numeric":       "magenta",
		"constant.language":      "magenta bold",
		"keyword":                "blue bold",
		"keyword.operator":       "white",
		"storage":                "blue",
		"entity.name.type":       "cyan",
		"entity.name.function":   "yellow",
		"support":                "cyan",
		"variable":               "white",
		"variable.parameter":     "hi-white italic",
		"punctuation.definition": "hi-black",
		"invalid":                "red underline",
		"markup.heading":         "blue bold",
		"meta.preprocessor":      "hi-magenta",
	}
}

var attributes = map[string]color.Attribute{
	"bold":      color.Bold,
	"faint":     color.Faint,
	"italic":    color.Italic,
	"underline": color.Underline,
	"reverse":   color.ReverseVideo,

	"black":   color.FgBlack,
	"red":     color.FgRed,
	"green":   color.FgGreen,
	"yellow":  color.FgYellow,
	"blue":    color.FgBlue,
	"magenta": color.FgMagenta,
	"cyan":    color.FgCyan,
	"white":   color.FgWhite,

	"hi-black":   color.FgHiBlack,
	"hi-red":     color.FgHiRed,
	"hi-green":   color.FgHiGreen,
	"hi-yellow":  color.FgHiYellow,
	"hi-blue":    color.FgHiBlue,
	"hi-magenta": color.FgHiMagenta,
	"hi-cyan":    color.FgHiCyan,
	"hi-white":   color.FgHiWhite,

	"bg-black":   color.BgBlack,
	"bg-red":     color.BgRed,
	"bg-green":   color.BgGreen,
	"bg-yellow":  color.BgYellow,
	"bg-blue":    color.BgBlue,
	"bg-magenta": color.BgMagenta,
	"bg-cyan":    color.BgCyan,
	"bg-white":   color.BgWhite,
}

// ParseStyle turns a style string into a color.
func ParseStyle(style string) (*color.Color, error) {
	fields := strings.Fields(style)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty style")
	}
	attrs := make([]color.Attribute, 0, len(fields))
	for _, f := range fields {
		a, ok := attributes[strings.ToLower(f)]
		if !ok {
			return nil, fmt.Errorf("unknown style attribute %q", f)
		}
		attrs = append(attrs, a)
	}
	return color.New(attrs...), nil
}

// Styles is a compiled Theme.
type Styles struct {
	selectors *trie.Trie[*color.Color]
}

// Compile parses every style of the theme.
func (t Theme) Compile() (*Styles, error) {
	selectors := make([]string, 0, len(t))
	for sel := range t {
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)

	s := &Styles{selectors: trie.New[*color.Color]()}
	for _, sel := range selectors {
		c, err := ParseStyle(t[sel])
		if err != nil {
			return nil, fmt.Errorf("theme selector %q: %w", sel, err)
		}
		s.selectors.Insert(sel, c)
	}
	return s, nil
}

// Resolve returns the style for a token's scopes, outermost first. The
// innermost scope any selector matches decides; among the selectors
// matching it the longest wins. It returns nil when nothing matches.
func (s *Styles) Resolve(scopes []string) *color.Color {
	for i := len(scopes) - 1; i >= 0; i-- {
		if c, _, ok := s.selectors.Lookup(scopes[i]); ok {
			return c
		}
	}
	return nil
}
