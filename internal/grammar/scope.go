package grammar

import (
	"regexp"
	"strconv"
	"strings"
)

// captureReference matches $N, ${N} and ${N:/downcase} style references.
var captureReference = regexp.MustCompile(`\$(\d+)|\$\{(\d+)(?::/(downcase|upcase))?\}`)

// ScopeName is the scope template of a rule. A template may hold several
// whitespace separated scopes and may refer to capture groups of the match
// that produced it.
type ScopeName struct {
	template string
	static   []string
	dynamic  bool
}

// NewScopeName parses a scope template.
func NewScopeName(template string) ScopeName {
	s := ScopeName{template: template}
	if captureReference.MatchString(template) {
		s.dynamic = true
	} else {
		s.static = strings.Fields(template)
	}
	return s
}

// String returns the template as written.
func (s ScopeName) String() string {
	return s.template
}

// Empty reports whether the template contributes no scope.
func (s ScopeName) Empty() bool {
	return !s.dynamic && len(s.static) == 0
}

// Dynamic reports whether the template refers to capture groups.
func (s ScopeName) Dynamic() bool {
	return s.dynamic
}

// Resolve returns the scopes of the template with capture references
// replaced by the captured text. Leading dots of captured text are dropped so
// that a capture cannot produce an empty scope segment.
func (s ScopeName) Resolve(captures []string) []string {
	if !s.dynamic {
		return s.static
	}
	expanded := captureReference.ReplaceAllStringFunc(s.template, func(ref string) string {
		sub := captureReference.FindStringSubmatch(ref)
		index := sub[1]
		if index == "" {
			index = sub[2]
		}
		n, err := strconv.Atoi(index)
		if err != nil || n >= len(captures) {
			return ""
		}
		text := strings.TrimLeft(captures[n], ".")
		switch sub[3] {
		case "downcase":
			text = strings.ToLower(text)
		case "upcase":
			text = strings.ToUpper(text)
		}
		return text
	})
	return strings.Fields(expanded)
}
