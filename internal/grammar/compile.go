package grammar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/tmscope/internal/pattern"
)

// Grammar is a compiled grammar. It is never modified after Compile returns
// and may be shared by any number of tokenizers.
type Grammar struct {
	name       string
	scopeName  string
	fileTypes  []string
	firstLine  *pattern.Pattern
	rules      []*Rule
	root       []RuleID
	repository map[string][]RuleID
}

// Name returns the display name of the grammar.
func (g *Grammar) Name() string { return g.name }

// ScopeName returns the root scope.
func (g *Grammar) ScopeName() string { return g.scopeName }

// FileTypes returns the file extensions the grammar declares, without dots.
func (g *Grammar) FileTypes() []string { return g.fileTypes }

// Rule returns the rule with the given ID.
func (g *Grammar) Rule(id RuleID) *Rule { return g.rules[id] }

// RuleCount returns the number of compiled rules.
func (g *Grammar) RuleCount() int { return len(g.rules) }

// Candidates returns the top-level rules in document order.
func (g *Grammar) Candidates() []RuleID { return g.root }

// Repository returns the rules a repository entry expands to.
func (g *Grammar) Repository(name string) ([]RuleID, bool) {
	ids, ok := g.repository[name]
	return ids, ok
}

// MatchesFirstLine reports whether line matches the grammar's firstLineMatch.
func (g *Grammar) MatchesFirstLine(line string) bool {
	if g.firstLine == nil {
		return false
	}
	m, err := g.firstLine.FindAt([]rune(line), 0)
	return err == nil && m != nil
}

type options struct {
	matchTimeout time.Duration
	logger       *zap.Logger
}

// Option configures Compile.
type Option func(*options)

// WithMatchTimeout bounds the time a single pattern may spend on one search.
func WithMatchTimeout(d time.Duration) Option {
	return func(o *options) { o.matchTimeout = d }
}

// WithLogger sets the logger used while compiling.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// ref points at a compiled node: a rule, a container group, or nothing
// (a disabled rule).
type ref struct {
	rule  RuleID
	group int
	kind  refKind
}

type refKind int

const (
	refNone refKind = iota
	refRule
	refGroup
)

// group is a container of patterns. Groups only exist while compiling; their
// contents are spliced into every list that refers to them.
type group struct {
	links []ref
}

// pendingList is a rule list whose links are flattened once every node exists.
type pendingList struct {
	links  []ref
	target *[]RuleID
}

type compiler struct {
	doc       *Document
	opts      options
	rules     []*Rule
	groups    []*group
	named     map[string]ref
	resolving map[string]bool
	pending   []pendingList
}

const rootGroup = 0

// Compile validates doc, resolves its includes and compiles every pattern.
// It either returns a complete Grammar or a *CompileError.
func Compile(doc *Document, opts ...Option) (*Grammar, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &compiler{
		doc:       doc,
		opts:      o,
		groups:    []*group{{}},
		named:     make(map[string]ref),
		resolving: make(map[string]bool),
	}

	root, err := c.compileList(doc.Patterns, "patterns")
	if err != nil {
		return nil, err
	}
	c.groups[rootGroup].links = root

	names := make([]string, 0, len(doc.Repository))
	for name := range doc.Repository {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := c.resolveNamed(name, "repository"); err != nil {
			return nil, err
		}
	}

	g := &Grammar{
		name:       doc.Name,
		scopeName:  doc.ScopeName,
		fileTypes:  doc.FileTypes,
		rules:      c.rules,
		repository: make(map[string][]RuleID, len(c.named)),
	}
	if doc.FirstLine != "" {
		g.firstLine, err = pattern.Compile(doc.FirstLine, o.matchTimeout)
		if err != nil {
			return nil, compileErrorf(ErrInvalidPattern, "firstLineMatch", err, "%q", doc.FirstLine)
		}
	}

	for _, p := range c.pending {
		*p.target = c.flatten(p.links)
	}
	g.root = c.flatten(root)
	for name, r := range c.named {
		g.repository[name] = c.flatten([]ref{r})
	}

	o.logger.Debug("grammar compiled",
		zap.String("scope", doc.ScopeName),
		zap.Int("rules", len(c.rules)),
		zap.Int("repository", len(doc.Repository)))

	return g, nil
}

// flatten expands groups into the concrete rules they contain, in document
// order. A group reached twice through a cycle contributes once.
func (c *compiler) flatten(links []ref) []RuleID {
	var out []RuleID
	visited := make(map[int]bool)
	var walk func([]ref)
	walk = func(links []ref) {
		for _, l := range links {
			switch l.kind {
			case refRule:
				out = append(out, l.rule)
			case refGroup:
				if visited[l.group] {
					continue
				}
				visited[l.group] = true
				walk(c.groups[l.group].links)
			}
		}
	}
	walk(links)
	return out
}

func (c *compiler) compileList(raws []*RawRule, path string) ([]ref, error) {
	links := make([]ref, 0, len(raws))
	for i, raw := range raws {
		r, err := c.compileRule(raw, fmt.Sprintf("%s[%d]", path, i), nil)
		if err != nil {
			return nil, err
		}
		if r.kind != refNone {
			links = append(links, r)
		}
	}
	return links, nil
}

// deferList compiles raws now and flattens them into target once every node
// is compiled.
func (c *compiler) deferList(raws []*RawRule, path string, target *[]RuleID) error {
	links, err := c.compileList(raws, path)
	if err != nil {
		return err
	}
	c.pending = append(c.pending, pendingList{links: links, target: target})
	return nil
}

// resolveNamed compiles the repository entry name once and returns its ref.
func (c *compiler) resolveNamed(name, from string) (ref, error) {
	if r, ok := c.named[name]; ok {
		return r, nil
	}
	raw, ok := c.doc.Repository[name]
	if !ok || raw == nil {
		return ref{}, compileErrorf(ErrUnresolvedInclude, from, nil, "no repository entry %q", name)
	}
	if c.resolving[name] {
		return ref{}, compileErrorf(ErrCyclicInclude, from, nil, "%q includes itself without matching anything", name)
	}
	c.resolving[name] = true
	defer delete(c.resolving, name)

	r, err := c.compileRule(raw, "repository."+name, func(r ref) { c.named[name] = r })
	if err != nil {
		return ref{}, err
	}
	c.named[name] = r
	return r, nil
}

func (c *compiler) resolveInclude(include, path string) (ref, error) {
	switch {
	case include == "$self" || include == "$base":
		return ref{kind: refGroup, group: rootGroup}, nil
	case strings.HasPrefix(include, "#"):
		return c.resolveNamed(include[1:], path)
	}
	return ref{}, compileErrorf(ErrUnsupportedFeature, path, nil, "cross-grammar include %q", include)
}

// compileRule compiles raw. registered is called as soon as the node for raw
// exists, before its children are compiled, so that children may refer back
// to it.
func (c *compiler) compileRule(raw *RawRule, path string, registered func(ref)) (ref, error) {
	if raw == nil || raw.Disabled {
		return ref{}, nil
	}
	switch {
	case raw.Include != "":
		return c.resolveInclude(raw.Include, path)
	case raw.While != "":
		return ref{}, compileErrorf(ErrUnsupportedFeature, path, nil, "begin/while rules")
	case raw.Match != "":
		return c.compileMatch(raw, path, registered)
	case raw.Begin != "" && raw.End != "":
		return c.compileBeginEnd(raw, path, registered)
	case raw.Begin != "":
		return ref{}, compileErrorf(ErrInvalidPattern, path, nil, "begin without end")
	case raw.End != "":
		return ref{}, compileErrorf(ErrInvalidPattern, path, nil, "end without begin")
	}

	g := &group{}
	r := ref{kind: refGroup, group: len(c.groups)}
	c.groups = append(c.groups, g)
	if registered != nil {
		registered(r)
	}
	links, err := c.compileList(raw.Patterns, path+".patterns")
	if err != nil {
		return ref{}, err
	}
	g.links = links
	return r, nil
}

func (c *compiler) newRule(kind Kind, raw *RawRule, path string, registered func(ref)) *Rule {
	rule := &Rule{
		ID:          RuleID(len(c.rules)),
		Kind:        kind,
		Path:        path,
		Name:        NewScopeName(raw.Name),
		ContentName: NewScopeName(raw.ContentName),
	}
	c.rules = append(c.rules, rule)
	if registered != nil {
		registered(ref{kind: refRule, rule: rule.ID})
	}
	return rule
}

func (c *compiler) compilePattern(source, path string) (*pattern.Pattern, error) {
	p, err := pattern.Compile(source, c.opts.matchTimeout)
	if err != nil {
		return nil, compileErrorf(ErrInvalidPattern, path, err, "%q", source)
	}
	return p, nil
}

func (c *compiler) compileMatch(raw *RawRule, path string, registered func(ref)) (ref, error) {
	rule := c.newRule(KindMatch, raw, path, registered)

	var err error
	if rule.Pattern, err = c.compilePattern(raw.Match, path+".match"); err != nil {
		return ref{}, err
	}
	if rule.Captures, err = c.compileCaptures(raw.Captures, path+".captures"); err != nil {
		return ref{}, err
	}
	return ref{kind: refRule, rule: rule.ID}, nil
}

func (c *compiler) compileBeginEnd(raw *RawRule, path string, registered func(ref)) (ref, error) {
	rule := c.newRule(KindBeginEnd, raw, path, registered)
	rule.ApplyEndPatternLast = bool(raw.ApplyEndPatternLast)

	var err error
	if rule.Pattern, err = c.compilePattern(raw.Begin, path+".begin"); err != nil {
		return ref{}, err
	}

	if pattern.HasBackReferences(raw.End) {
		rule.EndTemplate, err = pattern.NewTemplate(raw.End, c.opts.matchTimeout)
		if err != nil {
			return ref{}, compileErrorf(ErrInvalidPattern, path+".end", err, "%q", raw.End)
		}
	} else if rule.End, err = c.compilePattern(raw.End, path+".end"); err != nil {
		return ref{}, err
	}

	beginCaptures, endCaptures := raw.BeginCaptures, raw.EndCaptures
	if beginCaptures == nil {
		beginCaptures = raw.Captures
	}
	if endCaptures == nil {
		endCaptures = raw.Captures
	}
	if rule.Captures, err = c.compileCaptures(beginCaptures, path+".beginCaptures"); err != nil {
		return ref{}, err
	}
	if rule.EndCaptures, err = c.compileCaptures(endCaptures, path+".endCaptures"); err != nil {
		return ref{}, err
	}

	if err := c.deferList(raw.Patterns, path+".patterns", &rule.Children); err != nil {
		return ref{}, err
	}
	return ref{kind: refRule, rule: rule.ID}, nil
}

// compileCaptures converts capture keys into a slice indexed by group number,
// leaving unassigned groups nil. Non-numeric keys refer to named groups.
func (c *compiler) compileCaptures(raws map[string]*RawRule, path string) (Captures, error) {
	var caps Captures
	if len(raws) == 0 {
		return caps, nil
	}

	keys := make([]string, 0, len(raws))
	for key := range raws {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := raws[key]
		if raw == nil {
			continue
		}
		capture := &Capture{Name: NewScopeName(raw.Name)}
		if len(raw.Patterns) > 0 {
			if err := c.deferList(raw.Patterns, path+"."+key+".patterns", &capture.Rules); err != nil {
				return caps, err
			}
		}

		n, err := strconv.Atoi(key)
		if err != nil {
			if caps.Named == nil {
				caps.Named = make(map[string]*Capture)
			}
			caps.Named[key] = capture
			continue
		}
		if n < 0 {
			return caps, compileErrorf(ErrInvalidPattern, path, nil, "negative capture index %d", n)
		}
		for len(caps.Indexed) <= n {
			caps.Indexed = append(caps.Indexed, nil)
		}
		caps.Indexed[n] = capture
	}
	return caps, nil
}
