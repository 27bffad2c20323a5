package tokenizer

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/tmscope/internal/grammar"
	"github.com/gnoswap-labs/tmscope/internal/pattern"
)

const (
	// maxZeroWidthSteps bounds consecutive empty matches at one offset.
	maxZeroWidthSteps = 32
	// maxCaptureDepth bounds nested tokenization inside captures.
	maxCaptureDepth = 16
)

// Tokenizer turns lines into scoped tokens with one compiled grammar. It
// holds no per-document state and is safe for concurrent use.
type Tokenizer struct {
	grammar *grammar.Grammar
	logger  *zap.Logger
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithLogger sets the logger anomalies are reported to, at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tokenizer) { t.logger = logger }
}

// New returns a Tokenizer for g.
func New(g *grammar.Grammar, opts ...Option) *Tokenizer {
	t := &Tokenizer{grammar: g, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Grammar returns the grammar the tokenizer applies.
func (t *Tokenizer) Grammar() *grammar.Grammar {
	return t.grammar
}

// TokenizeLine tokenizes line, which must not contain a line break, starting
// from the state left by the previous line. The tokens cover the whole line
// without gaps or overlaps.
//
// Patterns see the line followed by "\n", so that end patterns such as "$"
// or "\n" can close a region at the end of the line.
func (t *Tokenizer) TokenizeLine(line string, state LineState) LineResult {
	text := append([]rune(line), '\n')
	run := &lineRun{
		tokenizer: t,
		limit:     len(text) - 1,
	}

	stack := NewScopeStack(t.grammar, state)
	run.scan(stack, text, 0, 0)
	run.produce(stack.ScopeChain(), run.limit)

	return LineResult{
		Tokens:    run.tokens,
		EndState:  stack.Snapshot(),
		Anomalies: run.anomalies,
	}
}

// TokenizeLine tokenizes one line with g.
func TokenizeLine(g *grammar.Grammar, line string, state LineState) LineResult {
	return New(g).TokenizeLine(line, state)
}

// TokenizeDocument tokenizes lines from the empty state. It stops between
// lines when ctx is done and returns the lines finished so far.
func (t *Tokenizer) TokenizeDocument(ctx context.Context, lines []string) ([]LineResult, error) {
	results := make([]LineResult, 0, len(lines))
	var state LineState
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := t.TokenizeLine(line, state)
		results = append(results, res)
		state = res.EndState
	}
	return results, nil
}

// TokenizeDocument tokenizes lines with g.
func TokenizeDocument(ctx context.Context, g *grammar.Grammar, lines []string) ([]LineResult, error) {
	return New(g).TokenizeDocument(ctx, lines)
}

// lineRun accumulates the tokens of one line. Tokens are produced strictly
// left to right: produce closes the range from the last produced offset.
type lineRun struct {
	tokenizer *Tokenizer
	limit     int
	last      int
	tokens    []Token
	anomalies []Anomaly
}

func (r *lineRun) produce(scopes []string, end int) {
	if end > r.limit {
		end = r.limit
	}
	if end <= r.last {
		return
	}
	r.tokens = append(r.tokens, Token{Start: r.last, End: end, Scopes: scopes})
	r.last = end
}

func (r *lineRun) anomaly(kind AnomalyKind, offset int, err error) {
	r.anomalies = append(r.anomalies, Anomaly{Kind: kind, Offset: offset, Err: err})
	r.tokenizer.logger.Debug("tokenizer anomaly",
		zap.Stringer("kind", kind),
		zap.Int("offset", offset),
		zap.Error(err))
}

// scan tokenizes text from offset to its end with stack. depth counts the
// captures the scan is nested in.
func (r *lineRun) scan(stack *ScopeStack, text []rune, offset, depth int) {
	g := r.tokenizer.grammar

	guardOffset := -1
	var guard []LineState

	for offset < len(text) {
		end, endLast, rules := stack.active()
		res, err := findMatch(g, text, offset, end, endLast, rules)
		if err != nil {
			r.anomaly(AnomalyTimeout, offset, err)
			res = nil
		}
		if res == nil {
			r.produce(stack.ScopeChain(), offset+1)
			offset++
			continue
		}

		m := res.match
		r.produce(stack.ScopeChain(), m.Start)

		empty := m.End == offset
		if empty {
			if guardOffset != offset {
				guard = guard[:0]
				guardOffset = offset
			}
			guard = append(guard, stack.Snapshot())
		}

		if !r.apply(stack, text, res, depth) {
			r.produce(stack.ScopeChain(), m.Start+1)
			offset = m.Start + 1
			continue
		}

		if empty && (seen(guard, stack.Snapshot()) || len(guard) > maxZeroWidthSteps) {
			stack.Restore(guard[0])
			r.anomaly(AnomalyZeroWidthLoop, offset, nil)
			r.produce(stack.ScopeChain(), offset+1)
			offset++
			continue
		}
		offset = m.End
	}
}

// apply performs the winning candidate: it produces the tokens of the match
// and pushes or pops a frame. It returns false when the match has to be
// discarded.
func (r *lineRun) apply(stack *ScopeStack, text []rune, res *result, depth int) bool {
	g := r.tokenizer.grammar
	m := res.match
	captured := m.Texts()

	if res.isEnd() {
		frame, err := stack.Pop()
		if err != nil {
			r.anomaly(AnomalyStackUnderflow, m.Start, err)
			return false
		}
		r.captures(frame.outer, m, g.Rule(frame.Rule).EndCaptures, text, depth)
		return true
	}

	rule := res.rule
	scopes := concat(stack.ScopeChain(), rule.Name.Resolve(captured))
	r.captures(scopes, m, rule.Captures, text, depth)

	if rule.Kind == grammar.KindBeginEnd {
		if err := stack.Push(rule, captured); err != nil {
			r.anomaly(AnomalyPush, m.Start, err)
		}
	}
	return true
}

type capturedGroup struct {
	group   pattern.Group
	index   int
	capture *grammar.Capture
}

type openCapture struct {
	end    int
	scopes []string
}

// captures produces the tokens of match m, whose own scopes are scopes,
// applying the scopes and rules of caps to its groups. Groups nest: a group
// inside another group inherits the outer group's scopes.
func (r *lineRun) captures(scopes []string, m *pattern.Match, caps grammar.Captures, text []rune, depth int) {
	if caps.Empty() {
		r.produce(scopes, m.End)
		return
	}

	captured := m.Texts()
	groups := make([]capturedGroup, 0, len(caps.Indexed)+len(caps.Named))
	for i, c := range caps.Indexed {
		if c != nil {
			groups = append(groups, capturedGroup{group: m.Group(i), index: i, capture: c})
		}
	}
	for name, c := range caps.Named {
		if i, ok := m.Index(name); ok {
			groups = append(groups, capturedGroup{group: m.Group(i), index: i, capture: c})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].index < groups[j].index })

	var open []openCapture
	current := func() []string {
		if len(open) == 0 {
			return scopes
		}
		return open[len(open)-1].scopes
	}

	for _, cg := range groups {
		start, end := cg.group.Start, cg.group.End
		if !cg.group.Matched() || start == end || start >= m.End {
			continue
		}
		if end > m.End {
			end = m.End
		}

		for len(open) > 0 && open[len(open)-1].end <= start {
			top := open[len(open)-1]
			r.produce(top.scopes, top.end)
			open = open[:len(open)-1]
		}

		r.produce(current(), start)
		capScopes := concat(current(), cg.capture.Name.Resolve(captured))

		if len(cg.capture.Rules) > 0 && depth < maxCaptureDepth {
			sub := newCaptureStack(r.tokenizer.grammar, capScopes, cg.capture.Rules)
			r.scan(sub, text[:end], start, depth+1)
			r.produce(capScopes, end)
			continue
		}
		open = append(open, openCapture{end: end, scopes: capScopes})
	}

	for len(open) > 0 {
		top := open[len(open)-1]
		r.produce(top.scopes, top.end)
		open = open[:len(open)-1]
	}
	r.produce(scopes, m.End)
}

func seen(states []LineState, s LineState) bool {
	for _, st := range states {
		if st.Equal(s) {
			return true
		}
	}
	return false
}
