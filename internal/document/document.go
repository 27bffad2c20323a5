package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/tmscope/internal/tokenizer"
)

// ErrInvalidEdit is returned for an edit whose range does not fit the
// document or whose lines contain a line break.
var ErrInvalidEdit = errors.New("invalid edit")

// Edit replaces the lines [Start, End) with Lines. Start == End inserts,
// an empty Lines deletes.
type Edit struct {
	Start int
	End   int
	Lines []string
}

// EditResult describes the re-tokenization an edit caused. FirstLine and
// LastLine are the inclusive range of re-tokenized lines; both are -1 when
// nothing was re-tokenized.
type EditResult struct {
	Retokenized  int
	StoppedEarly bool
	FirstLine    int
	LastLine     int
}

type entry struct {
	result tokenizer.LineResult
	// known is false for lines that have never been tokenized.
	known bool
}

// Document is a sequence of lines kept tokenized across edits. Its methods
// are safe for concurrent use; calls on one document are serialized.
type Document struct {
	mu        sync.Mutex
	tokenizer *tokenizer.Tokenizer
	logger    *zap.Logger

	lines   []string
	entries []entry
	// stale is the first line whose result may not follow from the end state
	// of the line before it. It equals len(lines) when everything is current.
	stale int
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger re-tokenization passes are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Document) { d.logger = logger }
}

// New returns a document holding lines. Nothing is tokenized until
// Tokenize, Flush or Edit is called.
func New(tok *tokenizer.Tokenizer, lines []string, opts ...Option) *Document {
	d := &Document{
		tokenizer: tok,
		logger:    zap.NewNop(),
		lines:     append([]string(nil), lines...),
		entries:   make([]entry, len(lines)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewFromText returns a document holding the lines of text. A trailing "\r"
// is dropped from every line.
func NewFromText(tok *tokenizer.Tokenizer, text string, opts ...Option) *Document {
	return New(tok, SplitLines(text), opts...)
}

// SplitLines splits text on "\n". An empty text is one empty line.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Tokenize tokenizes the whole document from the first line. When ctx is
// done between two lines, the lines finished so far are kept and the next
// Flush or Edit resumes after them.
func (d *Document) Tokenize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stale = 0
	_, err := d.run(ctx, 0, len(d.lines))
	return err
}

// Flush finishes a pass that was interrupted by a cancelled context.
func (d *Document) Flush(ctx context.Context) (EditResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.run(ctx, d.stale, d.stale)
}

// Edit applies e and re-tokenizes the lines it affects. Re-tokenization
// starts at the first changed line, or earlier if an interrupted pass left
// stale lines before it, and stops once a line at or past the last changed
// line ends in the same state as before the edit.
func (d *Document) Edit(ctx context.Context, e Edit) (EditResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e.Start < 0 || e.End < e.Start || e.End > len(d.lines) {
		return noResult(), fmt.Errorf("%w: range [%d,%d) in %d lines", ErrInvalidEdit, e.Start, e.End, len(d.lines))
	}
	for _, l := range e.Lines {
		if strings.ContainsAny(l, "\n\r") {
			return noResult(), fmt.Errorf("%w: line break in %q", ErrInvalidEdit, l)
		}
	}

	inserted := make([]entry, len(e.Lines))
	if n := len(inserted); n > 0 && e.End > e.Start {
		// the line after the edit was tokenized from the end state of the
		// last replaced line
		inserted[n-1] = d.entries[e.End-1]
	}

	delta := len(e.Lines) - (e.End - e.Start)
	d.lines = splice(d.lines, e.Start, e.End, e.Lines)
	d.entries = splice(d.entries, e.Start, e.End, inserted)

	switch {
	case d.stale >= e.End:
		d.stale += delta
	case d.stale > e.Start:
		d.stale = e.Start
	}

	lastChanged := e.Start + len(e.Lines) - 1
	return d.run(ctx, min(e.Start, d.stale), lastChanged)
}

// run re-tokenizes from line first. It may stop after a line at or past
// both lastChanged and the stale line whose end state matches the recorded
// one.
func (d *Document) run(ctx context.Context, first, lastChanged int) (EditResult, error) {
	res := noResult()
	stopAt := lastChanged
	if d.stale < len(d.lines) {
		stopAt = max(stopAt, d.stale)
	}

	for i := first; i < len(d.lines); i++ {
		if err := ctx.Err(); err != nil {
			d.stale = i
			d.logger.Debug("re-tokenization interrupted", zap.Int("line", i), zap.Error(err))
			return res, err
		}

		prev := d.entries[i]
		lr := d.tokenizer.TokenizeLine(d.lines[i], d.startState(i))
		d.entries[i] = entry{result: lr, known: true}

		if res.FirstLine < 0 {
			res.FirstLine = i
		}
		res.LastLine = i
		res.Retokenized++

		if i >= stopAt && prev.known && prev.result.EndState.Equal(lr.EndState) {
			res.StoppedEarly = i < len(d.lines)-1
			break
		}
	}

	d.stale = len(d.lines)
	if res.Retokenized > 0 {
		d.logger.Debug("re-tokenized",
			zap.Int("first", res.FirstLine),
			zap.Int("last", res.LastLine),
			zap.Bool("stoppedEarly", res.StoppedEarly))
	}
	return res, nil
}

func (d *Document) startState(i int) tokenizer.LineState {
	if i == 0 {
		return tokenizer.LineState{}
	}
	return d.entries[i-1].result.EndState
}

// Lines returns a copy of the document's lines.
func (d *Document) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines)
}

// Text returns the lines joined with "\n".
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.lines, "\n")
}

// Current reports whether every line is tokenized from the state the line
// before it ends in.
func (d *Document) Current() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stale >= len(d.lines)
}

// Tokens returns the tokens of line i. ok is false when i is out of range
// or the line has not been tokenized since the last interrupted pass.
func (d *Document) Tokens(i int) (tokens []tokenizer.Token, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.current(i) {
		return nil, false
	}
	return d.entries[i].result.Tokens, true
}

// State returns the state at the end of line i.
func (d *Document) State(i int) (state tokenizer.LineState, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.current(i) {
		return tokenizer.LineState{}, false
	}
	return d.entries[i].result.EndState, true
}

// Results returns the results of all lines, or false if any is stale.
func (d *Document) Results() ([]tokenizer.LineResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stale < len(d.lines) {
		return nil, false
	}
	out := make([]tokenizer.LineResult, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.result
	}
	return out, true
}

func (d *Document) current(i int) bool {
	return i >= 0 && i < len(d.lines) && i < d.stale && d.entries[i].known
}

func noResult() EditResult {
	return EditResult{FirstLine: -1, LastLine: -1}
}

func splice[T any](s []T, start, end int, repl []T) []T {
	out := make([]T, 0, len(s)-(end-start)+len(repl))
	out = append(out, s[:start]...)
	out = append(out, repl...)
	return append(out, s[end:]...)
}
