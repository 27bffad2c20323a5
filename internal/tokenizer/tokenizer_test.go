package tokenizer

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/tmscope/internal/grammar"
)

func compile(t *testing.T, src string, opts ...grammar.Option) *grammar.Grammar {
	t.Helper()
	doc, err := grammar.Parse([]byte(src), grammar.FormatJSON)
	require.NoError(t, err)
	g, err := grammar.Compile(doc, opts...)
	require.NoError(t, err)
	return g
}

type span struct {
	start, end int
	scopes     string
}

func spans(tokens []Token) []span {
	out := make([]span, len(tokens))
	for i, tok := range tokens {
		out[i] = span{tok.Start, tok.End, strings.Join(tok.Scopes, " ")}
	}
	return out
}

func assertCoverage(t *testing.T, line string, tokens []Token) {
	t.Helper()
	n := utf8.RuneCountInString(line)
	if n == 0 {
		assert.Empty(t, tokens)
		return
	}
	require.NotEmpty(t, tokens)
	assert.Equal(t, 0, tokens[0].Start, "first token must start the line")
	for i, tok := range tokens {
		assert.Less(t, tok.Start, tok.End, "token %d is empty", i)
		if i > 0 {
			assert.Equal(t, tokens[i-1].End, tok.Start, "token %d is not contiguous", i)
		}
	}
	assert.Equal(t, n, tokens[len(tokens)-1].End, "last token must end the line")
}

func TestTokenizeLineNumbers(t *testing.T) {
	g := compile(t, `{"scopeName": "root", "patterns": [{"match": "\\b\\d+\\b", "name": "number"}]}`)

	res := TokenizeLine(g, "a 12 b", LineState{})
	assertCoverage(t, "a 12 b", res.Tokens)
	assert.Equal(t, []span{
		{0, 2, "root"},
		{2, 4, "root number"},
		{4, 5, "root"},
		{5, 6, "root"},
	}, spans(res.Tokens))
	assert.Equal(t, 0, res.EndState.Depth())
	assert.Empty(t, res.Anomalies)
}

func TestTokenizeLineQuotedRegion(t *testing.T) {
	g := compile(t, `{"scopeName": "root", "patterns": [{"begin": "\"", "end": "\"", "name": "string"}]}`)

	line := `ab"cd"ef`
	res := TokenizeLine(g, line, LineState{})
	assertCoverage(t, line, res.Tokens)
	assert.Equal(t, []span{
		{0, 2, "root"},
		{2, 3, "root string"},
		{3, 5, "root string"},
		{5, 6, "root string"},
		{6, 7, "root"},
		{7, 8, "root"},
	}, spans(res.Tokens))
	assert.Equal(t, 0, res.EndState.Depth())
}

func TestTokenizeBackReferencedEnd(t *testing.T) {
	g := compile(t, `{
		"scopeName": "root",
		"patterns": [{"include": "#heredoc"}],
		"repository": {
			"heredoc": {
				"begin": "<<(\\w+)",
				"end": "\\1>>",
				"name": "string.heredoc.$1",
				"patterns": [{"include": "#heredoc"}]
			}
		}
	}`)

	tok := New(g)
	lines := []string{"<<A", "<<B", "A>>", "B>>", "A>>"}
	wantDepth := []int{1, 2, 2, 1, 0}

	var state LineState
	for i, line := range lines {
		res := tok.TokenizeLine(line, state)
		assertCoverage(t, line, res.Tokens)
		assert.Equal(t, wantDepth[i], res.EndState.Depth(), "depth after line %d", i)
		state = res.EndState
	}

	res := tok.TokenizeLine("<<A <<B A>> B>> A>>", LineState{})
	assert.Equal(t, 0, res.EndState.Depth())

	res = tok.TokenizeLine("<<A <<B A>>", LineState{})
	frames := res.EndState.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "A>>", frames[0].EndSource)
	assert.Equal(t, "B>>", frames[1].EndSource)
	assert.Equal(t, []string{"string.heredoc.B"}, frames[1].NameScopes)
	assert.Equal(t, []string{"root", "string.heredoc.A", "string.heredoc.B"}, frames[1].Scopes())
}

func TestTokenizeCaptures(t *testing.T) {
	g := compile(t, `{
		"scopeName": "s",
		"patterns": [{
			"match": "(\\w+)\\s*(=)\\s*(\\d+)",
			"name": "meta.assign",
			"captures": {
				"1": {"name": "variable"},
				"2": {"name": "keyword.operator"},
				"3": {"patterns": [{"match": "\\d", "name": "digit"}]}
			}
		}]
	}`)

	res := TokenizeLine(g, "x = 12", LineState{})
	assertCoverage(t, "x = 12", res.Tokens)
	assert.Equal(t, []span{
		{0, 1, "s meta.assign variable"},
		{1, 2, "s meta.assign"},
		{2, 3, "s meta.assign keyword.operator"},
		{3, 4, "s meta.assign"},
		{4, 5, "s meta.assign digit"},
		{5, 6, "s meta.assign digit"},
	}, spans(res.Tokens))
}

func TestTokenizeNestedCaptures(t *testing.T) {
	g := compile(t, `{
		"scopeName": "s",
		"patterns": [{
			"match": "((a)b)c",
			"captures": {
				"0": {"name": "whole"},
				"1": {"name": "outer"},
				"2": {"name": "inner"}
			}
		}]
	}`)

	res := TokenizeLine(g, "abc", LineState{})
	assert.Equal(t, []span{
		{0, 1, "s whole outer inner"},
		{1, 2, "s whole outer"},
		{2, 3, "s whole"},
	}, spans(res.Tokens))
}

func TestTokenizeNamedCapture(t *testing.T) {
	g := compile(t, `{
		"scopeName": "s",
		"patterns": [{"match": "(?<key>\\w+)=", "captures": {"key": {"name": "variable.key"}}}]
	}`)

	res := TokenizeLine(g, "ab=", LineState{})
	assert.Equal(t, []span{
		{0, 2, "s variable.key"},
		{2, 3, "s"},
	}, spans(res.Tokens))
}

func TestTokenizeContentName(t *testing.T) {
	g := compile(t, `{
		"scopeName": "s",
		"patterns": [{
			"begin": "\\(",
			"end": "\\)",
			"name": "meta.paren",
			"contentName": "inner",
			"beginCaptures": {"0": {"name": "punct.open"}},
			"endCaptures": {"0": {"name": "punct.close"}}
		}]
	}`)

	res := TokenizeLine(g, "a(b)c", LineState{})
	assertCoverage(t, "a(b)c", res.Tokens)
	assert.Equal(t, []span{
		{0, 1, "s"},
		{1, 2, "s meta.paren punct.open"},
		{2, 3, "s meta.paren inner"},
		{3, 4, "s meta.paren punct.close"},
		{4, 5, "s"},
	}, spans(res.Tokens))
}

func TestTokenizeEndWinsTies(t *testing.T) {
	g := compile(t, `{
		"scopeName": "s",
		"patterns": [{
			"begin": "<",
			"end": "x",
			"name": "region",
			"patterns": [{"match": "x", "name": "child"}]
		}]
	}`)

	res := TokenizeLine(g, "<x", LineState{})
	assert.Equal(t, []span{
		{0, 1, "s region"},
		{1, 2, "s region"},
	}, spans(res.Tokens))
	assert.Equal(t, 0, res.EndState.Depth())
}

func TestTokenizeApplyEndPatternLast(t *testing.T) {
	src := func(last bool) string {
		flag := "false"
		if last {
			flag = "true"
		}
		return `{
			"scopeName": "s",
			"patterns": [{
				"begin": "\\[",
				"end": "\\]",
				"name": "list",
				"applyEndPatternLast": ` + flag + `,
				"patterns": [{"match": "\\]\\]", "name": "double"}]
			}]
		}`
	}

	res := TokenizeLine(compile(t, src(false)), "[a]]", LineState{})
	assert.Equal(t, []span{
		{0, 1, "s list"},
		{1, 2, "s list"},
		{2, 3, "s list"},
		{3, 4, "s"},
	}, spans(res.Tokens))

	res = TokenizeLine(compile(t, src(true)), "[a]]]", LineState{})
	assert.Equal(t, []span{
		{0, 1, "s list"},
		{1, 2, "s list"},
		{2, 4, "s list double"},
		{4, 5, "s list"},
	}, spans(res.Tokens))
	assert.Equal(t, 0, res.EndState.Depth())
}

func TestTokenizeScopeNameFromCaptures(t *testing.T) {
	g := compile(t, `{
		"scopeName": "s",
		"patterns": [
			{"match": "\\b(if|else)\\b", "name": "keyword.control.$1"},
			{"match": "\\bmodule\\b", "name": "keyword.other.module storage.type.module"}
		]
	}`)

	res := TokenizeLine(g, "if module", LineState{})
	assert.Equal(t, []span{
		{0, 2, "s keyword.control.if"},
		{2, 3, "s"},
		{3, 9, "s keyword.other.module storage.type.module"},
	}, spans(res.Tokens))
}

func TestTokenizeRegionAcrossLines(t *testing.T) {
	g := compile(t, `{
		"scopeName": "s",
		"patterns": [{"begin": "/\\*", "end": "\\*/", "name": "comment.block"}]
	}`)

	results, err := TokenizeDocument(context.Background(), g, []string{"a /* b", "c", "", "d */ e"})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, 1, results[0].EndState.Depth())
	assert.Equal(t, []span{{0, 1, "s comment.block"}}, spans(results[1].Tokens))
	assert.Empty(t, results[2].Tokens)
	assert.Equal(t, 1, results[2].EndState.Depth())
	assert.Equal(t, []span{
		{0, 2, "s comment.block"},
		{2, 4, "s comment.block"},
		{4, 5, "s"},
		{5, 6, "s"},
	}, spans(results[3].Tokens))
	assert.Equal(t, 0, results[3].EndState.Depth())
}

func TestTokenizeEndOfLineAnchor(t *testing.T) {
	g := compile(t, `{
		"scopeName": "s",
		"patterns": [{
			"begin": "--",
			"end": "$",
			"name": "comment.line",
			"patterns": [{"match": "\\w+", "name": "word"}]
		}]
	}`)

	res := TokenizeLine(g, "x -- hi", LineState{})
	assertCoverage(t, "x -- hi", res.Tokens)
	assert.Equal(t, 0, res.EndState.Depth(), "a region ending at $ closes at the end of the line")
	assert.Equal(t, "word", res.Tokens[len(res.Tokens)-1].Innermost())
}

func TestTokenizeUnterminatedRegionIsNotAnError(t *testing.T) {
	g := compile(t, `{"scopeName": "s", "patterns": [{"begin": "\"", "end": "\"", "name": "string"}]}`)

	results, err := TokenizeDocument(context.Background(), g, []string{`x = "abc`, `def`})
	require.NoError(t, err)
	assert.Equal(t, 1, results[1].EndState.Depth())
	assert.Equal(t, []span{
		{0, 1, "s string"},
		{1, 2, "s string"},
		{2, 3, "s string"},
	}, spans(results[1].Tokens))
}

func TestTokenizeTerminates(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line string
	}{
		{
			name: "zero width begin and end",
			src:  `{"scopeName": "s", "patterns": [{"begin": "(?=x)", "end": "(?=x)", "name": "r"}]}`,
			line: "axbx",
		},
		{
			name: "empty patterns",
			src:  `{"scopeName": "s", "patterns": [{"begin": "", "end": "", "name": "r"}]}`,
			line: "abc",
		},
		{
			name: "zero width recursive push",
			src: `{"scopeName": "s", "patterns": [{"include": "#r"}],
				"repository": {"r": {"begin": "(?=a)", "end": "b", "name": "r", "patterns": [{"include": "#r"}]}}}`,
			line: "aab",
		},
		{
			name: "zero width match",
			src:  `{"scopeName": "s", "patterns": [{"match": "(?=a)", "name": "m"}]}`,
			line: "aaa",
		},
		{
			name: "self including captures",
			src: `{"scopeName": "s", "patterns": [{"include": "#m"}],
				"repository": {"m": {"match": "a+", "name": "m", "captures": {"0": {"patterns": [{"include": "#m"}]}}}}}`,
			line: "aaa b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := compile(t, tt.src)

			done := make(chan LineResult, 1)
			go func() { done <- TokenizeLine(g, tt.line, LineState{}) }()

			select {
			case res := <-done:
				assertCoverage(t, tt.line, res.Tokens)
			case <-time.After(5 * time.Second):
				t.Fatal("tokenization did not terminate")
			}
		})
	}
}

func TestTokenizeZeroWidthLoopIsReported(t *testing.T) {
	g := compile(t, `{"scopeName": "s", "patterns": [{"begin": "(?=x)", "end": "(?=x)", "name": "r"}]}`)

	res := TokenizeLine(g, "x", LineState{})
	require.NotEmpty(t, res.Anomalies)
	assert.Equal(t, AnomalyZeroWidthLoop, res.Anomalies[0].Kind)
	assert.Equal(t, 0, res.Anomalies[0].Offset)
	assert.Equal(t, []span{{0, 1, "s"}}, spans(res.Tokens))
}

func TestTokenizeMatchTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timeout test in short mode")
	}
	g := compile(t,
		`{"scopeName": "s", "patterns": [{"match": "^(a+)+$", "name": "evil"}, {"match": "!", "name": "bang"}]}`,
		grammar.WithMatchTimeout(20*time.Millisecond))

	line := strings.Repeat("a", 40) + "!"
	res := TokenizeLine(g, line, LineState{})
	assertCoverage(t, line, res.Tokens)

	var timeouts int
	for _, a := range res.Anomalies {
		if a.Kind == AnomalyTimeout {
			timeouts++
		}
	}
	assert.Positive(t, timeouts)
	assert.Equal(t, "bang", res.Tokens[len(res.Tokens)-1].Innermost())
}

func TestTokenizeDeterministic(t *testing.T) {
	g := compile(t, sampleGrammar)
	tok := New(g)

	var state LineState
	for _, line := range sampleLines {
		a := tok.TokenizeLine(line, state)
		b := tok.TokenizeLine(line, state)
		assert.Equal(t, a.Tokens, b.Tokens)
		assert.True(t, a.EndState.Equal(b.EndState))
		assertCoverage(t, line, a.Tokens)
		state = a.EndState
	}
}

func TestTokenizeDocumentCancelled(t *testing.T) {
	g := compile(t, `{"scopeName": "s", "patterns": []}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := TokenizeDocument(ctx, g, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestTokenizeUnicodeOffsets(t *testing.T) {
	g := compile(t, `{"scopeName": "s", "patterns": [{"match": "\\d+", "name": "n"}]}`)

	line := "é 42 ü"
	res := TokenizeLine(g, line, LineState{})
	assertCoverage(t, line, res.Tokens)
	assert.Equal(t, span{2, 4, "s n"}, spans(res.Tokens)[1])
}
