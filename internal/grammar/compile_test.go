package grammar

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse([]byte(src), FormatJSON)
	require.NoError(t, err)
	return doc
}

func TestCompileResolvesIncludes(t *testing.T) {
	doc := mustParse(t, `{
		"name": "Test",
		"scopeName": "source.test",
		"patterns": [
			{"include": "#keywords"},
			{"match": "\\d+", "name": "constant.numeric"}
		],
		"repository": {
			"keywords": {
				"patterns": [
					{"match": "\\bif\\b", "name": "keyword.control.if"},
					{"include": "#more"}
				]
			},
			"more": {"match": "\\belse\\b", "name": "keyword.control.else"}
		}
	}`)

	g, err := Compile(doc)
	require.NoError(t, err)

	assert.Equal(t, "source.test", g.ScopeName())
	assert.Equal(t, "Test", g.Name())

	root := g.Candidates()
	require.Len(t, root, 3)
	assert.Equal(t, `\bif\b`, g.Rule(root[0]).Pattern.String())
	assert.Equal(t, `\belse\b`, g.Rule(root[1]).Pattern.String())
	assert.Equal(t, `\d+`, g.Rule(root[2]).Pattern.String())

	for _, id := range root {
		assert.Equal(t, KindMatch, g.Rule(id).Kind)
	}

	ids, ok := g.Repository("keywords")
	require.True(t, ok)
	assert.Len(t, ids, 2)
}

func TestCompileSelfReferenceIsNotUnrolled(t *testing.T) {
	doc := mustParse(t, `{
		"scopeName": "source.test",
		"patterns": [{"include": "#parens"}],
		"repository": {
			"parens": {
				"begin": "\\(",
				"end": "\\)",
				"name": "meta.parens",
				"patterns": [{"include": "#parens"}, {"include": "$self"}]
			}
		}
	}`)

	g, err := Compile(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, g.RuleCount())

	parens := g.Rule(g.Candidates()[0])
	assert.Equal(t, KindBeginEnd, parens.Kind)
	assert.Equal(t, []RuleID{parens.ID, parens.ID}, parens.Children)
}

func TestCompileGroupCycle(t *testing.T) {
	doc := mustParse(t, `{
		"scopeName": "source.test",
		"patterns": [{"include": "#a"}],
		"repository": {
			"a": {"patterns": [{"match": "a"}, {"include": "#b"}]},
			"b": {"patterns": [{"match": "b"}, {"include": "#a"}]}
		}
	}`)

	g, err := Compile(doc)
	require.NoError(t, err)
	assert.Len(t, g.Candidates(), 2)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantKind error
		wantRule string
	}{
		{
			name:     "unresolved include",
			src:      `{"patterns": [{"include": "#missing"}]}`,
			wantKind: ErrUnresolvedInclude,
			wantRule: "patterns[0]",
		},
		{
			name:     "invalid pattern names the rule",
			src:      `{"repository": {"comment": {"match": "(unclosed"}}}`,
			wantKind: ErrInvalidPattern,
			wantRule: "repository.comment.match",
		},
		{
			name:     "invalid end pattern",
			src:      `{"patterns": [{"begin": "a", "end": "[b"}]}`,
			wantKind: ErrInvalidPattern,
			wantRule: "patterns[0].end",
		},
		{
			name:     "invalid end template",
			src:      `{"patterns": [{"begin": "(a)", "end": "\\1("}]}`,
			wantKind: ErrInvalidPattern,
			wantRule: "patterns[0].end",
		},
		{
			name:     "begin without end",
			src:      `{"patterns": [{"begin": "a"}]}`,
			wantKind: ErrInvalidPattern,
			wantRule: "patterns[0]",
		},
		{
			name:     "cross grammar include",
			src:      `{"patterns": [{"include": "source.js"}]}`,
			wantKind: ErrUnsupportedFeature,
			wantRule: "patterns[0]",
		},
		{
			name:     "while rule",
			src:      `{"patterns": [{"begin": "a", "while": "b"}]}`,
			wantKind: ErrUnsupportedFeature,
			wantRule: "patterns[0]",
		},
		{
			name:     "include chain without a rule",
			src:      `{"patterns": [{"include": "#a"}], "repository": {"a": {"include": "#b"}, "b": {"include": "#a"}}}`,
			wantKind: ErrCyclicInclude,
		},
		{
			name:     "invalid capture pattern",
			src:      `{"patterns": [{"match": "(a)", "captures": {"1": {"patterns": [{"match": "+"}]}}}]}`,
			wantKind: ErrInvalidPattern,
			wantRule: "patterns[0].captures.1.patterns[0].match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Compile(mustParse(t, tt.src))
			require.Error(t, err)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, tt.wantKind)

			var cerr *CompileError
			require.True(t, errors.As(err, &cerr))
			if tt.wantRule != "" {
				assert.Equal(t, tt.wantRule, cerr.Rule)
			}
		})
	}
}

func TestCompileBeginEnd(t *testing.T) {
	doc := mustParse(t, `{
		"scopeName": "source.test",
		"patterns": [
			{
				"begin": "<<(\\w+)",
				"end": "\\1>>",
				"name": "string.heredoc",
				"contentName": "string.content",
				"captures": {"1": {"name": "entity.delimiter"}},
				"applyEndPatternLast": 1
			},
			{
				"begin": "\"",
				"end": "\"",
				"beginCaptures": {"0": {"name": "punctuation.begin"}},
				"endCaptures": {"0": {"name": "punctuation.end"}}
			}
		]
	}`)

	g, err := Compile(doc)
	require.NoError(t, err)
	require.Len(t, g.Candidates(), 2)

	heredoc := g.Rule(g.Candidates()[0])
	assert.Nil(t, heredoc.End)
	require.NotNil(t, heredoc.EndTemplate)
	assert.Equal(t, `\1>>`, heredoc.EndSource())
	assert.True(t, heredoc.ApplyEndPatternLast)
	assert.Equal(t, "string.content", heredoc.ContentName.String())
	require.NotNil(t, heredoc.Captures.At(1))
	require.NotNil(t, heredoc.EndCaptures.At(1))
	assert.Equal(t, "entity.delimiter", heredoc.EndCaptures.At(1).Name.String())

	str := g.Rule(g.Candidates()[1])
	assert.NotNil(t, str.End)
	assert.Nil(t, str.EndTemplate)
	assert.False(t, str.ApplyEndPatternLast)
	assert.Equal(t, "punctuation.begin", str.Captures.At(0).Name.String())
	assert.Equal(t, "punctuation.end", str.EndCaptures.At(0).Name.String())
}

func TestCompileCaptures(t *testing.T) {
	doc := mustParse(t, `{
		"patterns": [{
			"match": "(?<key>\\w+)\\s*(=)\\s*(\\w+)",
			"captures": {
				"key": {"name": "variable.key"},
				"2": {"name": "keyword.operator"},
				"3": {"patterns": [{"include": "#value"}]}
			}
		}],
		"repository": {"value": {"match": "\\d+", "name": "constant.numeric"}}
	}`)

	g, err := Compile(doc)
	require.NoError(t, err)

	rule := g.Rule(g.Candidates()[0])
	assert.Nil(t, rule.Captures.At(0))
	assert.Nil(t, rule.Captures.At(1))
	assert.Equal(t, "keyword.operator", rule.Captures.At(2).Name.String())
	assert.Len(t, rule.Captures.At(3).Rules, 1)
	assert.Equal(t, "variable.key", rule.Captures.Named["key"].Name.String())
}

func TestCompileDisabledRule(t *testing.T) {
	doc := mustParse(t, `{"patterns": [{"match": "a", "disabled": 1}, {"match": "b"}]}`)

	g, err := Compile(doc)
	require.NoError(t, err)
	require.Len(t, g.Candidates(), 1)
	assert.Equal(t, "b", g.Rule(g.Candidates()[0]).Pattern.String())
}

func TestParseYAML(t *testing.T) {
	src := `
name: Test
scopeName: source.test
fileTypes: [tst]
firstLineMatch: '^#!.*\btst\b'
patterns:
  - include: '#comment'
repository:
  comment:
    begin: '--'
    end: '$'
    name: comment.line
    applyEndPatternLast: true
    beginCaptures:
      "0": {name: punctuation.definition.comment}
`
	doc, err := Parse([]byte(src), FormatYAML)
	require.NoError(t, err)

	g, err := Compile(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"tst"}, g.FileTypes())
	assert.True(t, g.MatchesFirstLine("#!/usr/bin/env tst"))
	assert.False(t, g.MatchesFirstLine("plain text"))

	comment := g.Rule(g.Candidates()[0])
	assert.True(t, comment.ApplyEndPatternLast)
	assert.Equal(t, "punctuation.definition.comment", comment.Captures.At(0).Name.String())
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("austral.tmLanguage.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = FormatOf("austral.tmLanguage.YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = FormatOf("austral.plist")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.tmLanguage.json")
	err := os.WriteFile(path, []byte(`{"scopeName": "source.test", "patterns": [{"match": "x"}]}`), 0o644)
	require.NoError(t, err)

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "source.test", g.ScopeName())

	bad := filepath.Join(dir, "bad.json")
	err = os.WriteFile(bad, []byte(`{"patterns": [{"include": "#nope"}]}`), 0o644)
	require.NoError(t, err)

	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrUnresolvedInclude)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
