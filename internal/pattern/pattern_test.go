package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAt(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		text      string
		from      int
		wantMatch bool
		wantStart int
		wantEnd   int
	}{
		{
			name:      "match later in the line",
			source:    `\d+`,
			text:      "ab 123 cd",
			from:      0,
			wantMatch: true,
			wantStart: 3,
			wantEnd:   6,
		},
		{
			name:      "search starts at offset",
			source:    `\w+`,
			text:      "ab cd",
			from:      2,
			wantMatch: true,
			wantStart: 3,
			wantEnd:   5,
		},
		{
			name:      "lookbehind sees text before offset",
			source:    `(?<=record.+)is`,
			text:      "record Foo is",
			from:      7,
			wantMatch: true,
			wantStart: 11,
			wantEnd:   13,
		},
		{
			name:      "offsets are characters",
			source:    `b`,
			text:      "ééb",
			from:      0,
			wantMatch: true,
			wantStart: 2,
			wantEnd:   3,
		},
		{
			name:      "G anchors at the search position",
			source:    `\Gx`,
			text:      "axx",
			from:      1,
			wantMatch: true,
			wantStart: 1,
			wantEnd:   2,
		},
		{
			name:      "no match",
			source:    `z`,
			text:      "abc",
			from:      0,
			wantMatch: false,
		},
		{
			name:      "offset past the end",
			source:    `a`,
			text:      "a",
			from:      2,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.source, 0)
			require.NoError(t, err)

			m, err := p.FindAt([]rune(tt.text), tt.from)
			require.NoError(t, err)
			if !tt.wantMatch {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.wantStart, m.Start)
			assert.Equal(t, tt.wantEnd, m.End)
		})
	}
}

func TestFindAtGroups(t *testing.T) {
	p := MustCompile(`(a)|(?<word>b)(c)?`)

	m, err := p.FindAt([]rune("xb"), 0)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.False(t, m.Group(1).Matched())
	assert.False(t, m.Group(42).Matched())

	word, ok := m.Named("word")
	require.True(t, ok)
	assert.Equal(t, "b", word.Text)
	assert.Equal(t, 1, word.Start)
	assert.Equal(t, 2, word.End)

	_, ok = m.Named("missing")
	assert.False(t, ok)
}

func TestCompileInvalid(t *testing.T) {
	_, err := Compile(`(unclosed`, 0)
	assert.Error(t, err)
}

func TestTemplate(t *testing.T) {
	assert.True(t, HasBackReferences(`\1>>`))
	assert.False(t, HasBackReferences(`>>`))

	tmpl, err := NewTemplate(`\1>>`, 0)
	require.NoError(t, err)

	src, p, err := tmpl.Expand([]string{"<<EOF", "EOF"})
	require.NoError(t, err)
	assert.Equal(t, "EOF>>", src)

	m, err := p.FindAt([]rune("x EOF>> y"), 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Start)
}

func TestTemplateEscapesCapturedText(t *testing.T) {
	tmpl, err := NewTemplate(`\1`, 0)
	require.NoError(t, err)

	src, p, err := tmpl.Expand([]string{"", "a.b"})
	require.NoError(t, err)
	assert.NotEqual(t, "a.b", src)

	m, err := p.FindAt([]rune("axb"), 0)
	require.NoError(t, err)
	assert.Nil(t, m, "escaped dot must not match any character")

	m, err = p.FindAt([]rune("a.b"), 0)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestTemplateMissingCapture(t *testing.T) {
	tmpl, err := NewTemplate(`end\2`, 0)
	require.NoError(t, err)
	assert.Equal(t, "end", tmpl.Substitute([]string{"x"}))
}

func TestTemplateEscapedBackslash(t *testing.T) {
	tests := []struct {
		source  string
		hasRefs bool
		want    string
	}{
		{`\\1`, false, `\\1`},
		{`\\\1`, true, `\\x`},
		{`a\\\\2b`, false, `a\\\\2b`},
		{`\\(\1)`, true, `\\(x)`},
	}

	for _, tc := range tests {
		t.Run(tc.source, func(t *testing.T) {
			assert.Equal(t, tc.hasRefs, HasBackReferences(tc.source))

			tmpl, err := NewTemplate(tc.source, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, tmpl.Substitute([]string{"", "x"}))
		})
	}

	tmpl, err := NewTemplate(`\\1`, 0)
	require.NoError(t, err)
	_, p, err := tmpl.Expand(nil)
	require.NoError(t, err)
	m, err := p.FindAt([]rune(`a\1`), 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.Start)
}
