package formatter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gnoswap-labs/tmscope/internal/tokenizer"
)

// tokenText returns the characters of line covered by tok.
func tokenText(line []rune, tok tokenizer.Token) string {
	start := min(max(tok.Start, 0), len(line))
	end := min(max(tok.End, start), len(line))
	return string(line[start:end])
}

// Highlight renders lines with the style of every token. tokens holds the
// tokens of each line; text not covered by a styled token is written as is.
func Highlight(lines []string, tokens [][]tokenizer.Token, styles *Styles) string {
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		runes := []rune(line)
		if i >= len(tokens) {
			sb.WriteString(line)
			continue
		}
		for _, tok := range tokens[i] {
			text := tokenText(runes, tok)
			if c := styles.Resolve(tok.Scopes); c != nil {
				sb.WriteString(c.Sprint(text))
			} else {
				sb.WriteString(text)
			}
		}
	}
	return sb.String()
}

// Dump writes one line per token: its 1-based line, its character range,
// its text and its scopes.
func Dump(lines []string, tokens [][]tokenizer.Token) string {
	var sb strings.Builder
	for i, lineTokens := range tokens {
		var runes []rune
		if i < len(lines) {
			runes = []rune(lines[i])
		}
		for _, tok := range lineTokens {
			fmt.Fprintf(&sb, "%d:%d-%d %q %s\n", i+1, tok.Start, tok.End, tokenText(runes, tok), strings.Join(tok.Scopes, " "))
		}
	}
	return sb.String()
}

type jsonToken struct {
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Text   string   `json:"text"`
	Scopes []string `json:"scopes"`
}

type jsonLine struct {
	Line   int         `json:"line"`
	Tokens []jsonToken `json:"tokens"`
}

// JSON encodes the tokens of every line with their text.
func JSON(lines []string, tokens [][]tokenizer.Token) ([]byte, error) {
	out := make([]jsonLine, len(tokens))
	for i, lineTokens := range tokens {
		var runes []rune
		if i < len(lines) {
			runes = []rune(lines[i])
		}
		jl := jsonLine{Line: i + 1, Tokens: make([]jsonToken, len(lineTokens))}
		for j, tok := range lineTokens {
			jl.Tokens[j] = jsonToken{
				Start:  tok.Start,
				End:    tok.End,
				Text:   tokenText(runes, tok),
				Scopes: tok.Scopes,
			}
		}
		out[i] = jl
	}
	return json.MarshalIndent(out, "", "  ")
}
