package tokenizer

import (
	"fmt"
	"strings"
)

// Token is a half-open range of characters (runes) within one line and the
// scopes applying to it, outermost first. Scopes is shared between tokens
// and must not be modified.
type Token struct {
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Scopes []string `json:"scopes"`
}

// Len returns the number of characters covered by the token.
func (t Token) Len() int {
	return t.End - t.Start
}

// Innermost returns the most specific scope of the token.
func (t Token) Innermost() string {
	if len(t.Scopes) == 0 {
		return ""
	}
	return t.Scopes[len(t.Scopes)-1]
}

func (t Token) String() string {
	return fmt.Sprintf("[%d,%d) %s", t.Start, t.End, strings.Join(t.Scopes, " "))
}

// AnomalyKind classifies a recovered tokenization problem.
type AnomalyKind int

const (
	// AnomalyStackUnderflow is an end match without an open frame.
	AnomalyStackUnderflow AnomalyKind = iota
	// AnomalyTimeout is a pattern that exceeded its match time budget.
	AnomalyTimeout
	// AnomalyZeroWidthLoop is a sequence of empty matches that would
	// repeat forever without advancing.
	AnomalyZeroWidthLoop
	// AnomalyPush is a begin match whose frame could not be built.
	AnomalyPush
)

func (k AnomalyKind) String() string {
	switch k {
	case AnomalyStackUnderflow:
		return "stack-underflow"
	case AnomalyTimeout:
		return "timeout"
	case AnomalyZeroWidthLoop:
		return "zero-width-loop"
	case AnomalyPush:
		return "push"
	}
	return "unknown"
}

// Anomaly is a problem the tokenizer recovered from. None of them stop a
// line; each degrades to a one character advance at Offset.
type Anomaly struct {
	Kind   AnomalyKind
	Offset int
	Err    error
}

// LineResult is the outcome of tokenizing one line.
type LineResult struct {
	Tokens    []Token
	EndState  LineState
	Anomalies []Anomaly
}
