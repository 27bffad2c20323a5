package internal

import (
	"fmt"
	"strings"

	"github.com/gnoswap-labs/tmscope/internal/tokenizer"
	tt "github.com/gnoswap-labs/tmscope/internal/types"
)

/*
* Each issue rule turns one kind of tokenizer outcome into Issues
 */

// IssueRule inspects the tokenization of a file.
type IssueRule interface {
	// Check returns the issues the rule finds in results, the tokenization of
	// lines in filename.
	Check(filename string, lines []string, results []tokenizer.LineResult) []tt.Issue

	// Name returns the name of the rule.
	Name() string

	Severity() tt.Severity
	SetSeverity(tt.Severity)
}

// anomalyRule reports every anomaly of one kind.
type anomalyRule struct {
	name     string
	kind     tokenizer.AnomalyKind
	severity tt.Severity
	message  func(a tokenizer.Anomaly) string
}

func (r *anomalyRule) Name() string             { return r.name }
func (r *anomalyRule) Severity() tt.Severity    { return r.severity }
func (r *anomalyRule) SetSeverity(s tt.Severity) { r.severity = s }

func (r *anomalyRule) Check(filename string, lines []string, results []tokenizer.LineResult) []tt.Issue {
	var issues []tt.Issue
	for i, res := range results {
		for _, a := range res.Anomalies {
			if a.Kind != r.kind {
				continue
			}
			issue := tt.Issue{
				Rule:      r.name,
				Severity:  r.severity,
				Filename:  filename,
				Line:      i + 1,
				Column:    a.Offset + 1,
				EndColumn: a.Offset + 1,
				Message:   r.message(a),
			}
			if a.Err != nil {
				issue.Note = a.Err.Error()
			}
			issues = append(issues, issue)
		}
	}
	return issues
}

func NewMatchTimeoutRule() IssueRule {
	return &anomalyRule{
		name:     "match-timeout",
		kind:     tokenizer.AnomalyTimeout,
		severity: tt.SeverityWarning,
		message: func(tokenizer.Anomaly) string {
			return "a pattern ran out of time; the character was left unmatched"
		},
	}
}

func NewZeroWidthLoopRule() IssueRule {
	return &anomalyRule{
		name:     "zero-width-loop",
		kind:     tokenizer.AnomalyZeroWidthLoop,
		severity: tt.SeverityWarning,
		message: func(tokenizer.Anomaly) string {
			return "empty matches repeat without consuming input"
		},
	}
}

func NewStackUnderflowRule() IssueRule {
	return &anomalyRule{
		name:     "stack-underflow",
		kind:     tokenizer.AnomalyStackUnderflow,
		severity: tt.SeverityError,
		message: func(tokenizer.Anomaly) string {
			return "end pattern matched with no open region"
		},
	}
}

func NewEndPatternRule() IssueRule {
	return &anomalyRule{
		name:     "invalid-end-pattern",
		kind:     tokenizer.AnomalyPush,
		severity: tt.SeverityError,
		message: func(tokenizer.Anomaly) string {
			return "the end pattern built from the begin captures does not compile"
		},
	}
}

// UnterminatedRegionRule reports regions still open at the end of a file.
type UnterminatedRegionRule struct {
	severity tt.Severity
}

func NewUnterminatedRegionRule() IssueRule {
	return &UnterminatedRegionRule{severity: tt.SeverityInfo}
}

func (r *UnterminatedRegionRule) Name() string             { return "unterminated-region" }
func (r *UnterminatedRegionRule) Severity() tt.Severity    { return r.severity }
func (r *UnterminatedRegionRule) SetSeverity(s tt.Severity) { r.severity = s }

func (r *UnterminatedRegionRule) Check(filename string, lines []string, results []tokenizer.LineResult) []tt.Issue {
	if len(results) == 0 {
		return nil
	}
	last := len(results) - 1
	frames := results[last].EndState.Frames()
	if len(frames) == 0 {
		return nil
	}

	ends := make([]string, len(frames))
	for i, f := range frames {
		ends[len(frames)-1-i] = f.EndSource
	}
	inner := frames[len(frames)-1].Scopes()

	col := 1
	if last < len(lines) {
		col = len([]rune(lines[last])) + 1
	}
	return []tt.Issue{{
		Rule:      r.Name(),
		Severity:  r.severity,
		Filename:  filename,
		Line:      last + 1,
		Column:    col,
		EndColumn: col,
		Message:   fmt.Sprintf("%d region(s) still open at end of file", len(frames)),
		Note:      fmt.Sprintf("innermost scope %s, expecting %s", inner[len(inner)-1], strings.Join(ends, " then ")),
	}}
}
