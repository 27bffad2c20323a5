package internal

import (
	"errors"
	"os"
	"strings"

	"github.com/gnoswap-labs/tmscope/internal/document"
	"github.com/gnoswap-labs/tmscope/internal/grammar"
	tt "github.com/gnoswap-labs/tmscope/internal/types"
)

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads the content of a file and returns it as a `SourceCode` struct.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return &SourceCode{Lines: document.SplitLines(string(content))}, nil
}

var compileErrorRules = []struct {
	kind error
	rule string
}{
	{grammar.ErrUnresolvedInclude, "unresolved-include"},
	{grammar.ErrInvalidPattern, "invalid-pattern"},
	{grammar.ErrUnsupportedFeature, "unsupported-feature"},
	{grammar.ErrCyclicInclude, "cyclic-include"},
}

// CompileIssue describes the failure to load the grammar at filename as an
// Issue. Errors other than a CompileError are reported as "grammar-load".
func CompileIssue(filename string, err error) tt.Issue {
	issue := tt.Issue{
		Rule:     "grammar-load",
		Severity: tt.SeverityError,
		Filename: filename,
		Message:  err.Error(),
	}

	var ce *grammar.CompileError
	if !errors.As(err, &ce) {
		return issue
	}
	for _, r := range compileErrorRules {
		if errors.Is(ce, r.kind) {
			issue.Rule = r.rule
			break
		}
	}

	msg := []string{}
	if ce.Detail != "" {
		msg = append(msg, ce.Detail)
	}
	if ce.Err != nil {
		msg = append(msg, ce.Err.Error())
	}
	if len(msg) > 0 {
		issue.Message = strings.Join(msg, ": ")
	} else {
		issue.Message = ce.Kind.Error()
	}
	if ce.Rule != "" {
		issue.Note = "in rule " + ce.Rule
	}
	return issue
}
