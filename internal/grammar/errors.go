package grammar

import (
	"errors"
	"fmt"
)

// Compile error kinds. A CompileError matches its kind with errors.Is.
var (
	ErrUnresolvedInclude  = errors.New("unresolved include")
	ErrInvalidPattern     = errors.New("invalid pattern")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrCyclicInclude      = errors.New("cyclic include")
)

// CompileError reports why a grammar could not be compiled. Rule is the path
// of the offending rule inside the document, e.g. "repository.comment.match".
type CompileError struct {
	Kind   error
	Rule   string
	Detail string
	Err    error
}

func (e *CompileError) Error() string {
	msg := e.Kind.Error()
	if e.Rule != "" {
		msg += " at " + e.Rule
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompileError) Is(target error) bool {
	return target == e.Kind
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func compileErrorf(kind error, rule string, err error, format string, args ...any) *CompileError {
	return &CompileError{
		Kind:   kind,
		Rule:   rule,
		Detail: fmt.Sprintf(format, args...),
		Err:    err,
	}
}
