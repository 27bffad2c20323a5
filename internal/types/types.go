package types

import (
	"fmt"
	"strings"

	"github.com/gnoswap-labs/tmscope/internal/tokenizer"
)

// Severity is how serious an Issue is.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityOff
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityInfo:
		return "INFO"
	case SeverityOff:
		return "OFF"
	}
	return "UNKNOWN"
}

// ParseSeverity reads a severity name, ignoring case.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return SeverityError, nil
	case "WARNING", "WARN":
		return SeverityWarning, nil
	case "INFO":
		return SeverityInfo, nil
	case "OFF":
		return SeverityOff, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ConfigRule overrides how an issue rule is reported.
type ConfigRule struct {
	Severity Severity `yaml:"severity"`
}

// Issue is a problem found in a grammar or while tokenizing a file. Line and
// Column are 1-based; Line is 0 when the issue has no source position, as
// for grammar compile errors.
type Issue struct {
	Rule      string   `json:"rule"`
	Severity  Severity `json:"severity"`
	Filename  string   `json:"filename"`
	Line      int      `json:"line,omitempty"`
	Column    int      `json:"column,omitempty"`
	EndColumn int      `json:"endColumn,omitempty"`
	Message   string   `json:"message"`
	Note      string   `json:"note,omitempty"`
}

// FileResult is the tokenization of one file.
type FileResult struct {
	Filename string              `json:"filename"`
	Grammar  string              `json:"grammar"`
	Lines    []string            `json:"-"`
	Tokens   [][]tokenizer.Token `json:"tokens"`
	Issues   []Issue             `json:"issues,omitempty"`
}
