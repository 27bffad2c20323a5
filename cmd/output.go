package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/tmscope/formatter"
	"github.com/gnoswap-labs/tmscope/internal"
	tt "github.com/gnoswap-labs/tmscope/internal/types"
)

// splitList splits a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func writeDump(w io.Writer, results []*tt.FileResult) {
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %s (%s)\n", res.Filename, res.Grammar)
		fmt.Fprint(w, formatter.Dump(res.Lines, res.Tokens))
	}
}

func writeJSON(w io.Writer, results []*tt.FileResult) error {
	byFile := make(map[string]json.RawMessage, len(results))
	for _, res := range results {
		d, err := formatter.JSON(res.Lines, res.Tokens)
		if err != nil {
			return fmt.Errorf("error marshalling tokens of %s: %w", res.Filename, err)
		}
		byFile[res.Filename] = d
	}
	d, err := json.MarshalIndent(byFile, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(d))
	return err
}

// writeOutput sends output to the file at path, or to stdout when path is
// empty.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// formatIssues renders the issues of every result against its lines.
func formatIssues(results []*tt.FileResult) string {
	var sb strings.Builder
	for _, res := range results {
		if len(res.Issues) == 0 {
			continue
		}
		sb.WriteString(formatter.GenerateFormattedIssue(res.Issues, &internal.SourceCode{Lines: res.Lines}))
	}
	return sb.String()
}

func hasErrors(results []*tt.FileResult) bool {
	for _, res := range results {
		for _, issue := range res.Issues {
			if issue.Severity == tt.SeverityError {
				return true
			}
		}
	}
	return false
}

func reportIssues(results []*tt.FileResult) {
	if out := formatIssues(results); out != "" {
		fmt.Fprint(os.Stderr, out)
	}
}

func exitOnError(msg string, err error) {
	if err != nil {
		logger.Error(msg, zap.Error(err))
		os.Exit(1)
	}
}
