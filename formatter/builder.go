package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	"github.com/gnoswap-labs/tmscope/internal"
	tt "github.com/gnoswap-labs/tmscope/internal/types"
)

const tabWidth = 8

var (
	errorStyle      = color.New(color.FgRed, color.Bold)
	warningStyle    = color.New(color.FgHiYellow, color.Bold)
	infoStyle       = color.New(color.FgHiBlue, color.Bold)
	ruleStyle       = color.New(color.FgYellow, color.Bold)
	fileStyle       = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	messageStyle    = color.New(color.FgRed, color.Bold)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
)

// issueFormatter is the interface that wraps the IssueTemplate method.
// Implementations are responsible for the layout of one kind of issue.
type issueFormatter interface {
	IssueTemplate() string
}

// getIssueFormatter returns the formatter for issue: issues without a
// source position, such as grammar compile errors, are shown without a
// snippet.
func getIssueFormatter(issue tt.Issue) issueFormatter {
	if issue.Line == 0 {
		return &GrammarIssueFormatter{}
	}
	return &GeneralIssueFormatter{}
}

// GenerateFormattedIssue formats a slice of issues into a human-readable string.
// snippet holds the lines of the file the issues point into; it may be nil
// for issues without a position.
func GenerateFormattedIssue(issues []tt.Issue, snippet *internal.SourceCode) string {
	var builder strings.Builder
	for _, issue := range issues {
		builder.WriteString(buildIssue(issue, snippet, getIssueFormatter(issue)))
	}
	return builder.String()
}

/***** Issue Formatter Builder *****/

type IssueData struct {
	Severity        string
	Rule            string
	Filename        string
	Padding         string
	Line            int
	Column          int
	EndColumn       int
	MaxLineNumWidth int
	Message         string
	Note            string
	SnippetLines    []string
	CommonIndent    string
}

func buildIssue(issue tt.Issue, snippet *internal.SourceCode, formatter issueFormatter) string {
	var lines []string
	if snippet != nil {
		lines = snippet.Lines
	}

	maxLineNumWidth := calculateMaxLineNumWidth(issue.Line)
	commonIndent := ""
	if isValidLine(issue.Line, lines) {
		commonIndent = leadingSpace(lines[issue.Line-1])
	}

	data := IssueData{
		Severity:        issue.Severity.String(),
		Rule:            issue.Rule,
		Filename:        issue.Filename,
		Line:            issue.Line,
		Column:          issue.Column,
		EndColumn:       max(issue.EndColumn, issue.Column),
		Message:         issue.Message,
		Note:            issue.Note,
		MaxLineNumWidth: maxLineNumWidth,
		Padding:         strings.Repeat(" ", maxLineNumWidth+1),
		CommonIndent:    commonIndent,
		SnippetLines:    lines,
	}

	funcMap := template.FuncMap{
		"header":              header,
		"location":            location,
		"note":                note,
		"snippet":             codeSnippet,
		"underlineAndMessage": underlineAndMessage,
		"message":             message,
	}

	tmpl := template.Must(template.New("issue").Funcs(funcMap).Parse(formatter.IssueTemplate()))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting issue: %v", err)
	}
	return buf.String()
}

// utils functions used in the text templates

func header(rule string, severity string) string {
	var endString string
	switch severity {
	case "ERROR":
		endString = errorStyle.Sprint("error: ")
	case "WARNING":
		endString = warningStyle.Sprint("warning: ")
	case "INFO":
		endString = infoStyle.Sprint("info: ")
	}
	return endString + ruleStyle.Sprintf("%s\n", rule)
}

func location(maxLineNumWidth int, filename string, line int, column int) string {
	padding := strings.Repeat(" ", maxLineNumWidth)
	endString := lineStyle.Sprintf("%s--> ", padding)
	if line > 0 {
		return endString + fileStyle.Sprintf("%s:%d:%d\n", filename, line, column)
	}
	return endString + fileStyle.Sprintf("%s\n", filename)
}

func codeSnippet(snippetLines []string, line int, maxLineNumWidth int, commonIndent string, padding string) string {
	endString := lineStyle.Sprintf("%s|\n", padding)
	if !isValidLine(line, snippetLines) {
		return endString
	}

	text := strings.TrimPrefix(snippetLines[line-1], commonIndent)
	lineNum := fmt.Sprintf("%*d", maxLineNumWidth, line)
	return endString + lineStyle.Sprintf("%s | ", lineNum) + fmt.Sprintf("%s\n", text)
}

func underlineAndMessage(msg string, padding string, line int, column int, endColumn int, snippetLines []string, commonIndent string) string {
	endString := lineStyle.Sprintf("%s| ", padding)

	if !isValidLine(line, snippetLines) {
		return endString + messageStyle.Sprintf("%s\n", msg)
	}

	commonIndentWidth := calculateVisualColumn(commonIndent, len([]rune(commonIndent))+1)
	text := snippetLines[line-1]

	underlineStart := max(calculateVisualColumn(text, column)-commonIndentWidth, 0)
	underlineEnd := max(calculateVisualColumn(text, endColumn)-commonIndentWidth, underlineStart)
	underlineLength := underlineEnd - underlineStart + 1

	endString += strings.Repeat(" ", underlineStart)
	endString += messageStyle.Sprintf("%s\n", strings.Repeat("^", underlineLength))
	endString += lineStyle.Sprintf("%s= ", padding)
	endString += messageStyle.Sprintf("%s\n", msg)
	return endString
}

func message(msg string, padding string) string {
	return lineStyle.Sprintf("%s= ", padding) + messageStyle.Sprintf("%s\n", msg)
}

func note(note string, padding string) string {
	if note == "" {
		return ""
	}
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("note: ") + fmt.Sprintf("%s\n", note)
}

func isValidLine(line int, snippetLines []string) bool {
	return line > 0 && line <= len(snippetLines)
}

func calculateMaxLineNumWidth(line int) int {
	return len(fmt.Sprintf("%d", line))
}

// calculateVisualColumn calculates the visual column position of the
// 1-based rune column in a string, taking into account tab characters.
func calculateVisualColumn(line string, column int) int {
	if column < 0 {
		return 0
	}
	visualColumn := 0
	i := 0
	for _, ch := range line {
		i++
		if i == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}

// leadingSpace returns the whitespace a line starts with.
func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))]
}
