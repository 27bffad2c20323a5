package formatter

type GeneralIssueFormatter struct{}

func (f *GeneralIssueFormatter) IssueTemplate() string {
	return `{{header .Rule .Severity -}}
{{location .MaxLineNumWidth .Filename .Line .Column -}}
{{snippet .SnippetLines .Line .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .Line .Column .EndColumn .SnippetLines .CommonIndent -}}
{{note .Note .Padding}}
`
}

// GrammarIssueFormatter lays out issues that point at a grammar rule rather
// than a source position.
type GrammarIssueFormatter struct{}

func (f *GrammarIssueFormatter) IssueTemplate() string {
	return `{{header .Rule .Severity -}}
{{location .MaxLineNumWidth .Filename .Line .Column -}}
{{message .Message .Padding -}}
{{note .Note .Padding}}
`
}
