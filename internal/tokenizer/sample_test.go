package tokenizer

// sampleGrammar is a small grammar for an Austral-like language. It covers
// keyword scopes built from captures, escapes inside strings, recursive
// parentheses and lookbehind.
const sampleGrammar = `{
	"name": "Sample",
	"scopeName": "source.sample",
	"fileTypes": ["smp"],
	"patterns": [
		{"include": "#comments"},
		{"include": "#strings"},
		{"include": "#declarations"},
		{"include": "#keywords"},
		{"include": "#numbers"},
		{"include": "#parens"}
	],
	"repository": {
		"comments": {
			"patterns": [
				{"match": "--.*$", "name": "comment.line.double-dash.sample"},
				{
					"begin": "\\(\\*",
					"end": "\\*\\)",
					"name": "comment.block.sample",
					"beginCaptures": {"0": {"name": "punctuation.definition.comment.begin.sample"}},
					"endCaptures": {"0": {"name": "punctuation.definition.comment.end.sample"}}
				}
			]
		},
		"strings": {
			"begin": "\"",
			"end": "\"",
			"name": "string.quoted.double.sample",
			"patterns": [{"match": "\\\\[nrt\"\\\\]", "name": "constant.character.escape.sample"}]
		},
		"declarations": {
			"match": "\\b(module|record|union)\\s+(body\\s+)?([A-Z][\\w.]*)",
			"captures": {
				"1": {"name": "keyword.declaration.$1.sample"},
				"2": {"name": "keyword.other.body.sample"},
				"3": {"name": "entity.name.type.sample"}
			}
		},
		"keywords": {
			"patterns": [
				{"match": "\\b(if|then|else|end|let|return|while|do|for)\\b", "name": "keyword.control.$1.sample"},
				{"match": "(?<=:\\s*)\\b[A-Z]\\w*", "name": "entity.name.type.sample"}
			]
		},
		"numbers": {
			"match": "\\b\\d+(\\.\\d+)?\\b",
			"name": "constant.numeric.sample"
		},
		"parens": {
			"begin": "\\(",
			"end": "\\)",
			"name": "meta.parens.sample",
			"patterns": [{"include": "$self"}]
		}
	}
}`

var sampleLines = []string{
	"module body Example.Main is",
	"    (* a comment",
	"       spanning lines *)",
	"    record Point: Free is",
	"        x: Int32;",
	"    end;",
	"",
	`    let s: String := "tab\tquote\" (not a paren";`,
	"    let n: Int32 := ((1 + 2) * (3.5 - 4)); -- trailing",
	"    if n then (",
	"        return 0",
	"    ) else (",
	"        return 1 end;",
	"end module body.",
}
