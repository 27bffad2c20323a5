// Package internal runs compiled grammars over files.
//
// The Engine maps file extensions to grammars, tokenizes whole files or
// in-memory sources and turns tokenizer anomalies into Issues through a set
// of issue rules whose severity can be configured.
//
// Key components:
//
// Engine: picks a grammar per file and produces a FileResult.
//
// Cache: keeps FileResults on disk until the file or a grammar changes.
//
// Watch mode: keeps one Document per file and re-tokenizes only the lines a
// write changed.
package internal
