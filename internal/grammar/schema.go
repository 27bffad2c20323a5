package grammar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document mirrors a grammar file as written on disk. It is decoded as-is
// and compiled into a Grammar.
type Document struct {
	Name         string              `json:"name" yaml:"name"`
	ScopeName    string              `json:"scopeName" yaml:"scopeName"`
	FileTypes    []string            `json:"fileTypes,omitempty" yaml:"fileTypes,omitempty"`
	FirstLine    string              `json:"firstLineMatch,omitempty" yaml:"firstLineMatch,omitempty"`
	FoldingStart string              `json:"foldingStartMarker,omitempty" yaml:"foldingStartMarker,omitempty"`
	FoldingStop  string              `json:"foldingStopMarker,omitempty" yaml:"foldingStopMarker,omitempty"`
	Patterns     []*RawRule          `json:"patterns" yaml:"patterns"`
	Repository   map[string]*RawRule `json:"repository,omitempty" yaml:"repository,omitempty"`
}

// RawRule is a single rule of a grammar document. Which fields are set
// decides the rule's form: include, match, begin/end, or a plain container
// of patterns.
type RawRule struct {
	Include             string              `json:"include,omitempty" yaml:"include,omitempty"`
	Name                string              `json:"name,omitempty" yaml:"name,omitempty"`
	ContentName         string              `json:"contentName,omitempty" yaml:"contentName,omitempty"`
	Match               string              `json:"match,omitempty" yaml:"match,omitempty"`
	Begin               string              `json:"begin,omitempty" yaml:"begin,omitempty"`
	End                 string              `json:"end,omitempty" yaml:"end,omitempty"`
	While               string              `json:"while,omitempty" yaml:"while,omitempty"`
	Captures            map[string]*RawRule `json:"captures,omitempty" yaml:"captures,omitempty"`
	BeginCaptures       map[string]*RawRule `json:"beginCaptures,omitempty" yaml:"beginCaptures,omitempty"`
	EndCaptures         map[string]*RawRule `json:"endCaptures,omitempty" yaml:"endCaptures,omitempty"`
	Patterns            []*RawRule          `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	ApplyEndPatternLast Flag                `json:"applyEndPatternLast,omitempty" yaml:"applyEndPatternLast,omitempty"`
	Disabled            Flag                `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Comment             string              `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Flag is a boolean that grammars write either as true/false or as 0/1.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	v, err := parseFlag(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*f = Flag(v)
	return nil
}

func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseFlag(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*f = Flag(v)
	return nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "null":
		return false, nil
	case "true", "yes":
		return true, nil
	case "false", "no":
		return false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return false, fmt.Errorf("invalid flag value %q", s)
	}
	return n != 0, nil
}

// Format is the encoding of a grammar document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf guesses the document format from a file name.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("unknown grammar format for %s", filename)
}

// Parse decodes a grammar document.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding grammar: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding grammar: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown grammar format %d", format)
	}
	return &doc, nil
}

// ReadDocument reads and decodes a grammar file.
func ReadDocument(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Load reads, decodes and compiles a grammar file.
func Load(path string, opts ...Option) (*Grammar, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	g, err := Compile(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
