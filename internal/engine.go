package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/tmscope/internal/document"
	"github.com/gnoswap-labs/tmscope/internal/grammar"
	"github.com/gnoswap-labs/tmscope/internal/tokenizer"
	tt "github.com/gnoswap-labs/tmscope/internal/types"
)

// ErrNoGrammar is returned for a file no registered grammar applies to.
var ErrNoGrammar = errors.New("no grammar for file")

// Engine manages the tokenization of files.
type Engine struct {
	grammars   map[string]*grammar.Grammar
	ordered    []*grammar.Grammar
	tokenizers map[*grammar.Grammar]*tokenizer.Tokenizer

	logger       *zap.Logger
	cache        *Cache
	rules        map[string]IssueRule
	ignoredRules map[string]bool
	ignoredPaths []string

	// watch mode
	watcher    *fsnotify.Watcher
	watchDirs  []string
	watchMu    sync.Mutex
	isWatching bool
	done       chan struct{}
	docMu      sync.Mutex
	documents  map[string]*document.Document
	onUpdate   func(filename string, res document.EditResult)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithCache makes the engine reuse results of unchanged files.
func WithCache(cache *Cache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

// WithRules overrides the severity of issue rules. A rule set to
// SeverityOff is not run.
func WithRules(rules map[string]tt.ConfigRule) EngineOption {
	return func(e *Engine) { e.applyRules(rules) }
}

// WithWatchHandler sets a function called after watch mode re-tokenized a
// file.
func WithWatchHandler(fn func(filename string, res document.EditResult)) EngineOption {
	return func(e *Engine) { e.onUpdate = fn }
}

// NewEngine creates an engine for grammars, keyed by file extension. Every
// grammar is also registered for the file types it declares unless the
// extension is already taken.
func NewEngine(grammars map[string]*grammar.Grammar, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		grammars:   make(map[string]*grammar.Grammar),
		tokenizers: make(map[*grammar.Grammar]*tokenizer.Tokenizer),
		logger:     zap.NewNop(),
		documents:  make(map[string]*document.Document),
	}
	e.registerDefaultRules()
	for _, opt := range opts {
		opt(e)
	}

	exts := make([]string, 0, len(grammars))
	for ext := range grammars {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	for _, ext := range exts {
		g := grammars[ext]
		if g == nil {
			return nil, fmt.Errorf("nil grammar for %q", ext)
		}
		e.grammars[normalizeExt(ext)] = g
		e.addTokenizer(g)
	}
	for _, ext := range exts {
		g := grammars[ext]
		for _, ft := range g.FileTypes() {
			if _, taken := e.grammars[normalizeExt(ft)]; !taken {
				e.grammars[normalizeExt(ft)] = g
			}
		}
	}
	return e, nil
}

func (e *Engine) addTokenizer(g *grammar.Grammar) {
	if _, ok := e.tokenizers[g]; ok {
		return
	}
	e.tokenizers[g] = tokenizer.New(g, tokenizer.WithLogger(e.logger))
	e.ordered = append(e.ordered, g)
}

func normalizeExt(ext string) string {
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// Define the ruleConstructor type
type ruleConstructor func() IssueRule

var allRuleConstructors = map[string]ruleConstructor{
	"match-timeout":       NewMatchTimeoutRule,
	"zero-width-loop":     NewZeroWidthLoopRule,
	"stack-underflow":     NewStackUnderflowRule,
	"invalid-end-pattern": NewEndPatternRule,
	"unterminated-region": NewUnterminatedRegionRule,
}

func (e *Engine) registerDefaultRules() {
	e.rules = make(map[string]IssueRule, len(allRuleConstructors))
	for key, newRule := range allRuleConstructors {
		e.rules[key] = newRule()
	}
}

func (e *Engine) applyRules(rules map[string]tt.ConfigRule) {
	for key, rule := range rules {
		r, ok := e.rules[key]
		if !ok {
			e.logger.Warn("unknown rule in configuration", zap.String("rule", key))
			continue
		}
		if rule.Severity == tt.SeverityOff {
			e.IgnoreRule(key)
		}
		r.SetSeverity(rule.Severity)
	}
}

// IgnoreRule stops rule from being reported.
func (e *Engine) IgnoreRule(rule string) {
	if e.ignoredRules == nil {
		e.ignoredRules = make(map[string]bool)
	}
	e.ignoredRules[rule] = true
}

// IgnorePath skips files matching the glob pattern path, or inside the
// directory path.
func (e *Engine) IgnorePath(path string) {
	e.ignoredPaths = append(e.ignoredPaths, filepath.Clean(path))
}

func (e *Engine) isIgnoredPath(path string) bool {
	path = filepath.Clean(path)
	for _, ignored := range e.ignoredPaths {
		if ok, _ := filepath.Match(ignored, path); ok {
			return true
		}
		if ok, _ := filepath.Match(ignored, filepath.Base(path)); ok {
			return true
		}
		if strings.HasPrefix(path, ignored+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Supports reports whether a grammar is registered for the extension of
// filename.
func (e *Engine) Supports(filename string) bool {
	_, ok := e.grammars[filepath.Ext(filename)]
	return ok && !e.isIgnoredPath(filename)
}

// Extensions returns the registered extensions, sorted.
func (e *Engine) Extensions() []string {
	exts := make([]string, 0, len(e.grammars))
	for ext := range e.grammars {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// GrammarFor picks the grammar for a file: by extension, then by the
// firstLineMatch of each grammar against the file's first line.
func (e *Engine) GrammarFor(filename, firstLine string) (*grammar.Grammar, error) {
	if g, ok := e.grammars[filepath.Ext(filename)]; ok {
		return g, nil
	}
	for _, g := range e.ordered {
		if g.MatchesFirstLine(firstLine) {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoGrammar, filename)
}

// Run tokenizes the file at filename. The result is nil for an ignored
// path.
func (e *Engine) Run(ctx context.Context, filename string) (*tt.FileResult, error) {
	if e.isIgnoredPath(filename) {
		return nil, nil
	}
	var rules string
	if e.cache != nil {
		rules = e.ruleSignature()
		if res, ok := e.cache.Get(filename, rules); ok {
			e.logger.Debug("cache hit", zap.String("file", filename))
			return res, nil
		}
	}

	info, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	res, err := e.tokenize(ctx, filename, document.SplitLines(string(content)))
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(filename, NewFingerprint(info, content), rules, res); err != nil {
			e.logger.Warn("failed to cache result", zap.String("file", filename), zap.Error(err))
		}
	}
	return res, nil
}

// RunSource tokenizes source with the grammar registered for ext.
func (e *Engine) RunSource(ctx context.Context, ext string, source []byte) (*tt.FileResult, error) {
	return e.tokenize(ctx, "source"+normalizeExt(ext), document.SplitLines(string(source)))
}

func (e *Engine) tokenize(ctx context.Context, filename string, lines []string) (*tt.FileResult, error) {
	g, err := e.GrammarFor(filename, lines[0])
	if err != nil {
		return nil, err
	}

	results, err := e.tokenizers[g].TokenizeDocument(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("tokenizing %s: %w", filename, err)
	}
	return e.buildResult(filename, g, lines, results), nil
}

func (e *Engine) buildResult(filename string, g *grammar.Grammar, lines []string, results []tokenizer.LineResult) *tt.FileResult {
	res := &tt.FileResult{
		Filename: filename,
		Grammar:  g.ScopeName(),
		Lines:    lines,
		Tokens:   make([][]tokenizer.Token, len(results)),
	}
	for i, lr := range results {
		res.Tokens[i] = lr.Tokens
	}
	res.Issues = e.checkRules(filename, lines, results)
	return res
}

// ruleSignature describes the rules that run and their severities.
func (e *Engine) ruleSignature() string {
	var sb strings.Builder
	for _, name := range e.ruleNames() {
		severity := e.rules[name].Severity()
		if e.ignoredRules[name] {
			severity = tt.SeverityOff
		}
		fmt.Fprintf(&sb, "%s=%s;", name, severity)
	}
	return sb.String()
}

func (e *Engine) ruleNames() []string {
	names := make([]string, 0, len(e.rules))
	for name := range e.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) checkRules(filename string, lines []string, results []tokenizer.LineResult) []tt.Issue {
	var issues []tt.Issue
	for _, name := range e.ruleNames() {
		if e.ignoredRules[name] {
			continue
		}
		issues = append(issues, e.rules[name].Check(filename, lines, results)...)
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Line != issues[j].Line {
			return issues[i].Line < issues[j].Line
		}
		return issues[i].Column < issues[j].Column
	})
	return issues
}
