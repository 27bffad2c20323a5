package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/tmscope/internal/document"
)

// settleDelay lets a burst of writes to one file land before it is read.
const settleDelay = 100 * time.Millisecond

var (
	ErrAlreadyWatching = errors.New("already watching")
	ErrNotWatching     = errors.New("not watching")
)

// StartWatching tokenizes the supported files under dirs and keeps them
// tokenized: every write to one of them is turned into a document edit that
// re-tokenizes only the lines it affects.
func (e *Engine) StartWatching(ctx context.Context, dirs ...string) error {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()

	if e.isWatching {
		return ErrAlreadyWatching
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}

	for _, dir := range dirs {
		if err := e.watchTree(ctx, watcher, dir); err != nil {
			watcher.Close()
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	e.watcher = watcher
	e.watchDirs = dirs
	e.done = make(chan struct{})
	e.isWatching = true
	go e.watchLoop(ctx, watcher, e.done)
	return nil
}

// StopWatching stops watch mode and waits for the watch loop to exit.
func (e *Engine) StopWatching() error {
	e.watchMu.Lock()
	if !e.isWatching {
		e.watchMu.Unlock()
		return ErrNotWatching
	}
	e.isWatching = false
	watcher, done := e.watcher, e.done
	e.watchMu.Unlock()

	err := watcher.Close()
	<-done
	return err
}

// watchTree adds dir and its subdirectories to watcher and opens the
// supported files found in them.
func (e *Engine) watchTree(ctx context.Context, watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		if e.Supports(path) {
			return e.openDocument(ctx, path)
		}
		return nil
	})
}

// Document returns the document watch mode keeps for filename.
func (e *Engine) Document(filename string) (*document.Document, bool) {
	e.docMu.Lock()
	defer e.docMu.Unlock()
	d, ok := e.documents[filepath.Clean(filename)]
	return d, ok
}

func (e *Engine) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			e.handleFileEvent(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			e.logger.Error("watch error", zap.Error(err))
		}
	}
}

func (e *Engine) handleFileEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if event.Has(fsnotify.Create) {
		// files may land in a new directory before it is watched
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := e.watchTree(ctx, watcher, event.Name); err != nil {
				e.logger.Error("error watching directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !e.Supports(event.Name) {
		return
	}

	time.Sleep(settleDelay)

	d, ok := e.Document(event.Name)
	if !ok {
		if err := e.openDocument(ctx, event.Name); err != nil {
			e.logger.Error("error opening document", zap.String("file", event.Name), zap.Error(err))
		}
		return
	}

	content, err := os.ReadFile(event.Name)
	if err != nil {
		e.logger.Error("error reading file", zap.String("file", event.Name), zap.Error(err))
		return
	}

	edit, changed := lineDiff(d.Lines(), document.SplitLines(string(content)))
	if !changed {
		return
	}
	res, err := d.Edit(ctx, edit)
	if err != nil {
		e.logger.Error("error re-tokenizing", zap.String("file", event.Name), zap.Error(err))
		return
	}
	e.reportUpdate(event.Name, res)
}

func (e *Engine) openDocument(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := document.SplitLines(string(content))
	g, err := e.GrammarFor(path, lines[0])
	if err != nil {
		return err
	}

	d := document.New(e.tokenizers[g], lines, document.WithLogger(e.logger))
	if err := d.Tokenize(ctx); err != nil {
		return err
	}

	e.docMu.Lock()
	e.documents[filepath.Clean(path)] = d
	e.docMu.Unlock()

	e.reportUpdate(path, document.EditResult{
		Retokenized: len(lines),
		FirstLine:   0,
		LastLine:    len(lines) - 1,
	})
	return nil
}

func (e *Engine) reportUpdate(filename string, res document.EditResult) {
	e.logger.Info("re-tokenized",
		zap.String("file", filename),
		zap.Int("lines", res.Retokenized),
		zap.Int("first", res.FirstLine),
		zap.Int("last", res.LastLine),
		zap.Bool("stoppedEarly", res.StoppedEarly))
	if e.onUpdate != nil {
		e.onUpdate(filename, res)
	}
}

// lineDiff returns the single edit turning old into cur: the lines between
// their common prefix and common suffix.
func lineDiff(old, cur []string) (document.Edit, bool) {
	prefix := 0
	for prefix < len(old) && prefix < len(cur) && old[prefix] == cur[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(cur)-prefix &&
		old[len(old)-1-suffix] == cur[len(cur)-1-suffix] {
		suffix++
	}

	if prefix == len(old) && prefix == len(cur) {
		return document.Edit{}, false
	}
	return document.Edit{
		Start: prefix,
		End:   len(old) - suffix,
		Lines: append([]string(nil), cur[prefix:len(cur)-suffix]...),
	}, true
}
