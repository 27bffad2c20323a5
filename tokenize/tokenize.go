package tokenize

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	tt "github.com/gnoswap-labs/tmscope/internal/types"
	"github.com/gnoswap-labs/tmscope/scanner"
)

const maxShowRecentFiles = 25

// Engine is the part of internal.Engine the processing functions use.
type Engine interface {
	Run(ctx context.Context, filename string) (*tt.FileResult, error)
	RunSource(ctx context.Context, ext string, source []byte) (*tt.FileResult, error)
	IgnoreRule(rule string)
	IgnorePath(path string)
	Supports(filename string) bool
}

// Processor produces the result for one file.
type Processor func(ctx context.Context, engine Engine, path string) (*tt.FileResult, error)

// ProgressOutput receives the progress bar and the list of recently
// processed files while a directory is processed.
var ProgressOutput io.Writer = os.Stderr

func ProcessFile(ctx context.Context, engine Engine, filePath string) (*tt.FileResult, error) {
	return engine.Run(ctx, filePath)
}

// ProcessSources tokenizes in-memory sources with the grammar for ext.
func ProcessSources(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	ext string,
	sources [][]byte,
) ([]*tt.FileResult, error) {
	var results []*tt.FileResult
	for i, source := range sources {
		res, err := engine.RunSource(ctx, ext, source)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing source", zap.Int("source", i), zap.Error(err))
			}
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	paths []string,
	processor Processor,
) ([]*tt.FileResult, error) {
	var results []*tt.FileResult
	for _, path := range paths {
		res, err := ProcessPath(ctx, logger, engine, path, processor)
		results = append(results, res...)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return results, err
		}
	}
	return results, nil
}

// ProcessPath runs processor on path. A directory is scanned for the files
// the engine has a grammar for, which are processed by a pool of workers;
// files that fail are logged and left out. On cancellation the results
// finished so far are returned with the context's error.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	path string,
	processor Processor,
) ([]*tt.FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	if !info.IsDir() {
		res, err := processor(ctx, engine, path)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, nil
		}
		return []*tt.FileResult{res}, nil
	}

	scanned, err := scanner.New(path).Scan()
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", path, err)
	}
	var files []string
	for _, f := range scanned {
		if engine.Supports(f.Path) {
			files = append(files, f.Path)
		}
	}
	if len(files) == 0 {
		return nil, nil
	}

	out := ProgressOutput
	recent := newRecentFiles(out, maxShowRecentFiles)

	type outcome struct {
		res *tt.FileResult
		err error
	}
	outcomes := make(chan outcome, len(files))

	// limit the number of workers
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(path),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

launch:
	for _, filePath := range files {
		select {
		case <-ctx.Done():
			break launch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(fp string) {
			defer wg.Done()
			defer func() { <-sem }()

			recent.add(filepath.Base(fp))

			res, err := processor(ctx, engine, fp)
			if err != nil && logger != nil {
				logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
			}
			outcomes <- outcome{res: res, err: err}
			bar.Add(1)
		}(filePath)
	}
	wg.Wait()
	close(outcomes)

	var results []*tt.FileResult
	for o := range outcomes {
		if o.err != nil || o.res == nil {
			continue
		}
		results = append(results, o.res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Filename < results[j].Filename })

	fmt.Fprintln(out)
	return results, ctx.Err()
}

// recentFiles keeps the names of the last files started on screen.
type recentFiles struct {
	mu    sync.Mutex
	out   io.Writer
	names []string
}

func newRecentFiles(out io.Writer, n int) *recentFiles {
	// make space for recent files
	for range n + 1 {
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "\033[%dA", n+1)
	return &recentFiles{out: out, names: make([]string, n)}
}

func (r *recentFiles) add(filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copy(r.names[1:], r.names)
	r.names[0] = filename

	// move the cursor up
	fmt.Fprintf(r.out, "\033[%dA", len(r.names))

	for _, name := range r.names {
		// \033[2K: clear the line
		// \r: move the cursor to the beginning of the line
		fmt.Fprintf(r.out, "\033[2K\r%s\n", name)
	}
}
