package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/tmscope/internal"
	tt "github.com/gnoswap-labs/tmscope/internal/types"
	"github.com/gnoswap-labs/tmscope/tokenize"
)

var (
	ignoreRules string
	ignorePaths string
	jsonOutput  bool
	outPath     string
	sourceLang  string
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize [paths...]",
	Short: "Print the tokens and scopes of files",
	Long: `Tokenizes files or directories with the configured grammars and prints one
line per token. Use "-" as the only path to read source from stdin.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide file or directory paths")
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		engine, _, err := loadEngine()
		exitOnError("Failed to initialize engine", err)
		applyIgnores(engine)

		results, err := collectResults(ctx, engine, args)
		exitOnError("Error processing files", err)

		err = writeOutput(outPath, func(w io.Writer) error {
			if jsonOutput {
				return writeJSON(w, results)
			}
			writeDump(w, results)
			return nil
		})
		exitOnError("Error writing output", err)

		reportIssues(results)
		if hasErrors(results) {
			os.Exit(1)
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{tokenizeCmd, highlightCmd} {
		c.Flags().StringVar(&ignoreRules, "ignore", "", "Comma-separated list of issue rules to ignore")
		c.Flags().StringVar(&ignorePaths, "ignore-paths", "", "Comma-separated list of paths to ignore")
		c.Flags().StringVar(&sourceLang, "lang", "", "File extension selecting the grammar for stdin")
		c.Flags().StringVarP(&outPath, "output", "o", "", "Output path")
	}
	tokenizeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output tokens in JSON format")
}

func applyIgnores(engine tokenize.Engine) {
	for _, rule := range splitList(ignoreRules) {
		engine.IgnoreRule(rule)
	}
	for _, path := range splitList(ignorePaths) {
		engine.IgnorePath(path)
	}
}

// collectResults tokenizes the paths, or stdin when the only path is "-".
func collectResults(ctx context.Context, engine *internal.Engine, paths []string) ([]*tt.FileResult, error) {
	if len(paths) == 1 && paths[0] == "-" {
		if sourceLang == "" {
			return nil, fmt.Errorf("--lang is required when reading stdin")
		}
		source, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("error reading stdin: %w", err)
		}
		return tokenize.ProcessSources(ctx, logger, engine, sourceLang, [][]byte{source})
	}

	results, err := tokenize.ProcessFiles(ctx, logger, engine, paths, tokenize.ProcessFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("tokenized files", zap.Int("count", len(results)))
	return results, nil
}
