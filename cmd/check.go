package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/tmscope/formatter"
	tt "github.com/gnoswap-labs/tmscope/internal/types"
	"github.com/gnoswap-labs/tmscope/tokenize"
)

var checkCmd = &cobra.Command{
	Use:   "check [grammar files...]",
	Short: "Compile grammars and report their errors",
	Long: `Compiles the given grammar files, or every grammar of the configuration
when none is given, and reports unresolved includes, invalid patterns and
unsupported features.`,
	Run: func(cmd *cobra.Command, args []string) {
		paths := args
		matchTimeout := tokenize.DefaultConfig().MatchTimeout
		if len(paths) == 0 {
			config, err := tokenize.LoadConfig(cfgFile)
			exitOnError("Error loading configuration", err)
			paths = configGrammarPaths(config, filepath.Dir(cfgFile))
			matchTimeout = config.MatchTimeout
		}
		if len(paths) == 0 {
			fmt.Println("error: no grammars to check")
			os.Exit(1)
		}

		issues := runCheck(paths, matchTimeout)
		if len(issues) > 0 {
			fmt.Print(formatter.GenerateFormattedIssue(issues, nil))
			os.Exit(1)
		}
		fmt.Printf("%d grammar(s) compiled\n", len(paths))
	},
}

func configGrammarPaths(config tokenize.Config, baseDir string) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, p := range config.GrammarPaths(baseDir) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func runCheck(paths []string, matchTimeout time.Duration) []tt.Issue {
	logger.Debug("checking grammars", zap.Strings("paths", paths), zap.Duration("matchTimeout", matchTimeout))
	return tokenize.CheckGrammars(paths, matchTimeout)
}
