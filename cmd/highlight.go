package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gnoswap-labs/tmscope/formatter"
	tt "github.com/gnoswap-labs/tmscope/internal/types"
)

var forceColor bool

var highlightCmd = &cobra.Command{
	Use:   "highlight [paths...]",
	Short: "Print files with ANSI colors from the configured theme",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide file or directory paths")
			os.Exit(1)
		}
		if forceColor {
			color.NoColor = false
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		engine, config, err := loadEngine()
		exitOnError("Failed to initialize engine", err)
		applyIgnores(engine)

		theme := config.Theme
		if len(theme) == 0 {
			theme = formatter.DefaultTheme()
		}
		styles, err := theme.Compile()
		exitOnError("Invalid theme", err)

		results, err := collectResults(ctx, engine, args)
		exitOnError("Error processing files", err)

		err = writeOutput(outPath, func(w io.Writer) error {
			writeHighlighted(w, results, styles)
			return nil
		})
		exitOnError("Error writing output", err)

		reportIssues(results)
	},
}

func init() {
	highlightCmd.Flags().BoolVar(&forceColor, "color", false, "Emit colors even when the output is not a terminal")
}

func writeHighlighted(w io.Writer, results []*tt.FileResult, styles *formatter.Styles) {
	for _, res := range results {
		if len(results) > 1 {
			fmt.Fprintf(w, "==> %s <==\n", res.Filename)
		}
		fmt.Fprintln(w, formatter.Highlight(res.Lines, res.Tokens, styles))
	}
}
