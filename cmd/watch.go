package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gnoswap-labs/tmscope/internal"
	"github.com/gnoswap-labs/tmscope/internal/document"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Keep files tokenized, re-tokenizing only the lines a change affects",
	Run: func(cmd *cobra.Command, args []string) {
		dirs := args
		if len(dirs) == 0 {
			dirs = []string{"."}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine, _, err := loadEngine(internal.WithWatchHandler(printUpdate))
		exitOnError("Failed to initialize engine", err)

		exitOnError("Error starting watch mode", engine.StartWatching(ctx, dirs...))
		fmt.Printf("watching %v, press Ctrl+C to stop\n", dirs)

		<-ctx.Done()
		exitOnError("Error stopping watch mode", engine.StopWatching())
	},
}

func printUpdate(filename string, res document.EditResult) {
	fmt.Println(describeUpdate(filename, res))
}

func describeUpdate(filename string, res document.EditResult) string {
	if res.Retokenized == 0 {
		return fmt.Sprintf("%s: no lines re-tokenized", filename)
	}
	msg := fmt.Sprintf("%s: re-tokenized %d line(s), %d-%d", filename, res.Retokenized, res.FirstLine+1, res.LastLine+1)
	if res.StoppedEarly {
		msg += " (state converged)"
	}
	return msg
}
