// Command faultscope is the operator CLI: look codes up, run the analysis
// chain locally, harvest and import codes, and watch live events.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "faultscope",
		Short:         "Fault code lookup and analysis",
		Long:          "faultscope resolves equipment fault codes from a local table,\nweb sources and a chat-completion model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	root.Version = version

	root.AddCommand(
		newLookupCmd(),
		newAnalyzeCmd(),
		newHarvestCmd(),
		newImportCmd(),
		newWatchCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
