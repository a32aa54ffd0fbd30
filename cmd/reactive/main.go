package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactive/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬─┐┌─┐┌─┐┌─┐┌┬┐┬┬  ┬┌─┐
  ├┬┘├┤ ├─┤│   │ │└┐┌┘├┤
  ┴└─└─┘┴ ┴└─┘ ┴ ┴ └┘ └─┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			errors.Print(os.Stderr, e)
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reactive",
		Short: "Fine-grained reactive runtime for Go",
		Long: `Reactive is a fine-grained reactive runtime for Go.

Signals hold state, memos derive from it and effects react to it.
Every node lives in an arena owned by a scope. This tool includes:

  • Runnable scenarios showing propagation, batching and disposal
  • A propagation benchmark
  • A live inspector with stats, an event stream and Prometheus metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		demoCmd(),
		benchCmd(),
		inspectCmd(),
		configCmd(),
		versionCmd(),
	)

	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
