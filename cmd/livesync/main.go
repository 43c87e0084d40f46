package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/livesync/internal/errors"
)

// Build information set at build time.
var (
	commit = "none"
	date   = "unknown"
)

const banner = `
  ╦  ┬┬  ┬┌─┐┌─┐┬ ┬┌┐┌┌─┐
  ║  │└┐┌┘├┤ └─┐└┬┘││││
  ╩═╝┴ └┘ └─┘└─┘ ┴ ┘└┘└─┘
`

func main() {
	if err := rootCmd().Execute(); err != nil {
		var se *errors.SyncError
		if errors.As(err, &se) {
			fmt.Fprint(os.Stderr, se.Format())
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "livesync",
		Short: "Headless client for server-driven UI sessions",
		Long: `livesync connects to a UI authority over WebSocket and keeps a
local document tree in sync with it.

The authority sends patches, remote scripts and navigation results;
livesync applies them, reports user events back, and recovers the
connection with exponential backoff.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		connectCmd(),
		versionCmd(),
	)
	return cmd
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
