package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"

	// Register connectors and state backends
	_ "github.com/ajitpratap0/taboola-tap/pkg/connector/destinations"
	_ "github.com/ajitpratap0/taboola-tap/pkg/connector/sources/taboola"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tap-taboola",
		Short: "Incremental extractor for the Taboola Backstage API",
		Long: `tap-taboola extracts accounts, campaigns, campaign items and daily
campaign reports from the Taboola Backstage API. Records and state checkpoints
are written as RECORD and STATE messages; bookmarks persist between runs.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tap-taboola v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available destinations and state backends",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Destinations:")
			for _, name := range registry.ListDestinations() {
				fmt.Fprintf(out, "  - %s\n", name)
			}
			fmt.Fprintln(out, "\nState backends:")
			for _, name := range registry.ListStateBackends() {
				fmt.Fprintf(out, "  - %s\n", name)
			}
		},
	})

	root.AddCommand(newRunCommand(), newDiscoverCommand())
	return root
}
