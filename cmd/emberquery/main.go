// Command emberquery runs SQL batches against an Ember engine and prints the
// results as tables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	ember "github.com/emberdb/goember"
	"github.com/spf13/cobra"
)

// Version is set by the build.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:     "emberquery",
		Short:   "Run SQL against an Ember engine",
		Version: fmt.Sprintf("%s (driver %s)", Version, ember.EmberGoDriverVersion),
		// errors are printed by main
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	opts := &connectOptions{}
	opts.register(rootCmd)

	rootCmd.AddCommand(newQueryCommand(opts))
	rootCmd.AddCommand(newSubmitCommand(opts))
	rootCmd.AddCommand(newStatusCommand(opts))
	rootCmd.AddCommand(newAbortCommand(opts))
	return rootCmd.ExecuteContext(ctx)
}
