// Command corortctl is a small operational harness around corort: it can
// load and run a compiled plugin module against a fresh Scheduler, or run
// a quick channel throughput benchmark.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "corortctl",
		Short:         "Operate and exercise corort schedulers from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newBenchCmd())
	return root
}
