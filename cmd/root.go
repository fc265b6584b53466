// Package cmd defines the CLI commands for the instasweep executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instasweep",
		Short: "Enumerates the instaud.io short-code space and archives what it finds",
		Long: `instasweep walks every 3- and 4-character base36 share code, probes the
corresponding page, and appends one record per code to a durable CSV.
Interrupted runs resume where they left off: codes already settled in
the output file are never probed again.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus SWEEP_* env)")
	cmd.AddCommand(newSweepCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
