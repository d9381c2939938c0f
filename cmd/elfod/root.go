package main

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for elfod.
var rootCmd = &cobra.Command{
	Use:   "elfod",
	Short: "elfod runs a demo elfo actor topology",
	Long: `elfod is a small demo daemon that wires a producer/aggregator
actor topology and runs it, exercising the elfo actor runtime end to end.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
}
