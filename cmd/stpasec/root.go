package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stpasec",
	Short: "STPA-Sec multi-agent analysis engine",
	Long: `stpasec drives an STPA-Sec Step 1 (problem framing) or Step 2
(control-structure analysis) run against a configured LLM provider,
persisting every artifact to a BadgerDB-backed analysis store.`,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(listCmd)
}
