// Command stpasec is the thin CLI surface around the STPA-Sec analysis
// engine (spec.md §6.2): it loads configuration, wires the LLM
// provider, and drives a Step 1 or Step 2 coordinator run. The
// methodology itself lives entirely in internal/; this package is
// wiring and output formatting only.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to spec.md §6.2's exit code table. Errors
// that don't fall into one of the three named categories are treated
// as analysis failures rather than silently succeeding.
func exitCodeFor(err error) int {
	switch {
	case isConfigError(err):
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return 1
	case isProviderAuthError(err):
		fmt.Fprintln(os.Stderr, "model verification error:", err)
		return 2
	default:
		fmt.Fprintln(os.Stderr, "analysis failed:", err)
		return 3
	}
}
