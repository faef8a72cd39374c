package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stpasec/engine/internal/coordinator"
	"github.com/stpasec/engine/internal/llmadapter"
	"github.com/stpasec/engine/internal/store"
)

var (
	demoName        string
	demoDatabaseDir string
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Load a pre-baked analysis-results.json and re-populate the store",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoName, "name", "", "demo directory name under ./demos (required)")
	demoCmd.Flags().StringVar(&demoDatabaseDir, "use-database", "", "directory to write the repopulated store into (defaults to ./demos/<name>/store)")
	_ = demoCmd.MarkFlagRequired("name")
}

// runDemo implements spec.md §6.2's `demo --name <id>`: it reads a
// previously persisted analysis-results.json sidecar and replays it
// into a fresh store through the same artifact-insert path a live
// coordinator run uses, treating the result as a committed version
// with version_type="loaded" (spec.md §9 Open Questions) rather than a
// draft pending commit.
func runDemo(cmd *cobra.Command, args []string) error {
	demoDir := filepath.Join("demos", demoName)
	resultsPath := filepath.Join(demoDir, "analysis-results.json")
	raw, err := os.ReadFile(resultsPath)
	if err != nil {
		return fmt.Errorf("demo: reading %s: %w", resultsPath, err)
	}

	storeDir := demoDatabaseDir
	if storeDir == "" {
		storeDir = filepath.Join(demoDir, "store")
	}
	gw, err := store.Open(storeDir)
	if err != nil {
		return err
	}
	defer gw.Close()

	c := coordinator.New(gw, llmadapter.New(nil))
	analysisID := uuid.NewString()

	var probe struct {
		Mission    json.RawMessage `json:"Mission"`
		Components json.RawMessage `json:"Components"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("demo: parsing %s: %w", resultsPath, err)
	}

	switch {
	case len(probe.Components) > 0 && string(probe.Components) != "null":
		var result coordinator.Step2Result
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("demo: decoding step 2 result: %w", err)
		}
		if err := c.LoadStep2Demo(analysisID, result.ParentAnalysisID, demoName, "loaded demo: "+demoName, result, raw); err != nil {
			return fmt.Errorf("demo: repopulating store: %w", err)
		}
	case len(probe.Mission) > 0 && string(probe.Mission) != "null":
		var result coordinator.Step1Result
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("demo: decoding step 1 result: %w", err)
		}
		if err := c.LoadStep1Demo(analysisID, demoName, "loaded demo: "+demoName, result, raw); err != nil {
			return fmt.Errorf("demo: repopulating store: %w", err)
		}
	default:
		return fmt.Errorf("demo: %s does not look like a Step 1 or Step 2 analysis-results.json", resultsPath)
	}

	fmt.Printf("demo %q loaded into %s (analysis_id=%s)\n", demoName, storeDir, analysisID)
	return nil
}
