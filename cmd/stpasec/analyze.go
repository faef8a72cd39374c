package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stpasec/engine/internal/config"
	"github.com/stpasec/engine/internal/coordinator"
	"github.com/stpasec/engine/internal/llmadapter"
	"github.com/stpasec/engine/internal/llmadapter/providers"
	"github.com/stpasec/engine/internal/promptsaver"
	"github.com/stpasec/engine/internal/store"
	"github.com/stpasec/engine/internal/telemetry"
)

var (
	analyzeConfigPath string
	analyzeEnhanced   bool
	analyzeInputs     []string
	analyzeDatabase   string
	analyzeStep       int
	analyzeSavePrompts bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a Step 1 or Step 2 STPA-Sec analysis",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeConfigPath, "config", "", "path to the analysis YAML config (required)")
	analyzeCmd.Flags().BoolVar(&analyzeEnhanced, "enhanced", false, "override execution.mode to \"enhanced\"")
	analyzeCmd.Flags().StringSliceVar(&analyzeInputs, "input", nil, "override input.path with one source path, or input.inputs with several")
	analyzeCmd.Flags().StringVar(&analyzeDatabase, "use-database", "", "reuse an existing analysis database under output_dir instead of creating a new one")
	analyzeCmd.Flags().IntVar(&analyzeStep, "step", 1, "which phase graph to run: 1 or 2")
	analyzeCmd.Flags().BoolVar(&analyzeSavePrompts, "save-prompts", false, "capture every prompt/response pair under the run directory's prompts/")
	_ = analyzeCmd.MarkFlagRequired("config")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(analyzeConfigPath)
	if err != nil {
		return err
	}
	if analyzeEnhanced {
		cfg.Execution.Mode = config.ModeEnhanced
	}
	if len(analyzeInputs) == 1 {
		cfg.Input.Path = analyzeInputs[0]
	} else if len(analyzeInputs) > 1 {
		cfg.Input.Type = config.InputTypeInputs
		cfg.Input.Inputs = nil
		for _, p := range analyzeInputs {
			cfg.Input.Inputs = append(cfg.Input.Inputs, config.InputSource{Path: p})
		}
	}
	if analyzeStep != 1 && analyzeStep != 2 {
		return &config.ConfigError{Key: "--step", Msg: "must be 1 or 2"}
	}

	shutdownTracing, err := telemetry.Init(cmd.Context(), telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	provider, err := providers.New(cfg.Model)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	if err := llmadapter.Verify(ctx, provider); err != nil {
		cancel()
		return err
	}
	cancel()

	runDir, err := prepareRunDir(cfg, analyzeDatabase)
	if err != nil {
		return err
	}

	var adapterOpts []llmadapter.Option
	adapterOpts = append(adapterOpts, llmadapter.WithCredential(cfg.Model.APIKey))
	if analyzeSavePrompts {
		saver, err := promptsaver.New(runDir)
		if err != nil {
			return err
		}
		defer saver.Close()
		adapterOpts = append(adapterOpts, llmadapter.WithPromptSaver(saver))
	}
	llm := llmadapter.New(provider, adapterOpts...)

	gw, err := store.Open(filepath.Join(runDir, "store"))
	if err != nil {
		return err
	}
	defer gw.Close()

	c := coordinator.New(gw, llm, coordinator.WithExecutionMode(cfg.Execution.Mode))

	systemDescription, err := readSystemDescription(cfg)
	if err != nil {
		return err
	}

	analysisID := uuid.NewString()
	var reportErr error
	if analyzeStep == 1 {
		result, err := c.RunStep1(cmd.Context(), analysisID, cfg.Analysis.Name, cfg.Analysis.Name, systemDescription)
		if err != nil {
			return err
		}
		reportErr = persistResult(runDir, cfg, result)
		printSummary(analysisID, string(result.Validation.OverallStatus), len(result.Errors))
	} else {
		parent, err := gw.FetchLatestStep1ForDB()
		if err != nil {
			return fmt.Errorf("analyze: resolving step 1 parent for step 2 run: %w", err)
		}
		result, err := c.RunStep2(cmd.Context(), analysisID, parent.ID, cfg.Analysis.Name, cfg.Analysis.Name, systemDescription)
		if err != nil {
			return err
		}
		reportErr = persistResult(runDir, cfg, result)
		printSummary(analysisID, string(result.Validation.OverallStatus), len(result.Errors))
	}
	return reportErr
}

// prepareRunDir returns the directory a run's store and result sidecar
// files live under (spec.md §6.3): a fresh `<output_dir>/<timestamp>/`
// unless --use-database names an existing one to reuse.
func prepareRunDir(cfg *config.Config, database string) (string, error) {
	dir := filepath.Join(cfg.Analysis.OutputDir, database)
	if database == "" {
		dir = filepath.Join(cfg.Analysis.OutputDir, time.Now().UTC().Format("20060102T150405Z"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("analyze: creating run directory: %w", err)
	}
	return dir, nil
}

// readSystemDescription returns the free-text system description an
// analysis is framed against. Parsing structured input formats is out
// of scope (spec.md §1 Non-goals); a file's raw contents, or the
// concatenated list of configured input paths, stand in as the text an
// operator would otherwise have pasted directly into the config.
func readSystemDescription(cfg *config.Config) (string, error) {
	switch cfg.Input.Type {
	case config.InputTypeFile:
		data, err := os.ReadFile(cfg.Input.Path)
		if err != nil {
			return "", fmt.Errorf("analyze: reading input.path: %w", err)
		}
		return string(data), nil
	case config.InputTypeInputs:
		var names []string
		for _, in := range cfg.Input.Inputs {
			names = append(names, in.Path)
		}
		return "System described by: " + strings.Join(names, ", "), nil
	default:
		return "System rooted at: " + cfg.Input.Path, nil
	}
}

// persistResult writes the stripped config and full result sidecar
// files spec.md §6.3 describes.
func persistResult(runDir string, cfg *config.Config, result any) error {
	stripped, err := yaml.Marshal(cfg.Strip())
	if err != nil {
		return fmt.Errorf("analyze: marshaling stripped config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "analysis-config.yaml"), stripped, 0o644); err != nil {
		return fmt.Errorf("analyze: writing analysis-config.yaml: %w", err)
	}
	raw, err := marshalResult(result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(runDir, "analysis-results.json"), raw, 0o644); err != nil {
		return fmt.Errorf("analyze: writing analysis-results.json: %w", err)
	}
	return nil
}

func printSummary(analysisID, overallStatus string, agentErrorCount int) {
	fmt.Printf("analysis %s complete: status=%s errors=%d\n", analysisID, overallStatus, agentErrorCount)
}
