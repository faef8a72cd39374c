package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stpasec/engine/internal/config"
	"github.com/stpasec/engine/internal/store"
)

var listConfigPath string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Enumerate analysis databases under the configured output directory",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listConfigPath, "config", "", "path to the analysis YAML config (required)")
	_ = listCmd.MarkFlagRequired("config")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(listConfigPath)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(cfg.Analysis.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no analysis databases found under", cfg.Analysis.OutputDir)
			return nil
		}
		return fmt.Errorf("list: reading %s: %w", cfg.Analysis.OutputDir, err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATABASE\tANALYSIS_ID\tSTEP\tSTATUS\tQUALITY\tVERSION_TYPE")
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dbDir := filepath.Join(cfg.Analysis.OutputDir, entry.Name(), "store")
		if _, err := os.Stat(dbDir); err != nil {
			continue
		}
		gw, err := store.Open(dbDir)
		if err != nil {
			fmt.Fprintf(w, "%s\t<error>\t\t%v\t\t\n", entry.Name(), err)
			continue
		}
		analyses, err := gw.ListAnalyses()
		gw.Close()
		if err != nil {
			fmt.Fprintf(w, "%s\t<error>\t\t%v\t\t\n", entry.Name(), err)
			continue
		}
		for _, a := range analyses {
			versionType := a.VersionType
			if versionType == "" {
				versionType = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.1f\t%s\n", entry.Name(), a.ID, a.Step, a.Status, a.QualityScore, versionType)
		}
	}
	return w.Flush()
}
