package main

import (
	"fmt"

	"vertable/internal/updater"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	updateComponent   string
	updateEnvironment string
	updateVersion     string
	updateDryRun      bool
)

// updateCmd performs the single-cell version update.
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Set the version for a component/environment pair",
	Long: `Replaces the version text in the table cell where the component column
meets the environment row, then writes the page back with its version
number incremented.

Example:
  vertable update --component app --environment DEV --version 1.4.2`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateComponent, "component", "", "component name as it appears in the table header")
	updateCmd.Flags().StringVar(&updateEnvironment, "environment", "", "environment name as it appears in the row label")
	updateCmd.Flags().StringVar(&updateVersion, "version", "", "version string to record")
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "resolve the cell and report, but do not write")
	_ = updateCmd.MarkFlagRequired("component")
	_ = updateCmd.MarkFlagRequired("environment")
	_ = updateCmd.MarkFlagRequired("version")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("Processing update",
		zap.String("component", updateComponent),
		zap.String("environment", updateEnvironment),
		zap.String("version", updateVersion))

	u := newUpdater(cfg)
	result, err := u.Run(cmd.Context(), updater.Request{
		PageID:      cfg.Confluence.PageID,
		Component:   updateComponent,
		Environment: updateEnvironment,
		Version:     updateVersion,
		DryRun:      updateDryRun,
	})
	if err != nil {
		return err
	}

	if !result.Updated {
		fmt.Printf("Dry run: %s/%s would change %q -> %q on page %s (version %d)\n",
			updateComponent, updateEnvironment, result.Previous, result.Version,
			result.PageID, result.PageVersion)
		return nil
	}

	fmt.Printf("Updated %s/%s from %q to %q on page %s (version %d)\n",
		updateComponent, updateEnvironment, result.Previous, result.Version,
		result.PageID, result.PageVersion)
	return nil
}
