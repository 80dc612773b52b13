package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	getComponent   string
	getEnvironment string
)

// getCmd prints the version currently recorded for a pair. Useful as a
// pipeline preflight before deciding whether to deploy.
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the version recorded for a component/environment pair",
	RunE:  runGet,
}

func init() {
	getCmd.Flags().StringVar(&getComponent, "component", "", "component name as it appears in the table header")
	getCmd.Flags().StringVar(&getEnvironment, "environment", "", "environment name as it appears in the row label")
	_ = getCmd.MarkFlagRequired("component")
	_ = getCmd.MarkFlagRequired("environment")
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	u := newUpdater(cfg)
	version, err := u.Lookup(cmd.Context(), cfg.Confluence.PageID, getComponent, getEnvironment)
	if err != nil {
		return err
	}

	fmt.Println(version)
	return nil
}
