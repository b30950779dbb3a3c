package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pairmatch/pairmatch/internal/engine"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute pairings and assignments without committing them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(cmd, false)
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Compute assignments and allocate them in the inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(cmd, true)
	},
}

func runPlan(cmd *cobra.Command, commit bool) error {
	cfg, p, err := loadConfig()
	if err != nil {
		return err
	}
	repo, closeRepo, err := openRepo(cmd.Context(), cfg.Inventory)
	if err != nil {
		return err
	}
	defer closeRepo() //nolint:errcheck

	run, runErr := engine.NewRunner(repo).Run(cmd.Context(), p, commit)
	if run != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encode run: %w", err)
		}
	}
	return runErr
}
