package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pairmatch/pairmatch/internal/alerts"
	"github.com/pairmatch/pairmatch/internal/config"
	"github.com/pairmatch/pairmatch/internal/engine"
	"github.com/pairmatch/pairmatch/internal/inventory"
)

var seedCmd = &cobra.Command{
	Use:   "seed <inventory.yaml>",
	Short: "Import a YAML inventory into the SQLite database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		snap, err := inventory.LoadFile(args[0])
		if err != nil {
			return err
		}
		db, err := inventory.OpenSQLite(cfg.Inventory.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Import(cmd.Context(), snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d components and %d calibrations into %s\n",
			len(snap.Components), len(snap.Calibrations), db.Path())
		return nil
	},
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the config file and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if _, err := engine.ParamsFromConfig(cfg.Matching); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if _, err := alerts.New(cfg.Alerts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (%d envelope points, %d alert rules, driver %s)\n",
			configPath, len(cfg.Matching.Envelope.Points), len(cfg.Alerts.Rules), cfg.Inventory.Driver)
		return nil
	},
}
