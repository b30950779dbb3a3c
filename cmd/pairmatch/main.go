// Command pairmatch pairs A and B components by flow ratio and assigns each
// pairing a calibrated sensor that keeps the combined output inside the
// specification envelope.
//
// Usage:
//
//	pairmatch plan   --config config.yaml   # dry run, prints the result as JSON
//	pairmatch commit --config config.yaml   # plan and allocate the assignments
//	pairmatch serve  --config config.yaml   # re-plan on config change, serve the API
//	pairmatch seed   --config config.yaml inventory.yaml
//	pairmatch check-config --config config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pairmatch/pairmatch/internal/config"
	"github.com/pairmatch/pairmatch/internal/engine"
	"github.com/pairmatch/pairmatch/internal/inventory"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "pairmatch",
	Short:         "Component pairing and calibration matching",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		// Results go to stdout; logs stay on stderr so plan output can be piped.
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(planCmd, commitCmd, serveCmd, seedCmd, checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("pairmatch: failed", "err", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and derives the run parameters.
func loadConfig() (*config.Config, engine.Params, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, engine.Params{}, err
	}
	p, err := engine.ParamsFromConfig(cfg.Matching)
	if err != nil {
		return nil, engine.Params{}, fmt.Errorf("config: %w", err)
	}
	return cfg, p, nil
}

// openRepo opens the configured inventory backend. The returned close func
// must be called when the repository is no longer needed.
func openRepo(ctx context.Context, cfg config.InventoryConfig) (engine.Repository, func() error, error) {
	switch cfg.Driver {
	case "memory":
		snap, err := inventory.LoadFile(cfg.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		m := inventory.NewMemory()
		m.Load(snap)
		slog.Info("inventory: loaded seed into memory",
			"file", cfg.SeedFile,
			"components", len(snap.Components),
			"calibrations", len(snap.Calibrations),
		)
		return m, func() error { return nil }, nil

	case "sqlite":
		db, err := inventory.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		if cfg.SeedFile != "" {
			snap, err := inventory.LoadFile(cfg.SeedFile)
			if err != nil {
				db.Close()
				return nil, nil, err
			}
			if err := db.Import(ctx, snap); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		slog.Info("inventory: opened sqlite", "path", db.Path())
		return db, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("inventory: unknown driver %q", cfg.Driver)
	}
}
