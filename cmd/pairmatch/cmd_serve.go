package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pairmatch/pairmatch/internal/alerts"
	"github.com/pairmatch/pairmatch/internal/api"
	"github.com/pairmatch/pairmatch/internal/auth"
	"github.com/pairmatch/pairmatch/internal/config"
	"github.com/pairmatch/pairmatch/internal/engine"
	"github.com/pairmatch/pairmatch/internal/store"
	"github.com/pairmatch/pairmatch/internal/ws"
)

const (
	shutdownTimeout = 5 * time.Second
	hubInterval     = 2 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Plan on every config change and serve the run history over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, p, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("pairmatch: config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"history_ttl", cfg.Server.HistoryTTL,
		"driver", cfg.Inventory.Driver,
		"target_ratio", p.TargetRatio,
		"tolerance", p.Tolerance,
	)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, closeRepo, err := openRepo(ctx, cfg.Inventory)
	if err != nil {
		return err
	}
	defer closeRepo() //nolint:errcheck

	al, err := alerts.New(cfg.Alerts)
	if err != nil {
		return err
	}

	st := store.New(cfg.Server.HistoryTTL)
	runner := engine.NewRunner(repo)
	replan := func(p engine.Params) {
		run, err := runner.Run(ctx, p, false)
		if err != nil {
			slog.Error("pairmatch: plan failed", "err", err)
			return
		}
		st.Put(run)
		al.Evaluate(run)
	}
	replan(p)

	hub := ws.New(st, hubInterval)
	httpMux := http.NewServeMux()
	httpMux.Handle("/", api.New(st, al))
	httpMux.Handle("/ws/runs", hub)

	a := cfg.Server.Auth
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           auth.APIKey(a.Mode, a.EffectiveHeader(), a.Key(), httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return config.Watch(gctx, configPath, func(next *config.Config) {
			if changed := restartSections(cfg, next); len(changed) > 0 {
				slog.Warn("pairmatch: reload applies matching only; restart to apply other changes",
					"sections", changed)
			}
			np, err := engine.ParamsFromConfig(next.Matching)
			if err != nil {
				slog.Error("pairmatch: reloaded config rejected", "err", err)
				return
			}
			replan(np)
		})
	})
	g.Go(func() error {
		slog.Info("pairmatch: HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("pairmatch: shutting down")
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		err := httpSrv.Shutdown(sctx)
		al.Wait()
		return err
	})
	return g.Wait()
}

// restartSections names the config sections that differ between the running
// config and next. serve only applies matching on reload.
func restartSections(running, next *config.Config) []string {
	var out []string
	if !cmp.Equal(running.Inventory, next.Inventory) {
		out = append(out, "inventory")
	}
	if !cmp.Equal(running.Server, next.Server) {
		out = append(out, "server")
	}
	if !cmp.Equal(running.Alerts, next.Alerts) {
		out = append(out, "alerts")
	}
	return out
}
