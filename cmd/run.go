package cmd

import (
	"context"
	"fmt"

	"spinnergy/config"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.Info("Starting spinnergy ledger...")

	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	// Seed the cache before serving reads, then keep it reconciled
	if app.Cached != nil {
		if _, err := app.Cached.Rebuild(ctx); err != nil {
			log.WithError(err).Warn("Initial leaderboard rebuild failed")
		}

		reconcile := func(ctx context.Context) error {
			_, err := app.Cached.Rebuild(ctx)
			return err
		}
		if err := app.Janitor.Schedule(cfg.LeaderboardReconcileSchedule, "leaderboard-reconcile", reconcile); err != nil {
			return err
		}
	}

	stopJanitor, err := app.Janitor.Start(ctx, cfg.RetentionPruneSchedule)
	if err != nil {
		return fmt.Errorf("failed to start retention janitor: %w", err)
	}
	defer stopJanitor()

	log.WithField("environment", cfg.Environment).Info("Ledger is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	return nil
}
