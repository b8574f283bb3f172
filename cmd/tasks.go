package cmd

import (
	"context"
	"errors"
	"fmt"

	"spinnergy/models"
	"spinnergy/service"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Demo account created by Seed
const (
	DemoAccountID   = "u_demo"
	DemoAccountName = "Demo User"
)

// DemoBalance is the balance Seed gives a fresh demo account
var DemoBalance = decimal.RequireFromString("123.4")

// Seed opens the demo account and credits it once. Running it again is a no-op.
func Seed(ctx context.Context, app *App) (*models.Account, error) {
	_, err := app.Ledger.OpenAccount(ctx, DemoAccountID, DemoAccountName)
	if errors.Is(err, service.ErrAccountExists) {
		log.WithField("accountID", DemoAccountID).Info("Demo account already exists")
		return app.Ledger.GetAccount(ctx, DemoAccountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open demo account: %w", err)
	}

	if _, err := app.Ledger.Credit(ctx, DemoAccountID, DemoBalance, models.ReasonSeed); err != nil {
		return nil, fmt.Errorf("failed to credit demo account: %w", err)
	}

	account, err := app.Ledger.GetAccount(ctx, DemoAccountID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"accountID": account.ID,
		"balance":   account.Balance.String(),
	}).Info("Seeded demo account")
	return account, nil
}

// Audit replays every account and logs the ones whose balance disagrees with its events
func Audit(ctx context.Context, app *App) ([]service.AuditMismatch, error) {
	mismatches, err := app.Ledger.Audit(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range mismatches {
		log.WithFields(log.Fields{
			"accountID": m.AccountID,
			"balance":   m.Balance.String(),
			"replayed":  m.Replayed.String(),
			"version":   m.Version,
			"events":    m.Events,
		}).Error("Ledger mismatch")
	}
	log.WithField("mismatches", len(mismatches)).Info("Audit finished")

	return mismatches, nil
}

// RebuildLeaderboard empties the ranking cache and fills it from committed balances
func RebuildLeaderboard(ctx context.Context, app *App) (int, error) {
	if app.Cached == nil {
		return 0, fmt.Errorf("leaderboard strategy %q has no cache to rebuild", app.Config.LeaderboardStrategy)
	}

	if err := app.Cache.Clear(ctx); err != nil {
		return 0, err
	}
	return app.Cached.Rebuild(ctx)
}
