package service

import (
	"context"
	"sort"
	"time"

	"spinnergy/events"
	"spinnergy/models"

	log "github.com/sirupsen/logrus"
)

// DefaultLeaderboardSize is the length of the public leaderboard
const DefaultLeaderboardSize = 20

// DefaultSyncTimeout bounds a single ranking cache update
const DefaultSyncTimeout = 2 * time.Second

// RankAccounts orders accounts by balance descending, then id ascending, and assigns 1-based ranks
func RankAccounts(accounts []*models.Account) []*models.LeaderboardEntry {
	sorted := make([]*models.Account, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Balance.Cmp(sorted[j].Balance); c != 0 {
			return c > 0
		}
		return sorted[i].ID < sorted[j].ID
	})

	entries := make([]*models.LeaderboardEntry, len(sorted))
	for i, account := range sorted {
		entries[i] = &models.LeaderboardEntry{
			Rank:      i + 1,
			AccountID: account.ID,
			Name:      account.Name,
			Score:     account.Balance,
		}
	}
	return entries
}

// recomputeLeaderboard sorts every account on each read
type recomputeLeaderboard struct {
	ledger LedgerService
}

// NewRecomputeLeaderboard creates a leaderboard that reads the ledger store on every call
func NewRecomputeLeaderboard(ledger LedgerService) Leaderboard {
	return &recomputeLeaderboard{ledger: ledger}
}

// TopN returns at most n entries
func (l *recomputeLeaderboard) TopN(ctx context.Context, n int) ([]*models.LeaderboardEntry, error) {
	if n <= 0 {
		return []*models.LeaderboardEntry{}, nil
	}

	accounts, err := l.ledger.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	entries := RankAccounts(accounts)
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// PositionOf returns the 1-based rank of an account or models.NotRanked
func (l *recomputeLeaderboard) PositionOf(ctx context.Context, id string) (int, error) {
	accounts, err := l.ledger.ListAccounts(ctx)
	if err != nil {
		return models.NotRanked, err
	}

	for _, entry := range RankAccounts(accounts) {
		if entry.AccountID == id {
			return entry.Rank, nil
		}
	}
	return models.NotRanked, nil
}

// CachedLeaderboard serves reads from a ranking cache that is patched after each commit
type CachedLeaderboard struct {
	cache       RankingCache
	ledger      LedgerService
	metrics     Metrics
	syncTimeout time.Duration
}

// NewCachedLeaderboard creates a leaderboard backed by cache
func NewCachedLeaderboard(cache RankingCache, ledger LedgerService, metrics Metrics) *CachedLeaderboard {
	return &CachedLeaderboard{
		cache:       cache,
		ledger:      ledger,
		metrics:     metricsOrNoop(metrics),
		syncTimeout: DefaultSyncTimeout,
	}
}

// TopN returns at most n entries
func (l *CachedLeaderboard) TopN(ctx context.Context, n int) ([]*models.LeaderboardEntry, error) {
	if n <= 0 {
		return []*models.LeaderboardEntry{}, nil
	}
	return l.cache.Top(ctx, n)
}

// PositionOf returns the 1-based rank of an account or models.NotRanked
func (l *CachedLeaderboard) PositionOf(ctx context.Context, id string) (int, error) {
	return l.cache.Rank(ctx, id)
}

// Attach subscribes the cache to committed ledger events
func (l *CachedLeaderboard) Attach(bus EventSubscriber) {
	bus.Subscribe(events.EventTypeAccountCreated, func(ctx context.Context, event events.Event) {
		e, ok := event.(events.AccountCreatedEvent)
		if !ok {
			return
		}
		l.sync(ctx, models.RankingUpdate{AccountID: e.AccountID, Name: e.Name, Version: 0})
	})

	bus.Subscribe(events.EventTypeLedgerCommitted, func(ctx context.Context, event events.Event) {
		e, ok := event.(events.LedgerCommittedEvent)
		if !ok {
			return
		}
		l.sync(ctx, models.RankingUpdate{
			AccountID: e.AccountID,
			Name:      e.Name,
			Score:     e.Balance,
			Version:   e.Version,
		})
	})
}

// sync applies one update. Failures only cost freshness, so they are logged and counted.
func (l *CachedLeaderboard) sync(ctx context.Context, update models.RankingUpdate) {
	ctx, cancel := context.WithTimeout(ctx, l.syncTimeout)
	defer cancel()

	applied, err := l.cache.Upsert(ctx, update)
	if err != nil {
		l.metrics.RecordLeaderboardSyncFailure(syncFailureReason(err))
		log.WithFields(log.Fields{
			"accountID": update.AccountID,
			"version":   update.Version,
			"error":     err,
		}).Warn("Failed to update leaderboard cache")
		return
	}

	if !applied {
		log.WithFields(log.Fields{
			"accountID": update.AccountID,
			"version":   update.Version,
		}).Debug("Ignored stale leaderboard update")
	}
}

// Rebuild reconciles the cache with every committed account. It returns how many entries changed.
func (l *CachedLeaderboard) Rebuild(ctx context.Context) (int, error) {
	accounts, err := l.ledger.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, account := range accounts {
		applied, err := l.cache.Upsert(ctx, models.RankingUpdate{
			AccountID: account.ID,
			Name:      account.Name,
			Score:     account.Balance,
			Version:   account.Version,
		})
		if err != nil {
			l.metrics.RecordLeaderboardSyncFailure(syncFailureReason(err))
			return changed, storageError("rebuild leaderboard cache", err)
		}
		if applied {
			changed++
		}
	}

	log.WithFields(log.Fields{
		"accounts": len(accounts),
		"changed":  changed,
	}).Info("Leaderboard cache reconciled")

	return changed, nil
}
