// Package ranking holds the ranking caches behind the cached leaderboard.
// Both keep one entry per account ordered by score descending, then account id
// ascending, and ignore updates that are not newer than what they hold.
package ranking

import (
	"context"
	"sort"
	"sync"

	"spinnergy/models"

	"github.com/shopspring/decimal"
)

type memoryEntry struct {
	id      string
	name    string
	score   decimal.Decimal
	version int64
}

// before orders entries by score descending, then id ascending
func (e *memoryEntry) before(o *memoryEntry) bool {
	if c := e.score.Cmp(o.score); c != 0 {
		return c > 0
	}
	return e.id < o.id
}

// MemoryCache is an in-process sorted set
type MemoryCache struct {
	mu      sync.RWMutex
	byID    map[string]*memoryEntry
	ordered []*memoryEntry
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{byID: make(map[string]*memoryEntry)}
}

// Upsert applies an update if its version is newer than the stored one
func (c *MemoryCache) Upsert(ctx context.Context, update models.RankingUpdate) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byID[update.AccountID]; ok {
		if update.Version <= existing.version {
			return false, nil
		}
		c.remove(existing)
	}

	entry := &memoryEntry{
		id:      update.AccountID,
		name:    update.Name,
		score:   update.Score,
		version: update.Version,
	}
	i := c.search(entry)
	c.ordered = append(c.ordered, nil)
	copy(c.ordered[i+1:], c.ordered[i:])
	c.ordered[i] = entry
	c.byID[entry.id] = entry

	return true, nil
}

// search returns the index of the first entry not ordered before e
func (c *MemoryCache) search(e *memoryEntry) int {
	return sort.Search(len(c.ordered), func(i int) bool {
		return !c.ordered[i].before(e)
	})
}

func (c *MemoryCache) remove(e *memoryEntry) {
	i := c.search(e)
	c.ordered = append(c.ordered[:i], c.ordered[i+1:]...)
	delete(c.byID, e.id)
}

// Top returns the first n entries
func (c *MemoryCache) Top(ctx context.Context, n int) ([]*models.LeaderboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > len(c.ordered) {
		n = len(c.ordered)
	}
	if n < 0 {
		n = 0
	}

	entries := make([]*models.LeaderboardEntry, n)
	for i := 0; i < n; i++ {
		e := c.ordered[i]
		entries[i] = &models.LeaderboardEntry{
			Rank:      i + 1,
			AccountID: e.id,
			Name:      e.name,
			Score:     e.score,
		}
	}
	return entries, nil
}

// Rank returns the 1-based position of an account or models.NotRanked
func (c *MemoryCache) Rank(ctx context.Context, accountID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return models.NotRanked, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byID[accountID]
	if !ok {
		return models.NotRanked, nil
	}
	return c.search(e) + 1, nil
}

// Clear drops every entry
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = make(map[string]*memoryEntry)
	c.ordered = nil
	return nil
}
