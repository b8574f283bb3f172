package models

import "github.com/shopspring/decimal"

// NotRanked is returned as the position of an account that has no leaderboard entry
const NotRanked = 0

// LeaderboardEntry is a derived, ranked view of one account's balance
type LeaderboardEntry struct {
	Rank      int             `json:"rank"`
	AccountID string          `json:"account_id"`
	Name      string          `json:"name"`
	Score     decimal.Decimal `json:"score"`
}

// RankingUpdate carries a committed balance to a ranking cache.
// Version is the account version that produced Score and is used to
// discard stale or duplicated deliveries.
type RankingUpdate struct {
	AccountID string
	Name      string
	Score     decimal.Decimal
	Version   int64
}
