package ranking

import (
	"context"
	"errors"
	"fmt"

	"spinnergy/models"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// upsertScript writes score, version and name only when the version is newer.
// KEYS: ranking zset, versions hash, names hash, exact scores hash.
// ARGV: member, negated score, version, name, exact score.
var upsertScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[2], ARGV[1]) or '-1')
if tonumber(ARGV[3]) <= current then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[4])
redis.call('HSET', KEYS[4], ARGV[1], ARGV[5])
return 1
`)

// RedisCache keeps the ranking in a Redis sorted set. Scores are stored negated so
// that ascending ZRANGE order gives the highest balance first with ties broken by
// account id ascending. The sorted set only orders; the committed decimal score is
// read back from a separate hash.
type RedisCache struct {
	client      redis.UniversalClient
	key         string
	versionsKey string
	namesKey    string
	scoresKey   string
}

// NewRedisCache creates a cache under key
func NewRedisCache(client redis.UniversalClient, key string) *RedisCache {
	return &RedisCache{
		client:      client,
		key:         key,
		versionsKey: key + ":versions",
		namesKey:    key + ":names",
		scoresKey:   key + ":scores",
	}
}

// Upsert applies an update if its version is newer than the stored one
func (c *RedisCache) Upsert(ctx context.Context, update models.RankingUpdate) (bool, error) {
	score, _ := update.Score.Neg().Float64()

	applied, err := upsertScript.Run(ctx, c.client,
		[]string{c.key, c.versionsKey, c.namesKey, c.scoresKey},
		update.AccountID, score, update.Version, update.Name, update.Score.String(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to upsert ranking: %w", err)
	}
	return applied == 1, nil
}

// Top returns the first n entries
func (c *RedisCache) Top(ctx context.Context, n int) ([]*models.LeaderboardEntry, error) {
	if n <= 0 {
		return []*models.LeaderboardEntry{}, nil
	}

	scored, err := c.client.ZRangeWithScores(ctx, c.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ranking: %w", err)
	}
	if len(scored) == 0 {
		return []*models.LeaderboardEntry{}, nil
	}

	members := make([]string, len(scored))
	for i, z := range scored {
		members[i] = z.Member.(string)
	}
	names, err := c.client.HMGet(ctx, c.namesKey, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ranking names: %w", err)
	}

	scores, err := c.client.HMGet(ctx, c.scoresKey, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ranking scores: %w", err)
	}

	entries := make([]*models.LeaderboardEntry, len(scored))
	for i, z := range scored {
		name, _ := names[i].(string)
		score := decimal.NewFromFloat(-z.Score).Round(1)
		if exact, ok := scores[i].(string); ok {
			if parsed, err := decimal.NewFromString(exact); err == nil {
				score = parsed
			}
		}
		entries[i] = &models.LeaderboardEntry{
			Rank:      i + 1,
			AccountID: members[i],
			Name:      name,
			Score:     score,
		}
	}
	return entries, nil
}

// Rank returns the 1-based position of an account or models.NotRanked
func (c *RedisCache) Rank(ctx context.Context, accountID string) (int, error) {
	rank, err := c.client.ZRank(ctx, c.key, accountID).Result()
	if errors.Is(err, redis.Nil) {
		return models.NotRanked, nil
	}
	if err != nil {
		return models.NotRanked, fmt.Errorf("failed to read rank: %w", err)
	}
	return int(rank) + 1, nil
}

// Clear drops the ranking keys
func (c *RedisCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key, c.versionsKey, c.namesKey, c.scoresKey).Err(); err != nil {
		return fmt.Errorf("failed to clear ranking: %w", err)
	}
	return nil
}

// NewRedisClient connects to the Redis instance at url and checks it is reachable
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
