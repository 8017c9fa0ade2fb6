package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

const purgeScanCount = 100

type PurgeStats struct {
	Scanned int
	Deleted int
}

// PurgeCredentialCache removes cached verification verdicts. An empty phone purges every
// phone. In dry-run mode keys are counted but left in place.
func PurgeCredentialCache(ctx context.Context, rdb *goredis.Client, phone string, dryRun bool) (PurgeStats, error) {
	pattern := "credential:*"
	if phone != "" {
		pattern = fmt.Sprintf("credential:{%s}:*", phone)
	}

	var stats PurgeStats
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, pattern, purgeScanCount).Result()
		if err != nil {
			return stats, fmt.Errorf("scan failed: %w", err)
		}
		stats.Scanned += len(keys)

		if len(keys) > 0 && !dryRun {
			// keys may live in different cluster slots
			_, err := rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
				for _, key := range keys {
					pipe.Del(ctx, key)
				}
				return nil
			})
			if err != nil {
				return stats, fmt.Errorf("delete failed: %w", err)
			}
			stats.Deleted += len(keys)
		}
		for _, key := range keys {
			slog.DebugContext(ctx, "Purged credential cache key", "key", key, "dry_run", dryRun)
		}

		cursor = next
		if cursor == 0 {
			return stats, nil
		}
	}
}
