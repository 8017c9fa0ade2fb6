// Command purge-credential-cache drops cached token verdicts from Redis, for example
// after rotating TOKEN_ENCRYPTION_KEY or editing the users table by hand.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pscheid92/chatlabels/internal/adapter/redis"
	"github.com/pscheid92/chatlabels/internal/platform/logging"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	var (
		redisURL = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		phone    = flag.String("phone", "", "Only purge entries for this phone number")
		dryRun   = flag.Bool("dry-run", false, "Count matching keys without deleting them")
		verbose  = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	opts, err := goredis.ParseURL(*redisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	rdb := goredis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	start := time.Now()
	stats, err := redis.PurgeCredentialCache(ctx, rdb, strings.TrimSpace(*phone), *dryRun)
	if err != nil {
		log.Fatalf("Purge failed: %v", err)
	}

	slog.Info("Purge summary",
		"scanned", stats.Scanned,
		"deleted", stats.Deleted,
		"dry_run", *dryRun,
		"duration_ms", time.Since(start).Milliseconds())
}

func sanitizeURL(url string) string {
	// Hide password in Redis URL for logging
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			credParts := strings.Split(parts[0], ":")
			if len(credParts) >= 2 {
				return strings.Join(credParts[:len(credParts)-1], ":") + ":***@" + parts[1]
			}
		}
	}
	return url
}
