package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pscheid92/chatlabels/internal/adapter/metrics"
	"github.com/pscheid92/chatlabels/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const negativeCacheTTL = 30 * time.Second

// CredentialCache decorates a domain.CredentialStore with a read-through cache of
// verification verdicts. Each phone has two hashes, one for accepted and one for rejected
// token digests, so a rejection never shortens the lifetime of cached acceptances.
// Writes through Insert and Delete drop both hashes.
type CredentialCache struct {
	rdb     goredis.Cmdable
	store   domain.CredentialStore
	ttl     time.Duration
	metrics *metrics.CacheMetrics
	group   singleflight.Group
}

var _ domain.CredentialStore = (*CredentialCache)(nil)

func NewCredentialCache(rdb goredis.Cmdable, store domain.CredentialStore, ttl time.Duration, m *metrics.CacheMetrics) *CredentialCache {
	return &CredentialCache{rdb: rdb, store: store, ttl: ttl, metrics: m}
}

func (c *CredentialCache) Verify(ctx context.Context, phone, token string) (bool, error) {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(token) == "" {
		return false, nil
	}

	digest := tokenDigest(token)
	if verdict, ok := c.lookup(ctx, phone, digest); ok {
		return verdict, nil
	}
	c.metrics.Misses.Inc()

	v, err, _ := c.group.Do(phone+"\x00"+digest, func() (any, error) {
		ok, err := c.store.Verify(ctx, phone, token)
		if err != nil {
			return false, err
		}
		c.remember(ctx, phone, digest, ok)
		return ok, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *CredentialCache) List(ctx context.Context) ([]domain.User, error) {
	return c.store.List(ctx)
}

func (c *CredentialCache) Exists(ctx context.Context, phone string) (bool, error) {
	return c.store.Exists(ctx, phone)
}

func (c *CredentialCache) Insert(ctx context.Context, phone, token string) error {
	if err := c.store.Insert(ctx, phone, token); err != nil {
		return err
	}
	c.invalidate(ctx, phone)
	return nil
}

func (c *CredentialCache) Delete(ctx context.Context, phone string) error {
	if err := c.store.Delete(ctx, phone); err != nil {
		return err
	}
	c.invalidate(ctx, phone)
	return nil
}

func (c *CredentialCache) lookup(ctx context.Context, phone, digest string) (verdict bool, ok bool) {
	var allow, deny *goredis.BoolCmd
	_, err := c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		allow = pipe.HExists(ctx, allowKey(phone), digest)
		deny = pipe.HExists(ctx, denyKey(phone), digest)
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "Credential cache lookup failed", "phone", phone, "error", err)
		return false, false
	}

	switch {
	case allow.Val():
		c.metrics.Hits.WithLabelValues("allow").Inc()
		return true, true
	case deny.Val():
		c.metrics.Hits.WithLabelValues("deny").Inc()
		return false, true
	default:
		return false, false
	}
}

func (c *CredentialCache) remember(ctx context.Context, phone, digest string, verdict bool) {
	key, ttl := allowKey(phone), c.ttl
	if !verdict {
		key, ttl = denyKey(phone), negativeCacheTTL
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, digest, "1")
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to populate credential cache", "phone", phone, "error", err)
	}
}

func (c *CredentialCache) invalidate(ctx context.Context, phone string) {
	c.metrics.Invalidations.Inc()
	if err := c.rdb.Del(ctx, allowKey(phone), denyKey(phone)).Err(); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate credential cache", "phone", phone, "error", err)
	}
}

// Keys share a hash tag so both live in the same cluster slot.
func allowKey(phone string) string { return fmt.Sprintf("credential:{%s}:allow", phone) }
func denyKey(phone string) string  { return fmt.Sprintf("credential:{%s}:deny", phone) }

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
