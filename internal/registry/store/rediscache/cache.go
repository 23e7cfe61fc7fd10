// Package rediscache decorates an IdentityStore with a Redis read-through
// cache. Identity reads dominate the registry's traffic; the cache keeps
// them off the primary store while mutations invalidate synchronously.
// Invalidation is best-effort and the TTL bounds what it misses, so only
// plain reads may come from the cache; read-modify-write flows use
// FindForUpdate, which always reads the primary.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"attestry/internal/registry/models"
	"attestry/internal/registry/service"
	id "attestry/pkg/domain"
)

// DefaultTTL bounds staleness for entries invalidation missed (e.g. a Redis
// outage during a mutation).
const DefaultTTL = 5 * time.Minute

// IdentityCache is a read-through cache in front of another IdentityStore.
type IdentityCache struct {
	next   service.IdentityStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewIdentityCache(next service.IdentityStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *IdentityCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &IdentityCache{next: next, client: client, ttl: ttl, logger: logger}
}

func cacheKey(account id.AccountID) string {
	return "attestry:identity:" + account.String()
}

func (c *IdentityCache) Create(ctx context.Context, identity *models.Identity) error {
	if err := c.next.Create(ctx, identity); err != nil {
		return err
	}
	c.invalidate(ctx, identity.Account)
	return nil
}

func (c *IdentityCache) Find(ctx context.Context, account id.AccountID) (*models.Identity, error) {
	payload, err := c.client.Get(ctx, cacheKey(account)).Bytes()
	if err == nil {
		var identity models.Identity
		if err := json.Unmarshal(payload, &identity); err == nil {
			return &identity, nil
		}
		// Corrupt entry: fall through to the primary and rewrite.
	} else if !errors.Is(err, redis.Nil) && c.logger != nil {
		c.logger.WarnContext(ctx, "identity cache read failed",
			"account", account.String(), "error", err.Error())
	}

	identity, err := c.next.Find(ctx, account)
	if err != nil {
		return nil, err
	}
	c.save(ctx, identity)
	return identity, nil
}

// FindForUpdate bypasses the cache entirely. A stale cached snapshot (for
// example after a failed invalidation) must never feed a read-modify-write:
// writing it back through Update would overwrite newer fields in the primary.
func (c *IdentityCache) FindForUpdate(ctx context.Context, account id.AccountID) (*models.Identity, error) {
	return c.next.FindForUpdate(ctx, account)
}

func (c *IdentityCache) Update(ctx context.Context, identity *models.Identity) error {
	if err := c.next.Update(ctx, identity); err != nil {
		return err
	}
	c.invalidate(ctx, identity.Account)
	return nil
}

func (c *IdentityCache) Exists(ctx context.Context, account id.AccountID) (bool, error) {
	// Existence is a one-way transition, so a cache hit proves existence.
	exists, err := c.client.Exists(ctx, cacheKey(account)).Result()
	if err == nil && exists > 0 {
		return true, nil
	}
	return c.next.Exists(ctx, account)
}

func (c *IdentityCache) save(ctx context.Context, identity *models.Identity) {
	payload, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(identity.Account), payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "identity cache write failed",
			"account", identity.Account.String(), "error", err.Error())
	}
}

func (c *IdentityCache) invalidate(ctx context.Context, account id.AccountID) {
	if err := c.client.Del(ctx, cacheKey(account)).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "identity cache invalidation failed",
			"account", account.String(), "error", fmt.Sprintf("%v", err))
	}
}
