/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for the catalog lookups
// the playout engine polls hardest (per-clip CINF/TINF). The catalog store
// stays authoritative; every cache failure degrades to a direct read.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_scanner/internal/models"
)

// DefaultEntryTTL bounds staleness if an invalidation is ever lost.
const DefaultEntryTTL = 10 * time.Minute

const keyEntry = "grimnir_scanner:entry:" // + clip id

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EntryTTL time.Duration

	// DisableOnError trips the circuit breaker on the first Redis failure.
	DisableOnError bool
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache
// is valid and behaves as a permanent miss.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a cache instance and verifies connectivity.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = DefaultEntryTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})

	c := &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis unreachable, cache starts disabled")
		c.disabled = true
	}

	return c, nil
}

// GetEntry returns the cached entry for id, or nil on miss.
func (c *Cache) GetEntry(ctx context.Context, id string) *models.CatalogEntry {
	if c == nil || c.isDisabled() {
		return nil
	}

	data, err := c.client.Get(ctx, keyEntry+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.fault(err)
		}
		return nil
	}

	var entry models.CatalogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Debug().Err(err).Str("id", id).Msg("cache entry corrupt, dropping")
		c.client.Del(ctx, keyEntry+id)
		return nil
	}
	return &entry
}

// SetEntry stores the entry under its clip id.
func (c *Cache) SetEntry(ctx context.Context, entry *models.CatalogEntry) {
	if c == nil || c.isDisabled() || entry == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyEntry+entry.ID, data, c.config.EntryTTL).Err(); err != nil {
		c.fault(err)
	}
}

// Invalidate drops the cached entry for id.
func (c *Cache) Invalidate(ctx context.Context, id string) {
	if c == nil || c.isDisabled() {
		return
	}
	if err := c.client.Del(ctx, keyEntry+id).Err(); err != nil {
		c.fault(err)
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) isDisabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disabled
}

// fault records a Redis failure and, when configured, trips the breaker so a
// dead Redis does not slow every lookup.
func (c *Cache) fault(err error) {
	c.logger.Warn().Err(err).Msg("redis operation failed")
	if !c.config.DisableOnError {
		return
	}
	c.mu.Lock()
	if !c.disabled {
		c.disabled = true
		c.logger.Warn().Msg("cache disabled after redis failure")
	}
	c.mu.Unlock()
}
