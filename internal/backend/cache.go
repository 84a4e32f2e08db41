// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// =============================================================================
// LISTING CACHE
// =============================================================================

// Cache keys. Project-scoped keys are prefixed with the slug so a mutation
// can drop exactly the listings it affects.
const (
	keyFiles    = "files"
	keyProjects = "projects"
	keyStats    = "stats"
	keyListStat = "list-stats"
)

func projectKey(slug, what string) string {
	return "project/" + slug + "/" + what
}

// ListingCache holds recent listing responses for a short TTL. Any mutation
// through the client invalidates the listings it could have changed.
type ListingCache struct {
	lru    *expirable.LRU[string, any]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewListingCache creates a cache of size entries that expire after ttl.
func NewListingCache(size int, ttl time.Duration) *ListingCache {
	return &ListingCache{
		lru: expirable.NewLRU[string, any](size, nil, ttl),
	}
}

// Get returns a cached value.
func (c *ListingCache) Get(key string) (any, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Add stores a value.
func (c *ListingCache) Add(key string, v any) {
	c.lru.Add(key, v)
}

// Invalidate drops the given keys.
func (c *ListingCache) Invalidate(keys ...string) {
	for _, k := range keys {
		c.lru.Remove(k)
	}
}

// InvalidatePrefix drops every key starting with prefix.
func (c *ListingCache) InvalidatePrefix(prefix string) {
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

// Purge empties the cache.
func (c *ListingCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *ListingCache) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counts since creation.
func (c *ListingCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Client) invalidate(keys ...string) {
	if c.cache != nil {
		c.cache.Invalidate(keys...)
	}
}

func (c *Client) invalidatePrefix(prefix string) {
	if c.cache != nil {
		c.cache.InvalidatePrefix(prefix)
	}
}
