// Package memory provides an in-process report cache backed by
// github.com/hashicorp/golang-lru/v2 with per-entry expiry.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/reoring/ccv/validator"
)

// DefaultSize is used when New is given a non-positive size.
const DefaultSize = 1024

// Cache is a bounded LRU of reports. It is safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[string, validator.Report]
}

// New creates a cache holding at most size reports for ttl each. A zero ttl
// keeps entries until they are evicted.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{lru: expirable.NewLRU[string, validator.Report](size, nil, ttl)}
}

// Get implements cache.Cache.
func (c *Cache) Get(_ context.Context, key string) (validator.Report, bool, error) {
	r, ok := c.lru.Get(key)
	return r, ok, nil
}

// Set implements cache.Cache.
func (c *Cache) Set(_ context.Context, key string, r validator.Report) error {
	c.lru.Add(key, r)
	return nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }
