package matrix

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/ports"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 16

type shard struct {
	mu      sync.RWMutex
	entries map[ports.CacheKey]ports.DistanceResult
	dirty   map[ports.CacheKey]struct{}
}

// Cache is the process-wide road matrix cache. It is created with
// LoadCache (load-or-create) and must be flushed with Flush or Close.
//
// Keys are spread over shards so readers never wait on a write to a
// different key. Flushes to the backing store are serialized.
type Cache struct {
	store     ports.MatrixStore
	shards    [shardCount]*shard
	flushMu   sync.Mutex
	discarded bool
}

// NewCache returns an empty cache. With a nil store Flush is a no-op.
func NewCache(store ports.MatrixStore) *Cache {
	c := &Cache{store: store}
	for i := range c.shards {
		c.shards[i] = &shard{
			entries: make(map[ports.CacheKey]ports.DistanceResult),
			dirty:   make(map[ports.CacheKey]struct{}),
		}
	}
	return c
}

// LoadCache reads every entry from store. A corrupt store is discarded and
// the cache starts empty; entries are recomputed on demand and the next
// flush rewrites the store.
func LoadCache(ctx context.Context, store ports.MatrixStore) (*Cache, error) {
	c := NewCache(store)
	if store == nil {
		return c, nil
	}

	entries, err := store.Load(ctx)
	if err != nil {
		var corrupt *domain.CacheCorruptionError
		if !errors.As(err, &corrupt) {
			return nil, fmt.Errorf("load matrix cache: %w", err)
		}
		log.Printf("op=matrix.cache.load discarded=true err=%v", err)
		c.discarded = true
		return c, nil
	}

	for k, v := range entries {
		s := c.shardFor(k)
		s.entries[k] = v
	}
	return c, nil
}

func (c *Cache) shardFor(k ports.CacheKey) *shard {
	return c.shards[xxhash.Sum64String(k.String())%shardCount]
}

// Discarded reports whether LoadCache threw away a corrupt store.
func (c *Cache) Discarded() bool { return c.discarded }

func (c *Cache) Get(k ports.CacheKey) (ports.DistanceResult, bool) {
	s := c.shardFor(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[k]
	return v, ok
}

func (c *Cache) Put(k ports.CacheKey, v ports.DistanceResult) {
	s := c.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[k] = v
	s.dirty[k] = struct{}{}
}

func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Flush writes entries added since the last flush to the store.
func (c *Cache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	pending := make(map[ports.CacheKey]ports.DistanceResult)
	for _, s := range c.shards {
		s.mu.Lock()
		for k := range s.dirty {
			pending[k] = s.entries[k]
		}
		s.dirty = make(map[ports.CacheKey]struct{})
		s.mu.Unlock()
	}

	if len(pending) == 0 {
		return nil
	}

	if err := c.store.Save(ctx, pending); err != nil {
		// Keep entries dirty so a later flush retries them.
		for k := range pending {
			s := c.shardFor(k)
			s.mu.Lock()
			s.dirty[k] = struct{}{}
			s.mu.Unlock()
		}
		return fmt.Errorf("flush matrix cache: %w", err)
	}
	return nil
}

func (c *Cache) Close(ctx context.Context) error {
	return c.Flush(ctx)
}
