package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/pkg/errors"

	"golang.org/x/sync/singleflight"
)

// Status tells how a Fetch was served
type Status string

const (
	StatusHit   Status = "hit"
	StatusStale Status = "stale"
	StatusMiss  Status = "miss"
)

// Loader produces a fresh value. store=false returns the value to the
// caller without caching it.
type Loader func(ctx context.Context) (value []byte, store bool, err error)

type envelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Value    json.RawMessage `json:"value"`
}

// ResultCache is a TTL cache over a CacheService. Entries older than the
// TTL are still served for StaleFor while one background refresh runs.
type ResultCache struct {
	backend  CacheService
	ttl      time.Duration
	staleFor time.Duration
	group    singleflight.Group
	now      func() time.Time
	log      *logger.Logger

	// refreshTimeout bounds background refreshes detached from the caller
	refreshTimeout time.Duration
	wg             sync.WaitGroup
}

// NewResultCache creates a cache. staleFor <= 0 defaults to the TTL.
func NewResultCache(backend CacheService, ttl, staleFor time.Duration) *ResultCache {
	if staleFor <= 0 {
		staleFor = ttl
	}
	return &ResultCache{
		backend:        backend,
		ttl:            ttl,
		staleFor:       staleFor,
		now:            time.Now,
		log:            logger.ForCache(),
		refreshTimeout: 3 * time.Minute,
	}
}

// TTL returns the freshness window
func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}

// Fetch returns the cached value for key, loading it on a miss. A stale
// hit is returned immediately and refreshed in the background.
func (c *ResultCache) Fetch(ctx context.Context, key string, load Loader) ([]byte, Status, error) {
	if c.ttl <= 0 {
		value, _, err := load(ctx)
		return value, StatusMiss, err
	}

	if env, ok := c.read(key); ok {
		age := c.now().Sub(env.StoredAt)
		if age < c.ttl {
			return env.Value, StatusHit, nil
		}
		if age < c.ttl+c.staleFor {
			c.refreshInBackground(ctx, key, load)
			return env.Value, StatusStale, nil
		}
	}

	value, err := c.load(ctx, key, load)
	return value, StatusMiss, err
}

// Refresh loads and stores key regardless of what is cached
func (c *ResultCache) Refresh(ctx context.Context, key string, load Loader) ([]byte, error) {
	return c.load(ctx, key, load)
}

// Invalidate drops key
func (c *ResultCache) Invalidate(key string) error {
	return c.backend.Delete(key)
}

// Wait blocks until background refreshes have finished
func (c *ResultCache) Wait() {
	c.wg.Wait()
}

func (c *ResultCache) refreshInBackground(ctx context.Context, key string, load Loader) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		if _, err := c.load(refreshCtx, key, load); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Background refresh failed")
			return
		}
		c.log.Debug().Str("key", key).Msg("Background refresh done")
	}()
}

// load collapses concurrent loads of the same key into one
func (c *ResultCache) load(ctx context.Context, key string, load Loader) ([]byte, error) {
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		value, store, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if store {
			c.write(key, value)
		}
		return value, nil
	})
	if shared {
		c.log.Debug().Str("key", key).Msg("Joined in-flight load")
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *ResultCache) read(key string) (envelope, bool) {
	raw, err := c.backend.Get(key)
	if err != nil {
		if !stderrors.Is(err, ErrMiss) {
			c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		return envelope{}, false
	}
	return env, true
}

func (c *ResultCache) write(key string, value []byte) {
	raw, err := json.Marshal(envelope{StoredAt: c.now(), Value: value})
	if err != nil {
		c.log.Warn().Err(errors.NewCache("result", "encode entry", err)).Str("key", key).Msg("Cache write skipped")
		return
	}
	if err := c.backend.Set(key, raw, c.ttl+c.staleFor); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
