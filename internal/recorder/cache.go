package recorder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"RSISentinel/internal/model"
)

const cooldownKeyFormat = "rsisentinel:cooldown:%s:%s:%s"

// CooldownCache decorates a Recorder with Redis cooldown keys. An alerted
// signal sets a key holding its alert time that expires after the configured
// cooldown. IsDuplicate answers from the key when the alert falls inside the
// window it is asked about; a miss, an older alert or a Redis failure falls back
// to the wrapped store.
type CooldownCache struct {
	Recorder
	client   *redis.Client
	cooldown time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[int64]string // saved but not yet alerted: id -> key
}

// NewRedisClient creates a client with short timeouts suitable for a cache.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// NewCooldownCache wraps inner. The client is owned by the cache and closed with it.
func NewCooldownCache(inner Recorder, client *redis.Client, cooldown time.Duration, logger zerolog.Logger) *CooldownCache {
	return &CooldownCache{
		Recorder: inner,
		client:   client,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "cooldown_cache").Logger(),
		pending:  make(map[int64]string),
		now:      time.Now,
	}
}

func cooldownKey(symbol, timeframe, signalType string) string {
	return fmt.Sprintf(cooldownKeyFormat, symbol, timeframe, signalType)
}

func (c *CooldownCache) IsDuplicate(ctx context.Context, symbol, timeframe, signalType string, cooldown time.Duration) (bool, error) {
	val, err := c.client.Get(ctx, cooldownKey(symbol, timeframe, signalType)).Result()
	switch {
	case err == nil:
		if alertedWithin(val, c.now(), cooldown) {
			return true, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Msg("redis unavailable, checking store")
	}
	return c.Recorder.IsDuplicate(ctx, symbol, timeframe, signalType, cooldown)
}

// alertedWithin reports whether a cooldown key value, the alert time in unix
// milliseconds, lies inside cooldown before now.
func alertedWithin(val string, now time.Time, cooldown time.Duration) bool {
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil || cooldown <= 0 {
		return false
	}
	return now.Sub(time.UnixMilli(ms)) < cooldown
}

func (c *CooldownCache) Save(ctx context.Context, sig *model.Signal) (int64, error) {
	id, err := c.Recorder.Save(ctx, sig)
	if err != nil {
		return id, err
	}
	c.mu.Lock()
	c.pending[id] = cooldownKey(sig.Symbol, sig.Timeframe, sig.DedupKey())
	c.mu.Unlock()
	return id, nil
}

func (c *CooldownCache) MarkAlerted(ctx context.Context, id int64) error {
	if err := c.Recorder.MarkAlerted(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	key, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok || c.cooldown <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, key, c.now().UnixMilli(), c.cooldown).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to set cooldown key")
	}
	return nil
}

func (c *CooldownCache) Close() error {
	cerr := c.client.Close()
	if err := c.Recorder.Close(); err != nil {
		return err
	}
	return cerr
}

// CleanupOld also forgets saved signals that were never alerted.
func (c *CooldownCache) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	c.mu.Lock()
	clear(c.pending)
	c.mu.Unlock()
	return c.Recorder.CleanupOld(ctx, olderThan)
}
