package recorder

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"RSISentinel/internal/model"
)

// countingRecorder records which calls reached the wrapped store.
type countingRecorder struct {
	NoopRecorder
	dupChecks int
	alerted   []int64
	nextID    int64
	dup       bool
}

func (c *countingRecorder) IsDuplicate(context.Context, string, string, string, time.Duration) (bool, error) {
	c.dupChecks++
	return c.dup, nil
}

func (c *countingRecorder) Save(context.Context, *model.Signal) (int64, error) {
	c.nextID++
	return c.nextID, nil
}

func (c *countingRecorder) MarkAlerted(_ context.Context, id int64) error {
	c.alerted = append(c.alerted, id)
	return nil
}

func TestCooldownCache_FallsBackWhenRedisDown(t *testing.T) {
	inner := &countingRecorder{dup: true}
	client := NewRedisClient("127.0.0.1:1", "", 0)
	cache := NewCooldownCache(inner, client, time.Hour, zerolog.Nop())
	defer cache.Close()
	ctx := context.Background()

	dup, err := cache.IsDuplicate(ctx, "BTC/USDT", "15m", "DIVERGENCE_BULLISH", time.Hour)
	if err != nil || !dup || inner.dupChecks != 1 {
		t.Fatalf("expected the store to answer, got dup=%v err=%v checks=%d", dup, err, inner.dupChecks)
	}

	id, err := cache.Save(ctx, divergenceSignal("BTC/USDT", model.Bullish))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := cache.MarkAlerted(ctx, id); err != nil {
		t.Fatalf("a redis failure must not fail MarkAlerted: %v", err)
	}
	if len(inner.alerted) != 1 || inner.alerted[0] != id {
		t.Errorf("expected the store to be marked, got %v", inner.alerted)
	}
}

func TestAlertedWithin(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	alerted := strconv.FormatInt(now.Add(-30*time.Minute).UnixMilli(), 10)
	cases := []struct {
		name     string
		val      string
		cooldown time.Duration
		want     bool
	}{
		{"inside window", alerted, time.Hour, true},
		{"window shorter than age", alerted, 20 * time.Minute, false},
		{"exactly at age", alerted, 30 * time.Minute, false},
		{"no cooldown", alerted, 0, false},
		{"legacy value", "42x", time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := alertedWithin(tc.val, now, tc.cooldown); got != tc.want {
				t.Errorf("alertedWithin(%q, %v) = %v, want %v", tc.val, tc.cooldown, got, tc.want)
			}
		})
	}
}

func TestCooldownCache_Redis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	inner := &countingRecorder{}
	client := NewRedisClient(addr, "", 0)
	cache := NewCooldownCache(inner, client, time.Minute, zerolog.Nop())
	defer cache.Close()
	ctx := context.Background()

	sig := divergenceSignal("TEST"+time.Now().Format("150405.000")+"/USDT", model.Bearish)
	key := cooldownKey(sig.Symbol, sig.Timeframe, sig.DedupKey())
	defer client.Del(ctx, key)

	id, _ := cache.Save(ctx, sig)
	if err := cache.MarkAlerted(ctx, id); err != nil {
		t.Fatalf("mark: %v", err)
	}
	dup, err := cache.IsDuplicate(ctx, sig.Symbol, sig.Timeframe, sig.DedupKey(), time.Minute)
	if err != nil || !dup {
		t.Fatalf("expected a cached duplicate, got %v %v", dup, err)
	}
	if inner.dupChecks != 0 {
		t.Errorf("a cache hit must not reach the store, got %d checks", inner.dupChecks)
	}

	// A caller window that has already elapsed is answered by the store.
	cache.now = func() time.Time { return time.Now().Add(10 * time.Second) }
	dup, err = cache.IsDuplicate(ctx, sig.Symbol, sig.Timeframe, sig.DedupKey(), 5*time.Second)
	if err != nil || dup || inner.dupChecks != 1 {
		t.Fatalf("expected the store to answer a shorter window, got dup=%v err=%v checks=%d", dup, err, inner.dupChecks)
	}
	if ttl := client.TTL(ctx, key).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected ttl %v", ttl)
	}
}
