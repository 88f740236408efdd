package cacheinfra

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Capacity:           100,
		NumShards:          4,
		TTL:                50 * time.Millisecond,
		EvictionPercentage: 10,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, "Capacity"},
		{"zero shards", func(c *Config) { c.NumShards = 0 }, "NumShards"},
		{"zero ttl", func(c *Config) { c.TTL = 0 }, "TTL"},
		{"eviction percentage too low", func(c *Config) { c.EvictionPercentage = 0 }, "EvictionPercentage"},
		{"eviction percentage too high", func(c *Config) { c.EvictionPercentage = 101 }, "EvictionPercentage"},
		{"negative eviction interval", func(c *Config) { c.EvictionInterval = -time.Second }, "EvictionInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, cfgErr.Field)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestNewSturdycService_InvalidConfig(t *testing.T) {
	if _, err := NewSturdycService(Config{}); err == nil {
		t.Fatal("expected error for zero config")
	}
}

func TestGetOrFetch_CachesOnSuccess(t *testing.T) {
	svc, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var fetches atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		fetches.Add(1)
		return "value", nil
	}

	for i := 0; i < 5; i++ {
		got, err := svc.GetOrFetch(ctx, "k", fetch)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got != "value" {
			t.Fatalf("call %d: got %v", i, got)
		}
	}

	if n := fetches.Load(); n != 1 {
		t.Errorf("expected 1 fetch, got %d", n)
	}
}

func TestGetOrFetch_ExpiredEntryRefetches(t *testing.T) {
	svc, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var fetches atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		fetches.Add(1)
		return "value", nil
	}

	if _, err := svc.GetOrFetch(ctx, "k", fetch); err != nil {
		t.Fatal(err)
	}

	time.Sleep(80 * time.Millisecond) // past the 50ms TTL

	if _, err := svc.GetOrFetch(ctx, "k", fetch); err != nil {
		t.Fatal(err)
	}
	if n := fetches.Load(); n != 2 {
		t.Errorf("expected refetch after TTL, got %d fetches", n)
	}
}

func TestGetOrFetch_FailureIsNotCached(t *testing.T) {
	svc, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var fetches atomic.Int32
	boom := errors.New("backing store down")

	for i := 0; i < 3; i++ {
		_, err := svc.GetOrFetch(ctx, "k", func(ctx context.Context) (any, error) {
			fetches.Add(1)
			return nil, boom
		})
		if err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	if n := fetches.Load(); n != 3 {
		t.Errorf("failed fetches must not be cached: expected 3 fetches, got %d", n)
	}
}

func TestGetOrFetch_SingleFlight(t *testing.T) {
	svc, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var fetches atomic.Int32
	release := make(chan struct{})

	const callers = 16
	var wg sync.WaitGroup
	results := make([]any, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.GetOrFetch(ctx, "k", func(ctx context.Context) (any, error) {
				fetches.Add(1)
				<-release
				return "shared", nil
			})
		}(i)
	}

	// Let the callers pile up behind the in-flight fetch, then let it run.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := fetches.Load(); n != 1 {
		t.Errorf("expected exactly 1 fetch across %d callers, got %d", callers, n)
	}
	for i, r := range results {
		if r != "shared" {
			t.Errorf("caller %d got %v", i, r)
		}
	}
}

func TestDelete_ForcesReload(t *testing.T) {
	svc, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var fetches atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		fetches.Add(1)
		return "value", nil
	}

	if _, err := svc.GetOrFetch(ctx, "k", fetch); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	// Deleting an absent key is a no-op, not an error.
	if err := svc.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetOrFetch(ctx, "k", fetch); err != nil {
		t.Fatal(err)
	}

	if n := fetches.Load(); n != 2 {
		t.Errorf("expected reload after delete, got %d fetches", n)
	}
}

func TestDeleteAll(t *testing.T) {
	svc, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, key := range []string{"a", "b", "c"} {
		if err := svc.Set(ctx, key, "v"); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.DeleteAll(ctx); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if _, ok := svc.Get(ctx, key); ok {
			t.Fatalf("expected %q gone after DeleteAll", key)
		}
	}

	// Clearing an empty cache is a no-op.
	if err := svc.DeleteAll(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSetAndGet(t *testing.T) {
	svc, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, ok := svc.Get(ctx, "k"); ok {
		t.Fatal("expected miss on empty cache")
	}

	if err := svc.Set(ctx, "k", "seeded"); err != nil {
		t.Fatal(err)
	}
	got, ok := svc.Get(ctx, "k")
	if !ok || got != "seeded" {
		t.Fatalf("expected seeded hit, got %v ok=%v", got, ok)
	}

	if err := svc.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}
