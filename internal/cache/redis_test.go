// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := &RedisCache{
		client: client,
		logger: zerolog.Nop(),
	}

	return mr, cache
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	cache.Set(docKey, docText, 5*time.Minute)

	val, found := cache.Get(docKey)
	if !found {
		t.Fatal("expected cached document to be found")
	}
	if val != docText {
		t.Errorf("document mismatch: got=%v want=%q", val, docText)
	}

	stats := cache.Stats()
	if stats.Sets != 1 {
		t.Errorf("expected 1 set, got %d", stats.Sets)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
}

// Document text must come back as a string after the JSON round-trip;
// the dispatcher type-asserts on it.
func TestRedisCache_DocumentStaysString(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	cache.Set(docKey, docText, 5*time.Minute)

	val, found := cache.Get(docKey)
	if !found {
		t.Fatal("expected cached document to be found")
	}
	text, ok := val.(string)
	if !ok {
		t.Fatalf("expected string after round-trip, got %T", val)
	}
	if text != docText {
		t.Errorf("document mismatch: got=%q want=%q", text, docText)
	}
}

func TestRedisCache_GetMissing(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	val, found := cache.Get("cast:unknown:nonexistent")
	if found {
		t.Error("expected document to not be found")
	}
	if val != nil {
		t.Errorf("expected nil value, got %v", val)
	}

	stats := cache.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestRedisCache_TTL(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	cache.Set(docKey, docText, 100*time.Millisecond)

	val, found := cache.Get(docKey)
	if !found {
		t.Fatal("expected document to be found immediately")
	}
	if val != docText {
		t.Errorf("document mismatch: got=%v", val)
	}

	// Fast-forward time in miniredis
	mr.FastForward(200 * time.Millisecond)

	_, found = cache.Get(docKey)
	if found {
		t.Error("expected document to be expired")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	cache.Set(docKey, docText, 5*time.Minute)

	_, found := cache.Get(docKey)
	if !found {
		t.Fatal("expected document to exist before delete")
	}

	cache.Delete(docKey)

	_, found = cache.Get(docKey)
	if found {
		t.Error("expected document to be deleted")
	}
}

func TestRedisCache_Clear(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	cache.Set(docKey, docText, 5*time.Minute)
	cache.Set(docKey+".other", docText, 5*time.Minute)
	cache.Set(docKey+".third", docText, 5*time.Minute)

	stats := cache.Stats()
	if stats.CurrentSize != 3 {
		t.Fatalf("expected 3 documents, got %d", stats.CurrentSize)
	}

	cache.Clear()

	stats = cache.Stats()
	if stats.CurrentSize != 0 {
		t.Errorf("expected 0 documents after clear, got %d", stats.CurrentSize)
	}

	_, found := cache.Get(docKey)
	if found {
		t.Error("expected document to be cleared")
	}
}

func TestRedisCache_Stats(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	cache.Set(docKey, docText, 5*time.Minute)
	cache.Set(docKey+".other", docText, 5*time.Minute)
	cache.Get(docKey)                     // Hit
	cache.Get(docKey)                     // Hit
	cache.Get("cast:unknown:nonexistent") // Miss
	cache.Get("cast:unknown:nonexistent") // Miss

	stats := cache.Stats()

	if stats.Sets != 2 {
		t.Errorf("expected 2 sets, got %d", stats.Sets)
	}
	if stats.Hits != 2 {
		t.Errorf("expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("expected 2 misses, got %d", stats.Misses)
	}
	if stats.CurrentSize != 2 {
		t.Errorf("expected size=2, got %d", stats.CurrentSize)
	}
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	ctx := context.Background()

	if err := cache.HealthCheck(ctx); err != nil {
		t.Errorf("expected healthy Redis, got error: %v", err)
	}

	mr.Close()

	if err := cache.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail after Redis shutdown")
	}
}

func TestRedisCache_ConcurrentAccess(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	const numGoroutines = 10
	const numOps = 100

	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numOps; j++ {
				cache.Set(docKey, docText, 5*time.Minute)
				cache.Get(docKey)
			}
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	stats := cache.Stats()
	expectedSets := int64(numGoroutines * numOps)

	if stats.Sets != expectedSets {
		t.Errorf("expected %d sets, got %d", expectedSets, stats.Sets)
	}
}

func BenchmarkRedisCache_Set(b *testing.B) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		b.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := &RedisCache{client: client, logger: zerolog.Nop()}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Set(docKey, docText, 5*time.Minute)
	}
}

func BenchmarkRedisCache_Get(b *testing.B) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		b.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := &RedisCache{client: client, logger: zerolog.Nop()}

	cache.Set(docKey, docText, 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get(docKey)
	}
}
