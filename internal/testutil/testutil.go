//go:build integration

// Package testutil provides helpers for integration tests that need a
// real Redis server.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// TestDB is the Redis database integration tests write to.
const TestDB = 9

// RedisAddr returns the address of the test Redis server from
// IFCONVERGE_TEST_REDIS_ADDR, or "" when it is not set.
func RedisAddr() string {
	return os.Getenv("IFCONVERGE_TEST_REDIS_ADDR")
}

// SkipIfNoRedis skips the test if the test Redis server is not reachable.
func SkipIfNoRedis(t *testing.T) {
	t.Helper()

	addr := RedisAddr()
	if addr == "" {
		t.Skip("test Redis not available: set IFCONVERGE_TEST_REDIS_ADDR")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("test Redis not reachable at %s: %v", addr, err)
	}
}

// Client returns a client on TestDB, flushed before and after the test.
func Client(t *testing.T) *redis.Client {
	t.Helper()
	SkipIfNoRedis(t)

	client := redis.NewClient(&redis.Options{Addr: RedisAddr(), DB: TestDB})
	FlushDB(t, client)
	t.Cleanup(func() {
		FlushDB(t, client)
		client.Close()
	})
	return client
}

// FlushDB flushes the client's database.
func FlushDB(t *testing.T, client *redis.Client) {
	t.Helper()
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush DB: %v", err)
	}
}

// HGetAll returns every field of a hash.
func HGetAll(t *testing.T, client *redis.Client, key string) map[string]string {
	t.Helper()
	vals, err := client.HGetAll(context.Background(), key).Result()
	if err != nil {
		t.Fatalf("HGetAll(%s): %v", key, err)
	}
	return vals
}

// Context returns a context that is canceled when the test ends.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
