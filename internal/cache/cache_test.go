package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"transportagent/internal/logging"
)

func TestCache_MemorySetGet(t *testing.T) {
	c := New(nil, time.Minute, logging.Discard())
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get(missing) error = %v, want ErrMiss", err)
	}

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() returned unexpected error: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() returned unexpected error: %v", err)
	}
	if got != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}

	c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get(deleted) error = %v, want ErrMiss", err)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(nil, time.Millisecond, logging.Discard())
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get(expired) error = %v, want ErrMiss", err)
	}
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c := New(nil, 0, logging.Discard())
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	time.Sleep(5 * time.Millisecond)

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() returned unexpected error: %v", err)
	}
	if got != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}
}

func TestConnect_NoAddress(t *testing.T) {
	if client := Connect(context.Background(), RedisOptions{}, logging.Discard()); client != nil {
		t.Error("Connect() without address should return nil")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	opts := RedisOptions{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}
	if client := Connect(context.Background(), opts, logging.Discard()); client != nil {
		t.Error("Connect() to a closed port should return nil")
	}
}

func TestCache_CloseWithoutRedis(t *testing.T) {
	if err := New(nil, time.Minute, logging.Discard()).Close(); err != nil {
		t.Errorf("Close() returned unexpected error: %v", err)
	}
}
