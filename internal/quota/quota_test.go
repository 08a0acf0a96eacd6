package quota

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestAllowWithoutRedis(t *testing.T) {
	var l *Limiter
	if !l.Allow(context.Background(), "u-1", 10) {
		t.Fatal("nil limiter must admit")
	}
	l = New(nil, nil)
	if !l.Allow(context.Background(), "u-1", 10) {
		t.Fatal("limiter without redis must admit")
	}
}

func TestAllowZeroLimit(t *testing.T) {
	l := New(redis.NewClient(&redis.Options{Addr: "localhost:1"}), nil)
	if !l.Allow(context.Background(), "u-1", 0) {
		t.Fatal("zero limit must admit everything")
	}
}

func TestAllowFailsOpenWhenRedisDown(t *testing.T) {
	// Port 1 is never a redis server; INCR fails and the limiter admits.
	l := New(redis.NewClient(&redis.Options{Addr: "localhost:1"}), nil)
	if !l.Allow(context.Background(), "u-1", 10) {
		t.Fatal("limiter must fail open when redis is unreachable")
	}
}
