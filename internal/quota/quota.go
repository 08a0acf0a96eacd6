// Package quota tracks per-user daily generation counts in Redis.
package quota

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts generations per user per UTC day. Redis being down never
// blocks a request: the limiter fails open and logs.
type Limiter struct {
	Rdb    *redis.Client
	Logger *log.Logger
}

// New builds a limiter; a nil client yields a limiter that always admits.
func New(rdb *redis.Client, logger *log.Logger) *Limiter {
	return &Limiter{Rdb: rdb, Logger: logger}
}

// Allow increments today's counter for the user and reports whether the
// count is still within limit. A limit of zero or less admits everything.
func (l *Limiter) Allow(ctx context.Context, userID string, limit int) bool {
	if l == nil || l.Rdb == nil || limit <= 0 {
		return true
	}
	key := fmt.Sprintf("quota:%s:%s", userID, time.Now().UTC().Format("2006-01-02"))
	n, err := l.Rdb.Incr(ctx, key).Result()
	if err != nil {
		l.logf("quota incr failed, admitting request: %v", err)
		return true
	}
	if n == 1 {
		// First generation of the day; the key expires on its own so a
		// stuck counter cannot lock a user out forever.
		if err := l.Rdb.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
			l.logf("quota expire failed: %v", err)
		}
	}
	return n <= int64(limit)
}

func (l *Limiter) logf(format string, args ...interface{}) {
	if l.Logger != nil {
		l.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
