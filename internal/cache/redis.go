package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const reportTTL = 5 * time.Minute

var client *redis.Client

// Init connects to Redis. On failure the client stays nil and every cache
// operation becomes a no-op, so the system runs fine without Redis.
func Init(addr, password string) error {
	if addr == "" {
		return fmt.Errorf("redis address not configured")
	}

	client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		client = nil
		return err
	}
	return nil
}

func reportKey(userID int, kind, rangeKey string) string {
	return fmt.Sprintf("report:%d:%s:%s", userID, kind, rangeKey)
}

// GetReport returns a cached report body, or false when absent.
func GetReport(ctx context.Context, userID int, kind, rangeKey string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, reportKey(userID, kind, rangeKey)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetReport caches a rendered report body.
func SetReport(ctx context.Context, userID int, kind, rangeKey string, data []byte) {
	if client == nil {
		return
	}
	client.Set(ctx, reportKey(userID, kind, rangeKey), data, reportTTL)
}

// InvalidateReports drops every cached report for the user. Called after any
// write that changes the books.
func InvalidateReports(ctx context.Context, userID int) {
	if client == nil {
		return
	}
	pattern := fmt.Sprintf("report:%d:*", userID)
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}
