package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/aquatrade/backend/internal/core"
)

// HistoryCache keeps a fast local copy of completed chat exchanges. The
// bucket audit trail is authoritative; this cache only covers the window
// where a freshly finalized object is not yet visible in bucket listings.
type HistoryCache interface {
	Append(ctx context.Context, owner string, record core.AuditRecord) error
	Recent(ctx context.Context, owner string) ([]core.AuditRecord, error)
}

const historyCap = 200

// RedisHistoryCache stores per-owner history in a capped Redis list.
type RedisHistoryCache struct {
	client *redis.Client
	logger *log.Logger
}

func NewRedisHistoryCache(addr string) *RedisHistoryCache {
	return &RedisHistoryCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: log.New(log.Writer(), "[HistoryCache] ", log.LstdFlags),
	}
}

func historyKey(owner string) string {
	return fmt.Sprintf("history:%s", owner)
}

func (c *RedisHistoryCache) Append(ctx context.Context, owner string, record core.AuditRecord) error {
	blob, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	key := historyKey(owner)
	pipe := c.client.TxPipeline()
	pipe.RPush(ctx, key, blob)
	pipe.LTrim(ctx, key, -historyCap, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history for %s: %w", owner, err)
	}
	return nil
}

// Recent returns the cached records oldest-first. Corrupt entries are skipped.
func (c *RedisHistoryCache) Recent(ctx context.Context, owner string) ([]core.AuditRecord, error) {
	blobs, err := c.client.LRange(ctx, historyKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history for %s: %w", owner, err)
	}

	records := make([]core.AuditRecord, 0, len(blobs))
	for _, blob := range blobs {
		var record core.AuditRecord
		if err := json.Unmarshal([]byte(blob), &record); err != nil {
			c.logger.Printf("Skipping corrupt history entry for %s: %v", owner, err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
