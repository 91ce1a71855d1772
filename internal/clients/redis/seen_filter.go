package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/harborpoint/dealflow-backend/internal/logger"
)

const (
	// seenTTL is how long a provider message id stays in the filter. The
	// filter only short-circuits detail fetches; the raw_message unique
	// index remains the dedup invariant, so expiry is harmless.
	seenTTL = 24 * time.Hour

	keyPrefix = "dealflow:seen:"
)

// SeenFilter is a best-effort pre-filter in front of the insert-or-skip
// dedup, so overlapping poll/backfill invocations skip the detail fetch
// for messages one of them has already stored. Seen is a pure read; ids
// are marked only after the durable insert so a transient fetch failure
// stays retryable under the same cursor.
type SeenFilter interface {
	Seen(ctx context.Context, orgID, providerMessageID string) (bool, error)
	Mark(ctx context.Context, orgID, providerMessageID string) error
	Close() error
}

type seenFilter struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewSeenFilter returns (nil, nil) when REDIS_ADDR is unset; the filter is
// optional and callers must tolerate a nil filter.
func NewSeenFilter(log *logger.Logger) (SeenFilter, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &seenFilter{
		log: log.With("client", "RedisSeenFilter"),
		rdb: rdb,
	}, nil
}

func (f *seenFilter) Seen(ctx context.Context, orgID, providerMessageID string) (bool, error) {
	n, err := f.rdb.Exists(ctx, seenKey(orgID, providerMessageID)).Result()
	if err != nil {
		return false, fmt.Errorf("seen filter EXISTS: %w", err)
	}
	return n > 0, nil
}

func (f *seenFilter) Mark(ctx context.Context, orgID, providerMessageID string) error {
	if err := f.rdb.Set(ctx, seenKey(orgID, providerMessageID), 1, seenTTL).Err(); err != nil {
		return fmt.Errorf("seen filter SET: %w", err)
	}
	return nil
}

func seenKey(orgID, providerMessageID string) string {
	return keyPrefix + orgID + ":" + providerMessageID
}

func (f *seenFilter) Close() error {
	return f.rdb.Close()
}
