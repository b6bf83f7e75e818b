package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"realestate-scraper/models"
)

// SeenStore remembers which listing URLs were stored by earlier inserts,
// across runs.
type SeenStore interface {
	// MarkSeen records url and reports whether it was new.
	MarkSeen(ctx context.Context, url string) (bool, error)
	// Forget removes url so a later insert may retry it.
	Forget(ctx context.Context, url string) error
	Close() error
}

// DedupWriter skips listings whose URL is already in the SeenStore and
// otherwise passes them to the wrapped writer.
type DedupWriter struct {
	next ListingWriter
	seen SeenStore
}

// NewDedupWriter wraps next with URL de-duplication.
func NewDedupWriter(next ListingWriter, seen SeenStore) *DedupWriter {
	return &DedupWriter{next: next, seen: seen}
}

// Insert returns ErrDuplicate for a URL that was already stored.
func (d *DedupWriter) Insert(ctx context.Context, l *models.Listing) error {
	isNew, err := d.seen.MarkSeen(ctx, l.URL)
	if err != nil {
		return fmt.Errorf("dedup: mark %s: %w", l.URL, err)
	}
	if !isNew {
		return ErrDuplicate
	}

	if err := d.next.Insert(ctx, l); err != nil {
		if ferr := d.seen.Forget(ctx, l.URL); ferr != nil {
			return fmt.Errorf("%w (dedup: forget: %v)", err, ferr)
		}
		return err
	}
	return nil
}

func (d *DedupWriter) Close() error {
	err := d.next.Close()
	if serr := d.seen.Close(); err == nil {
		err = serr
	}
	return err
}

const seenKeyPrefix = "listing:seen:"

// RedisSeenStore keeps seen URLs as expiring Redis keys.
type RedisSeenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSeenStore connects to Redis at address. A zero ttl keeps keys
// forever.
func NewRedisSeenStore(address string, ttl time.Duration) (*RedisSeenStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: address,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", address, err)
	}

	return &RedisSeenStore{client: client, ttl: ttl}, nil
}

func (rs *RedisSeenStore) MarkSeen(ctx context.Context, url string) (bool, error) {
	return rs.client.SetNX(ctx, seenKeyPrefix+url, "1", rs.ttl).Result()
}

func (rs *RedisSeenStore) Forget(ctx context.Context, url string) error {
	return rs.client.Del(ctx, seenKeyPrefix+url).Err()
}

func (rs *RedisSeenStore) Close() error {
	return rs.client.Close()
}
