package importer

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightslot/ghl-importer/pkg/logging"
)

// ContactCache remembers remote contact IDs by (location, email) so repeated
// imports of the same email skip the remote search entirely. It is a pure
// optimization: any cache error falls through to the API, which is itself
// idempotent on email.
type ContactCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewContactCache creates a Redis-backed contact cache. rdb may be nil, in
// which case every lookup misses.
func NewContactCache(rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *ContactCache {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ContactCache{rdb: rdb, ttl: ttl, logger: logger}
}

func contactKey(locationID, email string) string {
	return "ghl:contact:" + locationID + ":" + email
}

// Get returns the cached contact ID for an email, or ("", false) on a miss.
func (c *ContactCache) Get(ctx context.Context, locationID, email string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, contactKey(locationID, email)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("contact cache get failed", "error", err)
		}
		return "", false
	}
	return val, val != ""
}

// Set stores a contact ID with the configured TTL.
func (c *ContactCache) Set(ctx context.Context, locationID, email, contactID string) {
	if c == nil || c.rdb == nil || contactID == "" {
		return
	}
	if err := c.rdb.Set(ctx, contactKey(locationID, email), contactID, c.ttl).Err(); err != nil {
		c.logger.Warn("contact cache set failed", "error", err)
	}
}
