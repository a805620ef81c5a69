// Package cache is the fast-store client: per-region seen-id sets, the
// mirrored subscription hashes, listing snapshots, and per-subscription
// initialized flags, all in Redis with TTLs. The durable store stays the
// system of record; everything here is reconstructible.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/match"
)

const (
	seenTTL        = 7 * 24 * time.Hour
	objectTTL      = 3 * 24 * time.Hour
	initializedTTL = 7 * 24 * time.Hour
)

// Logger abstracts logging, matching the shape of logrus.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Cache wraps the Redis client with the watcher's key schema.
type Cache struct {
	rdb   *redis.Client
	retry Retry
	log   Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, o Options, log Logger) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{rdb: rdb, retry: DefaultRetry(log), log: log}, nil
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func seenKey(region int) string {
	return "region:" + strconv.Itoa(region) + ":seen_ids"
}

func subscriptionsKey(region int) string {
	return "region:" + strconv.Itoa(region) + ":subscriptions"
}

func objectKey(id int64) string {
	return "object:" + strconv.FormatInt(id, 10)
}

func initializedKey(subID int64) string {
	return "subscription:" + strconv.FormatInt(subID, 10) + ":initialized"
}

// NewIDs filters ids down to those not in the region's seen set. Order is
// preserved. An id is "new" until AddSeenIDs records it.
func (c *Cache) NewIDs(ctx context.Context, region int, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	seen, err := c.rdb.SMIsMember(ctx, seenKey(region), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading seen set for region %d: %w", region, err)
	}
	var fresh []int64
	for i, ok := range seen {
		if !ok {
			fresh = append(fresh, ids[i])
		}
	}
	return fresh, nil
}

// AddSeenIDs records ids as processed for the region and refreshes the
// set's TTL.
func (c *Cache) AddSeenIDs(ctx context.Context, region int, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	key := seenKey(region)
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, seenTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating seen set for region %d: %w", region, err)
	}
	return nil
}

// SaveListing writes or refreshes a listing snapshot.
func (c *Cache) SaveListing(ctx context.Context, l *listing.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshaling listing %d: %w", l.ID, err)
	}
	if err := c.rdb.Set(ctx, objectKey(l.ID), data, objectTTL).Err(); err != nil {
		return fmt.Errorf("caching listing %d: %w", l.ID, err)
	}
	return nil
}

// Listing reads a cached listing snapshot. Returns nil when absent or
// expired.
func (c *Cache) Listing(ctx context.Context, id int64) (*listing.Listing, error) {
	data, err := c.rdb.Get(ctx, objectKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached listing %d: %w", id, err)
	}
	var l listing.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decoding cached listing %d: %w", id, err)
	}
	return &l, nil
}

// SubscriptionsByRegion loads the mirrored subscriptions for a region.
func (c *Cache) SubscriptionsByRegion(ctx context.Context, region int) ([]match.Subscription, error) {
	fields, err := c.rdb.HGetAll(ctx, subscriptionsKey(region)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading subscriptions for region %d: %w", region, err)
	}
	subs := make([]match.Subscription, 0, len(fields))
	for id, raw := range fields {
		var s match.Subscription
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			if c.log != nil {
				c.log.Warnf("skipping undecodable subscription %s in region %d: %v", id, region, err)
			}
			continue
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// SyncSubscriptions mirrors the full enabled subscription set into the
// cache, wholesale: stale region hashes are deleted, then every region is
// rewritten in one pipeline.
func (c *Cache) SyncSubscriptions(ctx context.Context, subs []match.Subscription) error {
	byRegion := make(map[int]map[string]interface{})
	for _, s := range subs {
		if !s.Enabled {
			continue
		}
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshaling subscription %d: %w", s.ID, err)
		}
		if byRegion[s.Region] == nil {
			byRegion[s.Region] = make(map[string]interface{})
		}
		byRegion[s.Region][strconv.FormatInt(s.ID, 10)] = data
	}

	stale, err := c.subscriptionKeys(ctx)
	if err != nil {
		return err
	}

	return c.retry.Do(ctx, "subscription sync", func() error {
		_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range stale {
				pipe.Del(ctx, key)
			}
			for region, fields := range byRegion {
				pipe.HSet(ctx, subscriptionsKey(region), fields)
			}
			return nil
		})
		return err
	})
}

// SyncSubscription mirrors one subscription after a change. A disabled
// subscription is removed from the mirror and loses its initialized flag.
// wasDisabled marks a disabled-to-enabled transition: the flag is cleared
// so the next cycle runs a fresh silent catch-up pass.
func (c *Cache) SyncSubscription(ctx context.Context, s match.Subscription, wasDisabled bool) error {
	if !s.Enabled {
		return c.RemoveSubscription(ctx, s.Region, s.ID)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling subscription %d: %w", s.ID, err)
	}
	return c.retry.Do(ctx, fmt.Sprintf("subscription %d sync", s.ID), func() error {
		_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, subscriptionsKey(s.Region), strconv.FormatInt(s.ID, 10), data)
			if wasDisabled {
				pipe.Del(ctx, initializedKey(s.ID))
			}
			return nil
		})
		return err
	})
}

// RemoveSubscription evicts a subscription from the mirror and clears its
// initialized flag. Used both for disables and for stale-cache eviction
// when the durable store no longer knows the subscription.
func (c *Cache) RemoveSubscription(ctx context.Context, region int, subID int64) error {
	return c.retry.Do(ctx, fmt.Sprintf("subscription %d removal", subID), func() error {
		_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, subscriptionsKey(region), strconv.FormatInt(subID, 10))
			pipe.Del(ctx, initializedKey(subID))
			return nil
		})
		return err
	})
}

// MarkInitialized flags a subscription as having completed its silent
// catch-up pass.
func (c *Cache) MarkInitialized(ctx context.Context, subID int64) error {
	if err := c.rdb.Set(ctx, initializedKey(subID), "1", initializedTTL).Err(); err != nil {
		return fmt.Errorf("marking subscription %d initialized: %w", subID, err)
	}
	return nil
}

// ClearInitialized removes a subscription's initialized flag.
func (c *Cache) ClearInitialized(ctx context.Context, subID int64) error {
	if err := c.rdb.Del(ctx, initializedKey(subID)).Err(); err != nil {
		return fmt.Errorf("clearing initialized flag for subscription %d: %w", subID, err)
	}
	return nil
}

// UninitializedIDs partitions subscription ids by the presence of their
// initialized flag, in one pipeline.
func (c *Cache) UninitializedIDs(ctx context.Context, subIDs []int64) (map[int64]bool, error) {
	uninit := make(map[int64]bool, len(subIDs))
	if len(subIDs) == 0 {
		return uninit, nil
	}
	cmds := make([]*redis.IntCmd, len(subIDs))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range subIDs {
			cmds[i] = pipe.Exists(ctx, initializedKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading initialized flags: %w", err)
	}
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			uninit[subIDs[i]] = true
		}
	}
	return uninit, nil
}

// ActiveRegions scans for regions that have at least one mirrored
// subscription.
func (c *Cache) ActiveRegions(ctx context.Context) ([]int, error) {
	keys, err := c.subscriptionKeys(ctx)
	if err != nil {
		return nil, err
	}
	var regions []int
	for _, key := range keys {
		region, ok := regionFromKey(key)
		if !ok {
			continue
		}
		regions = append(regions, region)
	}
	return regions, nil
}

func (c *Cache) subscriptionKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, "region:*:subscriptions", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning subscription keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func regionFromKey(key string) (int, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return 0, false
	}
	region, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return region, true
}
