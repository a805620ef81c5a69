package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrStaleSubscription means a notified marker referenced a subscription
// the durable store no longer has. The caller should evict that
// subscription from the cache mirror and carry on.
var ErrStaleSubscription = errors.New("subscription no longer exists")

// MarkNotified records that a (subscription, listing) pair was notified.
// Recording the same pair again is a no-op, which is what makes repeat
// NOTIFY passes after a crash safe.
func (d *DB) MarkNotified(ctx context.Context, subID, listingID int64) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT OR IGNORE INTO notified (subscription_id, listing_id) VALUES (?, ?)",
		subID, listingID)
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return ErrStaleSubscription
	}
	return err
}

// IsNotified reports whether a (subscription, listing) pair already has a
// notified marker.
func (d *DB) IsNotified(ctx context.Context, subID, listingID int64) (bool, error) {
	var n int
	err := d.sql.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notified WHERE subscription_id = ? AND listing_id = ?",
		subID, listingID).Scan(&n)
	return n > 0, err
}
