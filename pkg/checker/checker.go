// Package checker runs one discovery cycle per region: fetch the list page,
// diff against the cache's seen set, enrich new ids with detail data,
// persist, match against the region's subscriptions, and notify.
package checker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/fetch"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/match"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/storage"
)

// DefaultMaxItems bounds how many list rows one cycle considers.
const DefaultMaxItems = 30

// Store is the slice of the durable store the checker needs.
type Store interface {
	UpsertListing(ctx context.Context, l *listing.Listing) error
	MarkNotified(ctx context.Context, subID, listingID int64) error
	IsNotified(ctx context.Context, subID, listingID int64) (bool, error)
	StartRun(ctx context.Context, region int) (int64, error)
	FinishRun(ctx context.Context, id int64, status string, fetched, newCount, notified int, errText string) error
	EnabledSubscriptions(ctx context.Context) ([]match.Subscription, error)
}

// Cache is the slice of the fast store the checker needs.
type Cache interface {
	NewIDs(ctx context.Context, region int, ids []int64) ([]int64, error)
	AddSeenIDs(ctx context.Context, region int, ids []int64) error
	SaveListing(ctx context.Context, l *listing.Listing) error
	SubscriptionsByRegion(ctx context.Context, region int) ([]match.Subscription, error)
	SyncSubscriptions(ctx context.Context, subs []match.Subscription) error
	RemoveSubscription(ctx context.Context, region int, subID int64) error
	MarkInitialized(ctx context.Context, subID int64) error
	UninitializedIDs(ctx context.Context, subIDs []int64) (map[int64]bool, error)
	ActiveRegions(ctx context.Context) ([]int, error)
}

// ListFetcher is the list-page side of the fetch layer.
type ListFetcher interface {
	FetchList(ctx context.Context, p fetch.ListParams) ([]listing.ListRaw, fetch.Status, error)
	Release()
}

// DetailFetcher is the detail-page side of the fetch layer.
type DetailFetcher interface {
	FetchBatch(ctx context.Context, ids []int64) (fetch.BatchResult, error)
	Release()
}

// NotificationSink delivers one matched listing to a subscription's target.
type NotificationSink interface {
	Send(ctx context.Context, target string, l *listing.Listing, subName string) error
}

// AlertSink reports operator-facing failures.
type AlertSink interface {
	Alert(ctx context.Context, kind string, region int, details string) error
}

// Alert kinds passed to the AlertSink.
const (
	AlertListFetch   = "list fetch failed"
	AlertDetailFetch = "detail fetch partially failed"
	AlertNotify      = "notification delivery failed"
	AlertCycle       = "cycle failed"
)

// Logger abstracts logging, matching the shape of logrus.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Checker orchestrates discovery cycles. One instance per process; a cycle
// runs one region at a time.
type Checker struct {
	store    Store
	cache    Cache
	lists    ListFetcher
	details  DetailFetcher
	sink     NotificationSink
	alerts   AlertSink
	log      Logger
	maxItems int
}

// New wires a checker. maxItems <= 0 selects the default.
func New(store Store, cache Cache, lists ListFetcher, details DetailFetcher,
	sink NotificationSink, alerts AlertSink, log Logger, maxItems int) *Checker {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Checker{
		store:    store,
		cache:    cache,
		lists:    lists,
		details:  details,
		sink:     sink,
		alerts:   alerts,
		log:      log,
		maxItems: maxItems,
	}
}

// Result summarizes one cycle.
type Result struct {
	Region   int
	Fetched  int
	New      int
	Notified int
}

// Check runs one full discovery cycle for a region. An empty or failed
// list fetch finalizes as a no-op success; anything breaking mid-cycle is
// classified, alerted, written to the audit row, and propagated.
func (c *Checker) Check(ctx context.Context, region int) (*Result, error) {
	runID, err := c.store.StartRun(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("starting audit row for region %d: %w", region, err)
	}

	res, err := c.runCycle(ctx, region)
	if err != nil {
		kind := ClassifyError(err)
		c.log.Errorf("cycle failed for region %d (%s): %v", region, kind, err)
		c.alert(ctx, AlertCycle, region, fmt.Sprintf("[%s] %v", kind, err))
		if ferr := c.store.FinishRun(ctx, runID, storage.RunFailed,
			res.Fetched, res.New, res.Notified, err.Error()); ferr != nil {
			c.log.Errorf("finalizing failed audit row for region %d: %v", region, ferr)
		}
		return nil, err
	}

	if err := c.store.FinishRun(ctx, runID, storage.RunSuccess,
		res.Fetched, res.New, res.Notified, ""); err != nil {
		return nil, fmt.Errorf("finalizing audit row for region %d: %w", region, err)
	}
	c.log.Infof("cycle done for region %d: fetched=%d new=%d notified=%d",
		region, res.Fetched, res.New, res.Notified)
	return res, nil
}

func (c *Checker) runCycle(ctx context.Context, region int) (*Result, error) {
	res := &Result{Region: region}

	// FETCH_LIST. An empty page is expected under upstream rate limiting,
	// so it is a no-op success, not a cycle failure.
	rows, status, err := c.lists.FetchList(ctx, fetch.ListParams{
		Region:   region,
		MaxItems: c.maxItems,
	})
	if status != fetch.StatusSuccess || len(rows) == 0 {
		c.log.Warnf("list fetch for region %d produced nothing (status=%s): %v", region, status, err)
		c.alert(ctx, AlertListFetch, region, fmt.Sprintf("status=%s err=%v", status, err))
		return res, nil
	}
	res.Fetched = len(rows)

	// DIFF against the cache's seen set, never the durable store.
	byID := make(map[int64]listing.ListRaw, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, err := strconv.ParseInt(row.ID, 10, 64)
		if err != nil {
			c.log.Warnf("skipping list row with bad id %q", row.ID)
			continue
		}
		if _, dup := byID[id]; dup {
			continue
		}
		byID[id] = row
		ids = append(ids, id)
	}
	newIDs, err := c.cache.NewIDs(ctx, region, ids)
	if err != nil {
		return res, fmt.Errorf("diffing seen set: %w", err)
	}
	if len(newIDs) == 0 {
		c.log.Debugf("region %d: no new ids among %d fetched", region, len(ids))
		return res, nil
	}
	res.New = len(newIDs)
	c.log.Infof("region %d: %d new ids", region, len(newIDs))

	// FETCH_DETAILS. Partial failure is tolerated: a listing with no detail
	// proceeds list-only.
	batch, err := c.details.FetchBatch(ctx, newIDs)
	if err != nil {
		c.log.Warnf("detail batch for region %d: %v", region, err)
	}
	if batch.Errors > 0 {
		c.alert(ctx, AlertDetailFetch, region,
			fmt.Sprintf("%d of %d detail fetches failed", batch.Errors, len(newIDs)))
	}

	// PERSIST_AND_CACHE. The seen-set write for an id follows its durable
	// upsert, so a crash between the two re-processes instead of losing.
	gone := make(map[int64]bool, len(batch.NotFound))
	for _, id := range batch.NotFound {
		gone[id] = true
	}
	var fresh []*listing.Listing
	for _, id := range newIDs {
		if gone[id] {
			// Removed upstream between list and detail. Remember the id so
			// the next cycle skips it, persist nothing.
			if err := c.cache.AddSeenIDs(ctx, region, []int64{id}); err != nil {
				return res, fmt.Errorf("recording gone id %d as seen: %w", id, err)
			}
			continue
		}
		row := byID[id]

		var combined listing.CombinedRaw
		if detail := batch.Details[id]; detail != nil {
			combined = listing.Combine(row, *detail)
		} else {
			combined = listing.CombineListOnly(row)
		}
		l := listing.Transform(combined)
		if l.Region == 0 {
			l.Region = region
		}

		if err := c.store.UpsertListing(ctx, &l); err != nil {
			return res, fmt.Errorf("upserting listing %d: %w", id, err)
		}
		if err := c.cache.AddSeenIDs(ctx, region, []int64{id}); err != nil {
			return res, fmt.Errorf("recording id %d as seen: %w", id, err)
		}
		if err := c.cache.SaveListing(ctx, &l); err != nil {
			c.log.Warnf("caching snapshot for listing %d: %v", id, err)
		}
		fresh = append(fresh, &l)
	}
	if len(fresh) == 0 {
		return res, nil
	}

	// MATCH + NOTIFY.
	notified, err := c.matchAndNotify(ctx, region, fresh)
	res.Notified = notified
	return res, err
}

// matchAndNotify evaluates every fresh listing against the region's
// mirrored subscriptions and delivers notifications for initialized ones.
// Uninitialized subscriptions have their matches suppressed and are flagged
// initialized at the end: their first exposure is a silent catch-up pass.
func (c *Checker) matchAndNotify(ctx context.Context, region int, fresh []*listing.Listing) (int, error) {
	subs, err := c.cache.SubscriptionsByRegion(ctx, region)
	if err != nil {
		return 0, fmt.Errorf("loading subscriptions for region %d: %w", region, err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	subIDs := make([]int64, len(subs))
	for i, s := range subs {
		subIDs[i] = s.ID
	}
	uninit, err := c.cache.UninitializedIDs(ctx, subIDs)
	if err != nil {
		return 0, fmt.Errorf("reading initialized flags: %w", err)
	}

	type pair struct {
		l   *listing.Listing
		sub match.Subscription
	}
	var notifiable []pair
	suppressed := 0
	for _, l := range fresh {
		for _, sub := range subs {
			sub := sub
			if !match.Matches(l, &sub) {
				continue
			}
			if uninit[sub.ID] {
				suppressed++
				continue
			}
			notifiable = append(notifiable, pair{l: l, sub: sub})
		}
	}
	if suppressed > 0 {
		c.log.Infof("region %d: suppressed %d first-exposure matches", region, suppressed)
	}

	notified := 0
	failures := 0
	for _, p := range notifiable {
		already, err := c.store.IsNotified(ctx, p.sub.ID, p.l.ID)
		if err != nil {
			return notified, fmt.Errorf("checking notified marker (%d,%d): %w", p.sub.ID, p.l.ID, err)
		}
		if already {
			continue
		}

		if err := c.sink.Send(ctx, p.sub.Target, p.l, p.sub.Name); err != nil {
			c.log.Warnf("notifying subscription %d about listing %d: %v", p.sub.ID, p.l.ID, err)
			failures++
			continue
		}

		switch err := c.store.MarkNotified(ctx, p.sub.ID, p.l.ID); {
		case errors.Is(err, storage.ErrStaleSubscription):
			// The mirror outlived the durable record. Evict and move on.
			c.log.Warnf("evicting stale subscription %d from region %d cache", p.sub.ID, region)
			if rerr := c.cache.RemoveSubscription(ctx, region, p.sub.ID); rerr != nil {
				c.log.Errorf("evicting stale subscription %d: %v", p.sub.ID, rerr)
			}
		case err != nil:
			return notified, fmt.Errorf("marking notified (%d,%d): %w", p.sub.ID, p.l.ID, err)
		default:
			notified++
		}
	}
	if failures > 0 {
		c.alert(ctx, AlertNotify, region, fmt.Sprintf("%d sends failed", failures))
	}

	// Every subscription that sat out this match pass uninitialized has now
	// had its catch-up; flag it so the next cycle notifies.
	for id := range uninit {
		if err := c.cache.MarkInitialized(ctx, id); err != nil {
			return notified, fmt.Errorf("marking subscription %d initialized: %w", id, err)
		}
	}
	return notified, nil
}

// CheckActiveRegions runs one cycle for every region that has mirrored
// subscriptions. A failed region does not stop the rest.
func (c *Checker) CheckActiveRegions(ctx context.Context) error {
	regions, err := c.cache.ActiveRegions(ctx)
	if err != nil {
		return fmt.Errorf("discovering active regions: %w", err)
	}
	if len(regions) == 0 {
		c.log.Debugf("no active regions")
		return nil
	}

	var firstErr error
	for _, region := range regions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := c.Check(ctx, region); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SyncSubscriptions mirrors all enabled subscriptions from the durable
// store into the cache. Runs at startup and on demand.
func (c *Checker) SyncSubscriptions(ctx context.Context) error {
	subs, err := c.store.EnabledSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("loading enabled subscriptions: %w", err)
	}
	if err := c.cache.SyncSubscriptions(ctx, subs); err != nil {
		return fmt.Errorf("mirroring %d subscriptions: %w", len(subs), err)
	}
	c.log.Infof("mirrored %d enabled subscriptions into cache", len(subs))
	return nil
}

// Release tears down heavyweight fetcher resources between cycles.
func (c *Checker) Release() {
	c.lists.Release()
	c.details.Release()
}

func (c *Checker) alert(ctx context.Context, kind string, region int, details string) {
	if c.alerts == nil {
		return
	}
	if err := c.alerts.Alert(ctx, kind, region, details); err != nil {
		c.log.Warnf("sending operator alert: %v", err)
	}
}

// ErrorKind classifies a cycle failure for alerting and audit.
type ErrorKind string

const (
	ErrorStore   ErrorKind = "store"
	ErrorCache   ErrorKind = "cache"
	ErrorUnknown ErrorKind = "unknown"
)

// ClassifyError assigns a cycle failure to a store by keyword. Crude, but
// it only feeds the operator alert, never control flow.
func ClassifyError(err error) ErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "sqlite") || strings.Contains(msg, "sql") ||
		strings.Contains(msg, "database"):
		return ErrorStore
	case strings.Contains(msg, "redis") || strings.Contains(msg, "cache") ||
		strings.Contains(msg, "seen set"):
		return ErrorCache
	default:
		return ErrorUnknown
	}
}
