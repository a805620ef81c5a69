package checker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/fetch"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/match"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/storage"
)

type fakeStore struct {
	upserted map[int64]*listing.Listing
	notified map[string]bool
	staleSub int64
	runs     int
	finished []string
	subs     []match.Subscription
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		upserted: make(map[int64]*listing.Listing),
		notified: make(map[string]bool),
	}
}

func markerKey(subID, listingID int64) string {
	return fmt.Sprintf("%d:%d", subID, listingID)
}

func (s *fakeStore) UpsertListing(ctx context.Context, l *listing.Listing) error {
	s.upserted[l.ID] = l
	return nil
}

func (s *fakeStore) MarkNotified(ctx context.Context, subID, listingID int64) error {
	if subID == s.staleSub {
		return storage.ErrStaleSubscription
	}
	s.notified[markerKey(subID, listingID)] = true
	return nil
}

func (s *fakeStore) IsNotified(ctx context.Context, subID, listingID int64) (bool, error) {
	return s.notified[markerKey(subID, listingID)], nil
}

func (s *fakeStore) StartRun(ctx context.Context, region int) (int64, error) {
	s.runs++
	return int64(s.runs), nil
}

func (s *fakeStore) FinishRun(ctx context.Context, id int64, status string, fetched, newCount, notified int, errText string) error {
	s.finished = append(s.finished, status)
	return nil
}

func (s *fakeStore) EnabledSubscriptions(ctx context.Context) ([]match.Subscription, error) {
	return s.subs, nil
}

type fakeCache struct {
	seen        map[int]map[int64]bool
	snapshots   map[int64]*listing.Listing
	subs        map[int][]match.Subscription
	initialized map[int64]bool
	initCalls   map[int64]int
	removed     []int64
	synced      []match.Subscription
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		seen:        make(map[int]map[int64]bool),
		snapshots:   make(map[int64]*listing.Listing),
		subs:        make(map[int][]match.Subscription),
		initialized: make(map[int64]bool),
		initCalls:   make(map[int64]int),
	}
}

func (c *fakeCache) NewIDs(ctx context.Context, region int, ids []int64) ([]int64, error) {
	var fresh []int64
	for _, id := range ids {
		if !c.seen[region][id] {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

func (c *fakeCache) AddSeenIDs(ctx context.Context, region int, ids []int64) error {
	if c.seen[region] == nil {
		c.seen[region] = make(map[int64]bool)
	}
	for _, id := range ids {
		c.seen[region][id] = true
	}
	return nil
}

func (c *fakeCache) SaveListing(ctx context.Context, l *listing.Listing) error {
	c.snapshots[l.ID] = l
	return nil
}

func (c *fakeCache) SubscriptionsByRegion(ctx context.Context, region int) ([]match.Subscription, error) {
	return c.subs[region], nil
}

func (c *fakeCache) SyncSubscriptions(ctx context.Context, subs []match.Subscription) error {
	c.synced = subs
	return nil
}

func (c *fakeCache) RemoveSubscription(ctx context.Context, region int, subID int64) error {
	c.removed = append(c.removed, subID)
	return nil
}

func (c *fakeCache) MarkInitialized(ctx context.Context, subID int64) error {
	c.initialized[subID] = true
	c.initCalls[subID]++
	return nil
}

func (c *fakeCache) UninitializedIDs(ctx context.Context, subIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	for _, id := range subIDs {
		if !c.initialized[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (c *fakeCache) ActiveRegions(ctx context.Context) ([]int, error) {
	var regions []int
	for r := range c.subs {
		regions = append(regions, r)
	}
	return regions, nil
}

type fakeLists struct {
	rows   []listing.ListRaw
	status fetch.Status
	err    error
}

func (f *fakeLists) FetchList(ctx context.Context, p fetch.ListParams) ([]listing.ListRaw, fetch.Status, error) {
	return f.rows, f.status, f.err
}

func (f *fakeLists) Release() {}

type fakeDetails struct {
	details  map[int64]*listing.DetailRaw
	notFound []int64
}

func (f *fakeDetails) FetchBatch(ctx context.Context, ids []int64) (fetch.BatchResult, error) {
	res := fetch.BatchResult{Details: make(map[int64]*listing.DetailRaw)}
	gone := make(map[int64]bool)
	for _, id := range f.notFound {
		gone[id] = true
	}
	for _, id := range ids {
		if gone[id] {
			res.NotFound = append(res.NotFound, id)
			continue
		}
		if d, ok := f.details[id]; ok {
			res.Details[id] = d
		}
	}
	return res, nil
}

func (f *fakeDetails) Release() {}

type sentMsg struct {
	target string
	id     int64
}

type fakeSink struct {
	sent    []sentMsg
	failFor string
}

func (f *fakeSink) Send(ctx context.Context, target string, l *listing.Listing, subName string) error {
	if target == f.failFor {
		return errors.New("telegram: 502")
	}
	f.sent = append(f.sent, sentMsg{target: target, id: l.ID})
	return nil
}

type fakeAlerts struct {
	kinds []string
}

func (f *fakeAlerts) Alert(ctx context.Context, kind string, region int, details string) error {
	f.kinds = append(f.kinds, kind)
	return nil
}

type testLog struct{}

func (testLog) Infof(string, ...interface{})  {}
func (testLog) Warnf(string, ...interface{})  {}
func (testLog) Errorf(string, ...interface{}) {}
func (testLog) Debugf(string, ...interface{}) {}

func listRow(id int64) listing.ListRaw {
	return listing.ListRaw{
		ID:       strconv.FormatInt(id, 10),
		Title:    "松山區精緻套房",
		PriceRaw: "15,000",
		KindName: "獨立套房",
	}
}

func detailFor(id int64) *listing.DetailRaw {
	return &listing.DetailRaw{
		ID:       id,
		Title:    "松山區精緻套房",
		PriceRaw: "15000",
		Region:   "1",
		Kind:     "2",
		Tags:     []string{"冷氣"},
	}
}

func openSub(id int64) match.Subscription {
	return match.Subscription{
		ID:      id,
		Name:    "taipei",
		Region:  1,
		Enabled: true,
		Target:  strconv.FormatInt(id, 10),
	}
}

func newTestChecker(store *fakeStore, cache *fakeCache, lists *fakeLists, details *fakeDetails, sink *fakeSink, alerts *fakeAlerts) *Checker {
	return New(store, cache, lists, details, sink, alerts, testLog{}, 0)
}

func TestCheckDiffsAgainstSeenSet(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	cache.AddSeenIDs(context.Background(), 1, []int64{100})

	lists := &fakeLists{
		rows:   []listing.ListRaw{listRow(100), listRow(200)},
		status: fetch.StatusSuccess,
	}
	details := &fakeDetails{details: map[int64]*listing.DetailRaw{200: detailFor(200)}}

	c := newTestChecker(store, cache, lists, details, &fakeSink{}, &fakeAlerts{})
	res, err := c.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Fetched != 2 || res.New != 1 {
		t.Fatalf("fetched=%d new=%d, want 2/1", res.Fetched, res.New)
	}
	if _, ok := store.upserted[100]; ok {
		t.Fatal("already-seen listing must not be re-persisted")
	}
	if _, ok := store.upserted[200]; !ok {
		t.Fatal("new listing 200 not persisted")
	}
	if !cache.seen[1][200] {
		t.Fatal("new listing 200 not recorded in seen set")
	}
}

func TestCheckEmptyListIsNoopSuccess(t *testing.T) {
	store := newFakeStore()
	alerts := &fakeAlerts{}
	lists := &fakeLists{status: fetch.StatusError, err: errors.New("both tiers failed")}

	c := newTestChecker(store, newFakeCache(), lists, &fakeDetails{}, &fakeSink{}, alerts)
	res, err := c.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("empty list must not fail the cycle: %v", err)
	}
	if res.Fetched != 0 || res.New != 0 || res.Notified != 0 {
		t.Fatalf("expected no-op result, got %+v", res)
	}
	if len(store.finished) != 1 || store.finished[0] != storage.RunSuccess {
		t.Fatalf("audit row should finalize as success, got %v", store.finished)
	}
	if len(alerts.kinds) != 1 || alerts.kinds[0] != AlertListFetch {
		t.Fatalf("expected a list-fetch alert, got %v", alerts.kinds)
	}
}

func TestCheckGoneIDMarkedSeenNotPersisted(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	lists := &fakeLists{rows: []listing.ListRaw{listRow(300)}, status: fetch.StatusSuccess}
	details := &fakeDetails{notFound: []int64{300}}

	c := newTestChecker(store, cache, lists, details, &fakeSink{}, &fakeAlerts{})
	if _, err := c.Check(context.Background(), 1); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if _, ok := store.upserted[300]; ok {
		t.Fatal("gone listing must not be persisted")
	}
	if !cache.seen[1][300] {
		t.Fatal("gone listing must still be marked seen")
	}
}

func TestCheckListOnlyFallbackOnMissingDetail(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	lists := &fakeLists{rows: []listing.ListRaw{listRow(400)}, status: fetch.StatusSuccess}
	details := &fakeDetails{} // no detail, no not-found: partial failure

	c := newTestChecker(store, cache, lists, details, &fakeSink{}, &fakeAlerts{})
	if _, err := c.Check(context.Background(), 1); err != nil {
		t.Fatalf("Check: %v", err)
	}
	l, ok := store.upserted[400]
	if !ok {
		t.Fatal("listing without detail must still be persisted list-only")
	}
	if l.HasDetail {
		t.Fatal("list-only listing must not claim detail data")
	}
}

func TestFirstExposureSuppressedThenInitialized(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	cache.subs[1] = []match.Subscription{openSub(7)}

	lists := &fakeLists{rows: []listing.ListRaw{listRow(500)}, status: fetch.StatusSuccess}
	details := &fakeDetails{details: map[int64]*listing.DetailRaw{500: detailFor(500)}}
	sink := &fakeSink{}

	c := newTestChecker(store, cache, lists, details, sink, &fakeAlerts{})
	res, err := c.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if res.Notified != 0 || len(sink.sent) != 0 {
		t.Fatalf("first-exposure matches must be suppressed, sent=%v", sink.sent)
	}
	if !cache.initialized[7] {
		t.Fatal("subscription must be flagged initialized after its catch-up cycle")
	}
	if cache.initCalls[7] != 1 {
		t.Fatalf("MarkInitialized calls = %d, want 1", cache.initCalls[7])
	}

	// Second cycle with a fresh listing notifies normally.
	lists.rows = []listing.ListRaw{listRow(501)}
	details.details[501] = detailFor(501)
	res, err = c.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if res.Notified != 1 || len(sink.sent) != 1 {
		t.Fatalf("initialized subscription should be notified, got %+v sent=%v", res, sink.sent)
	}
	if cache.initCalls[7] != 1 {
		t.Fatalf("initialized flag must not be rewritten, calls=%d", cache.initCalls[7])
	}
}

func TestNotifyAtMostOncePerPair(t *testing.T) {
	store := newFakeStore()
	store.notified[markerKey(7, 600)] = true
	cache := newFakeCache()
	cache.subs[1] = []match.Subscription{openSub(7)}
	cache.initialized[7] = true
	// Listing 600 resurfaces as "new" after a cache flush.
	lists := &fakeLists{rows: []listing.ListRaw{listRow(600)}, status: fetch.StatusSuccess}
	details := &fakeDetails{details: map[int64]*listing.DetailRaw{600: detailFor(600)}}
	sink := &fakeSink{}

	c := newTestChecker(store, cache, lists, details, sink, &fakeAlerts{})
	res, err := c.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(sink.sent) != 0 || res.Notified != 0 {
		t.Fatalf("already-notified pair must not be re-sent, sent=%v", sink.sent)
	}
}

func TestStaleSubscriptionEvictedFromCache(t *testing.T) {
	store := newFakeStore()
	store.staleSub = 9
	cache := newFakeCache()
	cache.subs[1] = []match.Subscription{openSub(9)}
	cache.initialized[9] = true

	lists := &fakeLists{rows: []listing.ListRaw{listRow(700)}, status: fetch.StatusSuccess}
	details := &fakeDetails{details: map[int64]*listing.DetailRaw{700: detailFor(700)}}
	sink := &fakeSink{}

	c := newTestChecker(store, cache, lists, details, sink, &fakeAlerts{})
	res, err := c.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("stale subscription must not fail the cycle: %v", err)
	}
	if res.Notified != 0 {
		t.Fatalf("stale delivery must not count as notified, got %d", res.Notified)
	}
	if len(cache.removed) != 1 || cache.removed[0] != 9 {
		t.Fatalf("stale subscription not evicted: %v", cache.removed)
	}
}

func TestNotifyFailureAlertsAndContinues(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	cache.subs[1] = []match.Subscription{openSub(7), openSub(8)}
	cache.initialized[7] = true
	cache.initialized[8] = true

	lists := &fakeLists{rows: []listing.ListRaw{listRow(800)}, status: fetch.StatusSuccess}
	details := &fakeDetails{details: map[int64]*listing.DetailRaw{800: detailFor(800)}}
	sink := &fakeSink{failFor: "7"}
	alerts := &fakeAlerts{}

	c := newTestChecker(store, cache, lists, details, sink, alerts)
	res, err := c.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Notified != 1 {
		t.Fatalf("surviving subscription should be notified, got %d", res.Notified)
	}
	found := false
	for _, k := range alerts.kinds {
		if k == AlertNotify {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a notify alert, got %v", alerts.kinds)
	}
	if store.notified[markerKey(7, 800)] {
		t.Fatal("failed send must not be marked notified")
	}
}

func TestSyncSubscriptionsMirrorsEnabled(t *testing.T) {
	store := newFakeStore()
	store.subs = []match.Subscription{openSub(1), openSub(2)}
	cache := newFakeCache()

	c := newTestChecker(store, cache, &fakeLists{}, &fakeDetails{}, &fakeSink{}, &fakeAlerts{})
	if err := c.SyncSubscriptions(context.Background()); err != nil {
		t.Fatalf("SyncSubscriptions: %v", err)
	}
	if len(cache.synced) != 2 {
		t.Fatalf("mirrored %d subscriptions, want 2", len(cache.synced))
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorKind
	}{
		{"upserting listing 5: sqlite: disk I/O error", ErrorStore},
		{"diffing seen set: redis: connection refused", ErrorCache},
		{"something else entirely", ErrorUnknown},
	}
	for _, c := range cases {
		if got := ClassifyError(errors.New(c.msg)); got != c.want {
			t.Fatalf("ClassifyError(%q) = %s, want %s", c.msg, got, c.want)
		}
	}
}
