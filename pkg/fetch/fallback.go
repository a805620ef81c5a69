package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

const (
	// DefaultMaxRetries is how many fast-tier attempts precede escalation.
	DefaultMaxRetries = 3
	// DefaultRetryDelay separates consecutive fast-tier attempts.
	DefaultRetryDelay = 1500 * time.Millisecond

	// fastBatchWorkers bounds concurrent fast-tier detail fetches in a batch.
	fastBatchWorkers = 5
)

// SlowListFactory lazily constructs the heavyweight list tier. It is only
// invoked after the fast tier has exhausted its attempts.
type SlowListFactory func() (SlowListTier, error)

// SlowDetailFactory lazily constructs the heavyweight detail tier.
type SlowDetailFactory func() (SlowDetailTier, error)

// FallbackList tries the fast list tier up to maxRetries times, then
// escalates to a lazily initialized browser tier. A not_found result
// short-circuits: the resource is confirmed gone, retrying cannot help.
type FallbackList struct {
	fast       ListTier
	newSlow    SlowListFactory
	maxRetries int
	retryDelay time.Duration
	log        Logger

	mu   sync.Mutex
	slow SlowListTier
}

// NewFallbackList composes the two list tiers.
func NewFallbackList(fast ListTier, newSlow SlowListFactory, log Logger) *FallbackList {
	return &FallbackList{
		fast:       fast,
		newSlow:    newSlow,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		log:        orNop(log),
	}
}

// FetchList fetches a list page, escalating to the slow tier when needed.
func (f *FallbackList) FetchList(ctx context.Context, p ListParams) ([]listing.ListRaw, Status, error) {
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		rows, status, err := f.fast.FetchList(ctx, p)
		switch status {
		case StatusSuccess:
			f.log.Debugf("fast list tier succeeded: %d rows", len(rows))
			return rows, StatusSuccess, nil
		case StatusNotFound:
			return nil, StatusNotFound, nil
		}
		f.log.Warnf("fast list tier attempt %d/%d failed: %v", attempt, f.maxRetries, err)
		if attempt < f.maxRetries {
			if err := sleepCtx(ctx, f.retryDelay); err != nil {
				return nil, StatusError, err
			}
		}
	}

	f.log.Warnf("fast list tier exhausted, escalating to browser tier")
	slow, err := f.ensureSlow()
	if err != nil {
		return nil, StatusError, err
	}
	return slow.FetchList(ctx, p)
}

func (f *FallbackList) ensureSlow() (SlowListTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slow == nil {
		slow, err := f.newSlow()
		if err != nil {
			return nil, err
		}
		f.slow = slow
	}
	return f.slow, nil
}

// Release tears down the browser tier, if it was ever started. The next
// escalation initializes a fresh one.
func (f *FallbackList) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slow != nil {
		if err := f.slow.Close(); err != nil {
			f.log.Warnf("closing slow list tier: %v", err)
		}
		f.slow = nil
	}
}

// FallbackDetail composes the two detail tiers with the same escalation
// discipline, plus batch fan-out over a bounded set of fast workers.
type FallbackDetail struct {
	fast       DetailTier
	newSlow    SlowDetailFactory
	maxRetries int
	retryDelay time.Duration
	log        Logger

	mu   sync.Mutex
	slow SlowDetailTier
}

// NewFallbackDetail composes the two detail tiers.
func NewFallbackDetail(fast DetailTier, newSlow SlowDetailFactory, log Logger) *FallbackDetail {
	return &FallbackDetail{
		fast:       fast,
		newSlow:    newSlow,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		log:        orNop(log),
	}
}

// FetchDetail fetches a single listing's detail, escalating when needed.
func (f *FallbackDetail) FetchDetail(ctx context.Context, id int64) (*listing.DetailRaw, Status, error) {
	raw, status := f.fetchFast(ctx, id)
	switch status {
	case StatusSuccess:
		return raw, StatusSuccess, nil
	case StatusNotFound:
		return nil, StatusNotFound, nil
	}

	f.log.Warnf("fast detail tier exhausted for %d, escalating to browser tier", id)
	slow, err := f.ensureSlow()
	if err != nil {
		return nil, StatusError, err
	}
	br, err := slow.FetchBatch(ctx, []int64{id})
	if err != nil {
		return nil, StatusError, err
	}
	if raw, ok := br.Details[id]; ok {
		return raw, StatusSuccess, nil
	}
	if len(br.NotFound) > 0 {
		return nil, StatusNotFound, nil
	}
	return nil, StatusError, nil
}

// FetchBatch fetches details for a batch of ids: the fast tier first,
// concurrently, then one browser-tier batch for whatever failed. Ids the
// fast tier confirmed gone are not retried on the slow tier.
func (f *FallbackDetail) FetchBatch(ctx context.Context, ids []int64) (BatchResult, error) {
	result := BatchResult{Details: make(map[int64]*listing.DetailRaw, len(ids))}
	if len(ids) == 0 {
		return result, nil
	}

	type outcome struct {
		id     int64
		raw    *listing.DetailRaw
		status Status
	}

	idChan := make(chan int64, len(ids))
	outcomes := make(chan outcome, len(ids))

	workers := fastBatchWorkers
	if len(ids) < workers {
		workers = len(ids)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range idChan {
				raw, status := f.fetchFast(ctx, id)
				outcomes <- outcome{id: id, raw: raw, status: status}
			}
		}()
	}
	for _, id := range ids {
		idChan <- id
	}
	close(idChan)
	wg.Wait()
	close(outcomes)

	var failed []int64
	for o := range outcomes {
		switch o.status {
		case StatusSuccess:
			result.Details[o.id] = o.raw
		case StatusNotFound:
			result.NotFound = append(result.NotFound, o.id)
		default:
			failed = append(failed, o.id)
		}
	}

	if len(failed) == 0 {
		return result, nil
	}

	f.log.Warnf("fast detail tier failed for %d/%d ids, escalating to browser tier", len(failed), len(ids))
	slow, err := f.ensureSlow()
	if err != nil {
		result.Errors += len(failed)
		return result, err
	}
	br, err := slow.FetchBatch(ctx, failed)
	if err != nil {
		result.Errors += len(failed)
		return result, err
	}
	for id, raw := range br.Details {
		result.Details[id] = raw
	}
	result.NotFound = append(result.NotFound, br.NotFound...)
	result.Errors += br.Errors
	return result, nil
}

// fetchFast runs the fast tier with retries. A success carrying no tags is
// treated as a failed attempt: the page rendered without its enrichment
// data.
func (f *FallbackDetail) fetchFast(ctx context.Context, id int64) (*listing.DetailRaw, Status) {
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		raw, status, err := f.fast.FetchDetail(ctx, id)
		switch {
		case status == StatusNotFound:
			return nil, StatusNotFound
		case status == StatusSuccess && len(raw.Tags) > 0:
			return raw, StatusSuccess
		case status == StatusSuccess:
			f.log.Warnf("fast detail tier attempt %d/%d returned empty tags for %d", attempt, f.maxRetries, id)
		default:
			f.log.Warnf("fast detail tier attempt %d/%d failed for %d: %v", attempt, f.maxRetries, id, err)
		}
		if attempt < f.maxRetries {
			if sleepCtx(ctx, f.retryDelay) != nil {
				return nil, StatusError
			}
		}
	}
	return nil, StatusError
}

func (f *FallbackDetail) ensureSlow() (SlowDetailTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slow == nil {
		slow, err := f.newSlow()
		if err != nil {
			return nil, err
		}
		f.slow = slow
	}
	return f.slow, nil
}

// Release tears down the browser tier, if it was ever started.
func (f *FallbackDetail) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slow != nil {
		if err := f.slow.Close(); err != nil {
			f.log.Warnf("closing slow detail tier: %v", err)
		}
		f.slow = nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
