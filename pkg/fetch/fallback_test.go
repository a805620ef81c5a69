package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

type fakeListTier struct {
	calls  int
	rows   []listing.ListRaw
	status Status
	err    error
}

func (f *fakeListTier) FetchList(ctx context.Context, p ListParams) ([]listing.ListRaw, Status, error) {
	f.calls++
	return f.rows, f.status, f.err
}

type fakeSlowList struct {
	calls  int
	closed bool
	rows   []listing.ListRaw
}

func (f *fakeSlowList) FetchList(ctx context.Context, p ListParams) ([]listing.ListRaw, Status, error) {
	f.calls++
	return f.rows, StatusSuccess, nil
}

func (f *fakeSlowList) Close() error {
	f.closed = true
	return nil
}

func newTestFallbackList(fast ListTier, slow *fakeSlowList, inits *int) *FallbackList {
	f := NewFallbackList(fast, func() (SlowListTier, error) {
		*inits++
		return slow, nil
	}, nil)
	f.retryDelay = time.Millisecond
	return f
}

func TestFallbackListEscalation(t *testing.T) {
	fast := &fakeListTier{status: StatusError, err: errors.New("boom")}
	slow := &fakeSlowList{rows: []listing.ListRaw{{ID: "1"}}}
	inits := 0
	f := newTestFallbackList(fast, slow, &inits)

	rows, status, err := f.FetchList(context.Background(), ListParams{Region: 1})
	if err != nil || status != StatusSuccess {
		t.Fatalf("want slow-tier success, got status=%s err=%v", status, err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	if fast.calls != DefaultMaxRetries {
		t.Fatalf("want %d fast attempts, got %d", DefaultMaxRetries, fast.calls)
	}
	if inits != 1 || slow.calls != 1 {
		t.Fatalf("want exactly one slow-tier init and attempt, got %d/%d", inits, slow.calls)
	}
}

func TestFallbackListNotFoundShortCircuits(t *testing.T) {
	fast := &fakeListTier{status: StatusNotFound}
	slow := &fakeSlowList{}
	inits := 0
	f := newTestFallbackList(fast, slow, &inits)

	_, status, err := f.FetchList(context.Background(), ListParams{Region: 1})
	if err != nil || status != StatusNotFound {
		t.Fatalf("want not_found, got status=%s err=%v", status, err)
	}
	if fast.calls != 1 {
		t.Fatalf("not_found must not be retried, got %d attempts", fast.calls)
	}
	if inits != 0 {
		t.Fatal("not_found must not initialize the slow tier")
	}
}

func TestFallbackListLazyInitAndRelease(t *testing.T) {
	fast := &fakeListTier{status: StatusError, err: errors.New("boom")}
	slow := &fakeSlowList{rows: []listing.ListRaw{{ID: "1"}}}
	inits := 0
	f := newTestFallbackList(fast, slow, &inits)

	f.FetchList(context.Background(), ListParams{Region: 1})
	f.FetchList(context.Background(), ListParams{Region: 1})
	if inits != 1 {
		t.Fatalf("slow tier must be initialized once, got %d", inits)
	}

	f.Release()
	if !slow.closed {
		t.Fatal("Release must close the slow tier")
	}

	f.FetchList(context.Background(), ListParams{Region: 1})
	if inits != 2 {
		t.Fatalf("escalation after Release must re-initialize, got %d inits", inits)
	}
}

type fakeDetailTier struct {
	calls  int
	byID   map[int64]*listing.DetailRaw
	status Status
	noTags bool
}

func (f *fakeDetailTier) FetchDetail(ctx context.Context, id int64) (*listing.DetailRaw, Status, error) {
	f.calls++
	if f.status != StatusSuccess {
		return nil, f.status, errors.New("boom")
	}
	raw := f.byID[id]
	if raw == nil {
		raw = &listing.DetailRaw{ID: id}
		if !f.noTags {
			raw.Tags = []string{"近捷運"}
		}
	}
	return raw, StatusSuccess, nil
}

type fakeSlowDetail struct {
	batches [][]int64
	closed  bool
}

func (f *fakeSlowDetail) FetchBatch(ctx context.Context, ids []int64) (BatchResult, error) {
	f.batches = append(f.batches, ids)
	br := BatchResult{Details: make(map[int64]*listing.DetailRaw, len(ids))}
	for _, id := range ids {
		br.Details[id] = &listing.DetailRaw{ID: id, Tags: []string{"近捷運"}}
	}
	return br, nil
}

func (f *fakeSlowDetail) Close() error {
	f.closed = true
	return nil
}

func newTestFallbackDetail(fast DetailTier, slow *fakeSlowDetail, inits *int) *FallbackDetail {
	f := NewFallbackDetail(fast, func() (SlowDetailTier, error) {
		*inits++
		return slow, nil
	}, nil)
	f.retryDelay = time.Millisecond
	return f
}

func TestFallbackDetailEmptyTagsCountsAsFailure(t *testing.T) {
	fast := &fakeDetailTier{status: StatusSuccess, noTags: true}
	slow := &fakeSlowDetail{}
	inits := 0
	f := newTestFallbackDetail(fast, slow, &inits)

	raw, status, err := f.FetchDetail(context.Background(), 42)
	if err != nil || status != StatusSuccess {
		t.Fatalf("want slow-tier success, got status=%s err=%v", status, err)
	}
	if len(raw.Tags) == 0 {
		t.Fatal("want enriched detail from slow tier")
	}
	if fast.calls != DefaultMaxRetries {
		t.Fatalf("empty tags must burn all fast attempts, got %d", fast.calls)
	}
	if inits != 1 || len(slow.batches) != 1 {
		t.Fatalf("want one slow-tier batch, got inits=%d batches=%d", inits, len(slow.batches))
	}
}

func TestFallbackDetailBatchEscalatesOnlyFailures(t *testing.T) {
	fast := &fakeDetailTier{
		status: StatusSuccess,
		byID: map[int64]*listing.DetailRaw{
			1: {ID: 1, Tags: []string{"近捷運"}},
			2: {ID: 2, Tags: []string{"可養寵物"}},
		},
	}
	slow := &fakeSlowDetail{}
	inits := 0
	f := newTestFallbackDetail(fast, slow, &inits)

	br, err := f.FetchBatch(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(br.Details) != 2 || len(br.NotFound) != 0 || br.Errors != 0 {
		t.Fatalf("unexpected batch result %+v", br)
	}
	if inits != 0 {
		t.Fatal("fully successful fast batch must not touch the slow tier")
	}
}

func TestFallbackDetailBatchEmpty(t *testing.T) {
	slow := &fakeSlowDetail{}
	inits := 0
	f := newTestFallbackDetail(&fakeDetailTier{status: StatusSuccess}, slow, &inits)

	br, err := f.FetchBatch(context.Background(), nil)
	if err != nil || len(br.Details) != 0 {
		t.Fatalf("empty batch should be a no-op, got %+v err=%v", br, err)
	}
}
