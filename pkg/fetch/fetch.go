// Package fetch retrieves list and detail pages from the upstream rental
// site. Each page type has a fast HTML-parsing tier and a slower
// browser-automation tier, composed by the fallback fetchers.
package fetch

import (
	"context"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

// Status is the outcome of a single fetch.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// ListParams selects which slice of the upstream catalog a list fetch covers.
type ListParams struct {
	Region   int
	Section  int
	Sort     string // defaults to newest-first
	MaxItems int
}

// ListTier fetches one list page worth of raw rows.
type ListTier interface {
	FetchList(ctx context.Context, p ListParams) ([]listing.ListRaw, Status, error)
}

// DetailTier fetches the raw field set for a single listing id.
type DetailTier interface {
	FetchDetail(ctx context.Context, id int64) (*listing.DetailRaw, Status, error)
}

// SlowListTier is a heavyweight list tier with an owned browser session.
type SlowListTier interface {
	ListTier
	Close() error
}

// SlowDetailTier is a heavyweight detail tier that batches ids across a
// dynamically sized worker pool.
type SlowDetailTier interface {
	FetchBatch(ctx context.Context, ids []int64) (BatchResult, error)
	Close() error
}

// BatchResult aggregates a detail batch: fetched raw data, the ids
// confirmed gone, and a count of ids that failed outright.
type BatchResult struct {
	Details  map[int64]*listing.DetailRaw
	NotFound []int64
	Errors   int
}

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

func orNop(log Logger) Logger {
	if log == nil {
		return nopLogger{}
	}
	return log
}
