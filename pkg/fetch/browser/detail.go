package browser

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/fetch"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

// Detail is the browser-tier detail fetcher. Batches fan out over a pool
// sized to the batch, one tab per listing.
type Detail struct {
	session *Session
	pool    *Pool
	log     fetch.Logger
}

// NewDetail starts a browser session for detail pages.
func NewDetail(o Options, maxWorkers int, log fetch.Logger) (*Detail, error) {
	session, err := NewSession(o, log)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = noplog{}
	}
	return &Detail{
		session: session,
		pool:    NewPool(maxWorkers),
		log:     log,
	}, nil
}

// FetchBatch renders each listing's detail page and extracts its page
// state. Ids whose navigation was aborted or that redirect away are
// counted as gone.
func (d *Detail) FetchBatch(ctx context.Context, ids []int64) (fetch.BatchResult, error) {
	result := fetch.BatchResult{Details: make(map[int64]*listing.DetailRaw, len(ids))}
	if len(ids) == 0 {
		return result, nil
	}

	workers := d.pool.Resize(len(ids))
	d.log.Infof("browser detail batch: %d ids across %d workers", len(ids), workers)

	var mu sync.Mutex
	for _, id := range ids {
		id := id
		d.pool.Submit(func() {
			raw, status := d.fetchOne(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case fetch.StatusSuccess:
				result.Details[id] = raw
			case fetch.StatusNotFound:
				result.NotFound = append(result.NotFound, id)
			default:
				result.Errors++
			}
		})
	}
	d.pool.Wait()

	return result, ctx.Err()
}

func (d *Detail) fetchOne(ctx context.Context, id int64) (*listing.DetailRaw, fetch.Status) {
	if ctx.Err() != nil {
		return nil, fetch.StatusError
	}

	finalURL, stateJSON, err := d.session.pageState(ctx, fetch.DetailURL(id))
	if err != nil {
		if isGoneErr(err) {
			return nil, fetch.StatusNotFound
		}
		d.log.Warnf("browser detail fetch %d: %v", id, err)
		return nil, fetch.StatusError
	}
	if finalURL != "" && !strings.Contains(finalURL, "/"+strconv.FormatInt(id, 10)) {
		// Removed listings redirect back to the list page.
		return nil, fetch.StatusNotFound
	}

	state, ok := fetch.StateFromJSON(stateJSON)
	if !ok {
		d.log.Warnf("browser detail fetch %d: page state missing", id)
		return nil, fetch.StatusError
	}
	raw := fetch.DetailFromState(state, id)
	if raw == nil {
		return nil, fetch.StatusError
	}
	return raw, fetch.StatusSuccess
}

// Close shuts the browser down.
func (d *Detail) Close() error {
	d.pool.Wait()
	return d.session.Close()
}
