package browser

import (
	"context"
	"fmt"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/fetch"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

// List is the browser-tier list fetcher. One page load per call; no pool,
// list fetches are never batched.
type List struct {
	session *Session
	log     fetch.Logger
}

// NewList starts a browser session for list pages.
func NewList(o Options, log fetch.Logger) (*List, error) {
	session, err := NewSession(o, log)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = noplog{}
	}
	return &List{session: session, log: log}, nil
}

// FetchList renders the list page and extracts rows from its page state.
func (l *List) FetchList(ctx context.Context, p fetch.ListParams) ([]listing.ListRaw, fetch.Status, error) {
	url := fetch.ListURL(p)
	l.log.Debugf("browser list fetch: %s", url)

	_, stateJSON, err := l.session.pageState(ctx, url)
	if err != nil {
		if isGoneErr(err) {
			return nil, fetch.StatusNotFound, nil
		}
		return nil, fetch.StatusError, fmt.Errorf("browser list fetch: %w", err)
	}

	state, ok := fetch.StateFromJSON(stateJSON)
	if !ok {
		return nil, fetch.StatusError, fmt.Errorf("browser list fetch: page state missing")
	}

	rows := fetch.ListFromState(state, p.Region)
	if len(rows) == 0 {
		return nil, fetch.StatusError, fmt.Errorf("browser list fetch: no rows in page state")
	}
	if p.MaxItems > 0 && len(rows) > p.MaxItems {
		rows = rows[:p.MaxItems]
	}
	return rows, fetch.StatusSuccess, nil
}

// Close shuts the browser down.
func (l *List) Close() error {
	return l.session.Close()
}
