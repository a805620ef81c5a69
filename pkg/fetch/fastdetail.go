package fetch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

const detailBaseURL = "https://rent.591.com.tw/"

// DetailURL builds the detail page URL for a listing id.
func DetailURL(id int64) string {
	return detailBaseURL + strconv.FormatInt(id, 10)
}

// FastDetail is the lightweight detail tier: plain HTTP plus extraction of
// the embedded page state, with a DOM fallback for server-rendered fields.
type FastDetail struct {
	client *HTTPClient
	log    Logger
}

// NewFastDetail builds the fast detail tier.
func NewFastDetail(timeout time.Duration, log Logger) *FastDetail {
	return &FastDetail{client: NewHTTPClient(timeout), log: orNop(log)}
}

// FetchDetail fetches and parses one detail page. A 404 or a redirect away
// from the listing both mean the listing is gone, not that the fetch failed.
func (f *FastDetail) FetchDetail(ctx context.Context, id int64) (*listing.DetailRaw, Status, error) {
	idStr := strconv.FormatInt(id, 10)
	page, err := f.client.GetPage(ctx, DetailURL(id))
	if err != nil {
		return nil, StatusError, err
	}
	if page.StatusCode == 404 {
		return nil, StatusNotFound, nil
	}
	if page.StatusCode >= 400 {
		return nil, StatusError, fmt.Errorf("detail page %d returned HTTP %d", id, page.StatusCode)
	}
	if page.FinalURL != "" && !strings.Contains(page.FinalURL, "/"+idStr) {
		// Removed listings redirect back to the list page.
		return nil, StatusNotFound, nil
	}

	if state, ok := StateFromHTML(page.Body); ok {
		if raw := DetailFromState(state, id); raw != nil {
			return raw, StatusSuccess, nil
		}
	}

	// No state blob: fall back to whatever was server-rendered.
	if raw := f.parseDOM(page.Body, id); raw != nil {
		return raw, StatusSuccess, nil
	}

	return nil, StatusError, nil
}

func (f *FastDetail) parseDOM(body string, id int64) *listing.DetailRaw {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		f.log.Warnf("detail page HTML parse failed for %d: %v", id, err)
		return nil
	}

	raw := &listing.DetailRaw{
		ID:         id,
		Title:      strings.TrimSpace(doc.Find("h1").First().Text()),
		PriceRaw:   strings.TrimSpace(doc.Find("span.c-price").First().Text()),
		AddressRaw: strings.TrimSpace(doc.Find("div.address span.load-map").First().Text()),
	}

	doc.Find("span.label-item").Each(func(_ int, tag *goquery.Selection) {
		if text := strings.TrimSpace(tag.Text()); text != "" {
			raw.Tags = append(raw.Tags, text)
		}
	})

	doc.Find("dl:not(.del) dd.text").Each(func(_ int, dd *goquery.Selection) {
		if text := strings.TrimSpace(dd.Text()); text != "" {
			raw.Options = append(raw.Options, text)
		}
	})

	if raw.Title == "" && len(raw.Tags) == 0 {
		return nil
	}
	return raw
}
