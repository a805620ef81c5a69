package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

const listBaseURL = "https://rent.591.com.tw/list"

// Kind names recognized on list-page info rows.
var kindNames = map[string]bool{
	"整層住家": true,
	"獨立套房": true,
	"分租套房": true,
	"雅房":   true,
	"車位":   true,
	"其他":   true,
}

// FastList is the lightweight list tier: plain HTTP plus HTML parsing. The
// upstream list page is client-side rendered, so this tier frequently comes
// back empty and the fallback escalates to the browser tier.
type FastList struct {
	client *HTTPClient
	log    Logger
}

// NewFastList builds the fast list tier.
func NewFastList(timeout time.Duration, log Logger) *FastList {
	return &FastList{client: NewHTTPClient(timeout), log: orNop(log)}
}

// FetchList fetches and parses one list page.
func (f *FastList) FetchList(ctx context.Context, p ListParams) ([]listing.ListRaw, Status, error) {
	page, err := f.client.GetPage(ctx, ListURL(p))
	if err != nil {
		return nil, StatusError, err
	}
	if page.StatusCode == 404 {
		return nil, StatusNotFound, nil
	}
	if page.StatusCode != 200 {
		return nil, StatusError, fmt.Errorf("list page returned HTTP %d", page.StatusCode)
	}

	rows := f.parseDOM(page.Body, p.Region)

	// Rendered markup absent: the state blob may still be embedded.
	if len(rows) == 0 {
		if state, ok := StateFromHTML(page.Body); ok {
			rows = ListFromState(state, p.Region)
		}
	}

	if p.MaxItems > 0 && len(rows) > p.MaxItems {
		rows = rows[:p.MaxItems]
	}
	if len(rows) == 0 {
		return nil, StatusError, nil
	}
	return rows, StatusSuccess, nil
}

func (f *FastList) parseDOM(body string, region int) []listing.ListRaw {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		f.log.Warnf("list page HTML parse failed: %v", err)
		return nil
	}

	var rows []listing.ListRaw
	doc.Find("div.item").Each(func(_ int, item *goquery.Selection) {
		row := listing.ListRaw{Region: region}

		if id, ok := item.Attr("data-id"); ok {
			row.ID = id
		}
		if row.ID == "" {
			return
		}

		if link := item.Find(`a[href*="rent.591.com.tw/"]`).First(); link.Length() > 0 {
			row.URL, _ = link.Attr("href")
		}
		row.Title = strings.TrimSpace(item.Find(".item-info-title a").First().Text())
		row.PriceRaw = strings.TrimSpace(item.Find(".item-info-price").First().Text())

		item.Find(".item-tags span, .item-info-tag span").Each(func(_ int, tag *goquery.Selection) {
			if text := strings.TrimSpace(tag.Text()); text != "" {
				row.Tags = append(row.Tags, text)
			}
		})

		item.Find(".item-info-txt").Each(func(_ int, txt *goquery.Selection) {
			switch {
			case txt.Find(".house-home").Length() > 0:
				txt.Find("span").Each(func(_ int, span *goquery.Selection) {
					text := strings.TrimSpace(span.Text())
					switch {
					case text == "":
					case kindNames[text]:
						row.KindName = text
					case strings.Contains(text, "坪"):
						row.AreaRaw = text
					case strings.Contains(text, "F") || strings.Contains(text, "層"):
						row.FloorRaw = text
					}
				})
			case txt.Find(".house-place").Length() > 0:
				row.AddressRaw = strings.TrimSpace(txt.Text())
			}
		})

		rows = append(rows, row)
	})
	return rows
}

// ListURL builds the list page URL for the given filter parameters.
func ListURL(p ListParams) string {
	q := url.Values{}
	q.Set("region", strconv.Itoa(p.Region))
	if p.Section > 0 {
		q.Set("section", strconv.Itoa(p.Section))
	}
	sort := p.Sort
	if sort == "" {
		sort = "posttime_desc"
	}
	q.Set("sort", sort)
	return listBaseURL + "?" + q.Encode()
}
