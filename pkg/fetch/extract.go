package fetch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

// The upstream site renders both page types from a client-side state object
// (window.__NUXT__). The fast tier pulls it out of the raw HTML; the browser
// tier evaluates it directly. Both feed the same extraction below.

var nuxtStateRe = regexp.MustCompile(`window\.__NUXT__\s*=\s*`)

// StateFromHTML extracts the embedded page-state JSON from raw HTML.
func StateFromHTML(html string) (gjson.Result, bool) {
	m := nuxtStateRe.FindStringIndex(html)
	if m == nil {
		return gjson.Result{}, false
	}
	obj := extractJSONObject(html[m[1]:])
	if obj == "" {
		return gjson.Result{}, false
	}
	state := gjson.Parse(obj)
	data := state.Get("data")
	if !data.Exists() {
		return state, true
	}
	return data, true
}

// StateFromJSON wraps a JSON string (from a browser evaluate call) for the
// extractors.
func StateFromJSON(raw string) (gjson.Result, bool) {
	if strings.TrimSpace(raw) == "" || raw == "null" {
		return gjson.Result{}, false
	}
	return gjson.Parse(raw), true
}

// ListFromState pulls list rows out of a page state. The items array lives
// at a page-dependent depth, so it is located by recursive search.
func ListFromState(state gjson.Result, region int) []listing.ListRaw {
	items, ok := findItemsArray(state)
	if !ok {
		return nil
	}

	var rows []listing.ListRaw
	items.ForEach(func(_, item gjson.Result) bool {
		row := listRowFromItem(item, region)
		if row.ID != "" {
			rows = append(rows, row)
		}
		return true
	})
	return rows
}

// DetailFromState pulls a single listing's raw detail out of a page state.
// Returns nil when the state carries no detail payload.
func DetailFromState(state gjson.Result, id int64) *listing.DetailRaw {
	payload, ok := findDetailPayload(state)
	if !ok {
		return nil
	}

	raw := &listing.DetailRaw{
		ID:         id,
		Title:      payload.Get("title").String(),
		AddressRaw: payload.Get("address").String(),
	}

	if price := payload.Get("price"); price.Exists() {
		raw.PriceRaw = fmt.Sprintf("%s元/月", price.String())
	}

	payload.Get("tags").ForEach(func(_, tag gjson.Result) bool {
		if v := tag.Get("value").String(); v != "" {
			raw.Tags = append(raw.Tags, v)
		}
		return true
	})

	// Breadcrumb carries the region/section/kind codes.
	payload.Get("breadcrumb").ForEach(func(_, crumb gjson.Result) bool {
		id := crumb.Get("id")
		if !id.Exists() {
			return true
		}
		switch crumb.Get("query").String() {
		case "region":
			raw.Region = id.String()
		case "section":
			raw.Section = id.String()
		case "kind":
			raw.Kind = id.String()
		}
		return true
	})

	payload.Get("info").ForEach(func(_, item gjson.Result) bool {
		value := item.Get("value")
		if !value.Exists() || value.String() == "" {
			return true
		}
		switch item.Get("key").String() {
		case "floor":
			raw.FloorRaw = value.String()
		case "layout":
			raw.LayoutRaw = value.String()
		case "shape":
			raw.ShapeRaw = value.String()
		case "fitment":
			raw.FitmentRaw = value.String()
		case "area":
			raw.AreaRaw = areaString(value)
		}
		return true
	})

	if raw.AreaRaw == "" {
		if area := payload.Get("area"); area.Exists() {
			raw.AreaRaw = areaString(area)
		}
	}
	if raw.FloorRaw == "" {
		raw.FloorRaw = firstString(payload, "floor_name", "floorName")
	}
	if raw.LayoutRaw == "" {
		raw.LayoutRaw = firstString(payload, "layoutStr", "layout_str")
	}

	// The service block carries the rental rules and equipment.
	if service := payload.Get("service"); service.Exists() {
		rule := service.Get("rule").String()
		if strings.Contains(rule, "限男") {
			raw.GenderRaw = "限男"
		} else if strings.Contains(rule, "限女") {
			raw.GenderRaw = "限女"
		}

		service.Get("facility").ForEach(func(_, f gjson.Result) bool {
			if f.Get("active").Int() == 1 {
				if name := f.Get("name").String(); name != "" {
					raw.Options = append(raw.Options, name)
				}
			}
			return true
		})
	}

	extractSurrounding(payload, raw)

	return raw
}

func listRowFromItem(item gjson.Result, region int) listing.ListRaw {
	row := listing.ListRaw{Region: region}

	id := item.Get("id")
	if !id.Exists() {
		id = item.Get("post_id")
	}
	if id.Exists() {
		row.ID = id.String()
		row.URL = "https://rent.591.com.tw/" + id.String()
	}

	row.Title = item.Get("title").String()
	if price := item.Get("price"); price.Exists() {
		row.PriceRaw = fmt.Sprintf("%s元/月", price.String())
	}

	item.Get("tags").ForEach(func(_, tag gjson.Result) bool {
		if tag.IsObject() {
			if v := tag.Get("value").String(); v != "" {
				row.Tags = append(row.Tags, v)
			}
		} else if v := tag.String(); v != "" {
			row.Tags = append(row.Tags, v)
		}
		return true
	})

	row.KindName = firstString(item, "kind_name", "kindName")
	if area := item.Get("area"); area.Exists() {
		row.AreaRaw = areaString(area)
	}
	row.FloorRaw = firstString(item, "floor_name", "floorName")
	row.AddressRaw = firstString(item, "address", "section_str")

	return row
}

// findItemsArray walks the state looking for an object holding an "items"
// array (the list page result set).
func findItemsArray(node gjson.Result) (gjson.Result, bool) {
	if !node.IsObject() {
		return gjson.Result{}, false
	}
	var found gjson.Result
	var ok bool
	node.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		if items := value.Get("items"); items.IsArray() {
			found, ok = items, true
			return false
		}
		if sub, subOK := findItemsArray(value); subOK {
			found, ok = sub, true
			return false
		}
		return true
	})
	return found, ok
}

// findDetailPayload locates the detail payload: the state member whose
// "data" object carries a "service" block.
func findDetailPayload(node gjson.Result) (gjson.Result, bool) {
	if !node.IsObject() {
		return gjson.Result{}, false
	}
	// The state may already be the payload itself.
	if node.Get("service").Exists() {
		return node, true
	}
	var found gjson.Result
	var ok bool
	node.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		if data := value.Get("data"); data.IsObject() && data.Get("service").Exists() {
			found, ok = data, true
			return false
		}
		return true
	})
	return found, ok
}

func extractSurrounding(payload gjson.Result, raw *listing.DetailRaw) {
	traffic := payload.Get("traffic")
	if !traffic.Exists() {
		traffic = payload.Get("surround")
	}
	if !traffic.Exists() {
		return
	}

	setFrom := func(kind string, entry gjson.Result) bool {
		name := entry.Get("name").String()
		distance := entry.Get("distance").String()
		if name == "" || distance == "" {
			return false
		}
		raw.SurroundingType = kind
		raw.SurroundingRaw = fmt.Sprintf("距%s%s公尺", name, distance)
		return true
	}

	if traffic.IsObject() {
		for _, key := range []string{"metro", "subway"} {
			if arr := traffic.Get(key); arr.IsArray() && len(arr.Array()) > 0 {
				if setFrom("metro", arr.Array()[0]) {
					return
				}
			}
		}
		if arr := traffic.Get("bus"); arr.IsArray() && len(arr.Array()) > 0 {
			setFrom("bus", arr.Array()[0])
		}
		return
	}

	if traffic.IsArray() && len(traffic.Array()) > 0 {
		entry := traffic.Array()[0]
		kind := "bus"
		t := strings.ToLower(entry.Get("type").String())
		if strings.Contains(t, "metro") || strings.Contains(t, "subway") {
			kind = "metro"
		}
		setFrom(kind, entry)
	}
}

func firstString(node gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := node.Get(key).String(); v != "" {
			return v
		}
	}
	return ""
}

func areaString(v gjson.Result) string {
	s := v.String()
	if s == "" {
		return ""
	}
	if strings.Contains(s, "坪") {
		return s
	}
	return s + "坪"
}

// extractJSONObject extracts a JSON object starting at position 0 of the
// input string. It handles nested braces and strings and returns the
// complete object including braces.
func extractJSONObject(s string) string {
	if len(s) == 0 || s[0] != '{' {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i, c := range s {
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if c == '{' {
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}

	return ""
}
