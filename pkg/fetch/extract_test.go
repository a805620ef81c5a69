package fetch

import (
	"testing"
)

const listPageHTML = `<!DOCTYPE html>
<html><head><title>租屋列表</title></head>
<body>
<script>window.__NUXT__={"data":{"list-page":{"items":[
  {"id":18000001,"title":"松山區精緻套房","price":"15,000","kind_name":"獨立套房",
   "area":8.5,"floor_name":"3F/5F","address":"松山區","tags":["近捷運","可開伙"]},
  {"post_id":"18000002","title":"信義區雅房","price":"9,000","kindName":"雅房",
   "tags":[{"value":"限女"}]}
]}}};</script>
</body></html>`

func TestStateFromHTMLAndList(t *testing.T) {
	state, ok := StateFromHTML(listPageHTML)
	if !ok {
		t.Fatal("state script not found")
	}

	rows := ListFromState(state, 1)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.ID != "18000001" {
		t.Fatalf("id = %q", first.ID)
	}
	if first.URL != "https://rent.591.com.tw/18000001" {
		t.Fatalf("url = %q", first.URL)
	}
	if first.PriceRaw != "15,000元/月" {
		t.Fatalf("price = %q", first.PriceRaw)
	}
	if first.KindName != "獨立套房" || first.FloorRaw != "3F/5F" {
		t.Fatalf("row fields: %+v", first)
	}
	if first.AreaRaw != "8.5坪" {
		t.Fatalf("area = %q", first.AreaRaw)
	}
	if len(first.Tags) != 2 || first.Tags[0] != "近捷運" {
		t.Fatalf("tags = %v", first.Tags)
	}

	// post_id and camelCase variants parse the same way.
	second := rows[1]
	if second.ID != "18000002" || second.KindName != "雅房" {
		t.Fatalf("second row: %+v", second)
	}
	if len(second.Tags) != 1 || second.Tags[0] != "限女" {
		t.Fatalf("object-shaped tags = %v", second.Tags)
	}
}

func TestStateFromHTMLMissing(t *testing.T) {
	if _, ok := StateFromHTML("<html><body>no state here</body></html>"); ok {
		t.Fatal("expected no state in plain HTML")
	}
	if _, ok := StateFromHTML("window.__NUXT__= not-json"); ok {
		t.Fatal("expected no state for malformed payload")
	}
}

const detailStateJSON = `{
  "detail-page": {
    "data": {
      "title": "松山區精緻套房",
      "price": "15,000",
      "address": "台北市松山區南京東路100號",
      "area": "8.5",
      "tags": [{"value": "可養寵"}, {"value": "有陽台"}],
      "breadcrumb": [
        {"query": "region", "id": 1, "name": "台北市"},
        {"query": "section", "id": 5, "name": "松山區"},
        {"query": "kind", "id": 2, "name": "獨立套房"}
      ],
      "info": [
        {"key": "floor", "value": "3F/5F"},
        {"key": "layout", "value": "1房1衛"},
        {"key": "shape", "value": "電梯大樓"},
        {"key": "fitment", "value": "新裝潢"}
      ],
      "service": {
        "rule": "限女生租住",
        "facility": [
          {"name": "冷氣", "active": 1},
          {"name": "洗衣機", "active": 1},
          {"name": "電視", "active": 0}
        ]
      },
      "traffic": {
        "metro": [{"name": "南京復興站", "distance": "350"}]
      }
    }
  }
}`

func TestDetailFromState(t *testing.T) {
	state, ok := StateFromJSON(detailStateJSON)
	if !ok {
		t.Fatal("StateFromJSON rejected valid JSON")
	}

	raw := DetailFromState(state, 18000001)
	if raw == nil {
		t.Fatal("no detail payload found")
	}
	if raw.ID != 18000001 || raw.Title != "松山區精緻套房" {
		t.Fatalf("header fields: %+v", raw)
	}
	if raw.PriceRaw != "15,000元/月" {
		t.Fatalf("price = %q", raw.PriceRaw)
	}
	if raw.Region != "1" || raw.Section != "5" || raw.Kind != "2" {
		t.Fatalf("breadcrumb codes: region=%q section=%q kind=%q", raw.Region, raw.Section, raw.Kind)
	}
	if raw.FloorRaw != "3F/5F" || raw.LayoutRaw != "1房1衛" {
		t.Fatalf("info fields: %+v", raw)
	}
	if raw.ShapeRaw != "電梯大樓" || raw.FitmentRaw != "新裝潢" {
		t.Fatalf("info fields: %+v", raw)
	}
	if raw.AreaRaw != "8.5坪" {
		t.Fatalf("area = %q", raw.AreaRaw)
	}
	if raw.GenderRaw != "限女" {
		t.Fatalf("gender = %q", raw.GenderRaw)
	}
	if len(raw.Options) != 2 || raw.Options[0] != "冷氣" || raw.Options[1] != "洗衣機" {
		t.Fatalf("active facilities only: %v", raw.Options)
	}
	if len(raw.Tags) != 2 || raw.Tags[0] != "可養寵" {
		t.Fatalf("tags = %v", raw.Tags)
	}
	if raw.SurroundingType != "metro" || raw.SurroundingRaw != "距南京復興站350公尺" {
		t.Fatalf("surrounding: type=%q raw=%q", raw.SurroundingType, raw.SurroundingRaw)
	}
}

func TestDetailFromStateNoPayload(t *testing.T) {
	state, _ := StateFromJSON(`{"other-page": {"data": {"items": []}}}`)
	if raw := DetailFromState(state, 1); raw != nil {
		t.Fatalf("expected nil for a state without a service block, got %+v", raw)
	}
}

func TestStateFromJSONEmpty(t *testing.T) {
	if _, ok := StateFromJSON(""); ok {
		t.Fatal("empty string should not parse")
	}
	if _, ok := StateFromJSON("null"); ok {
		t.Fatal("null should not parse")
	}
}

func TestExtractJSONObjectNestedAndStrings(t *testing.T) {
	in := `{"a": {"b": "brace } inside", "c": [1, 2]}, "d": "\" escaped"} trailing`
	want := `{"a": {"b": "brace } inside", "c": [1, 2]}, "d": "\" escaped"}`
	if got := extractJSONObject(in); got != want {
		t.Fatalf("extractJSONObject = %q, want %q", got, want)
	}
	if got := extractJSONObject("not an object"); got != "" {
		t.Fatalf("non-object input should return empty, got %q", got)
	}
	if got := extractJSONObject(`{"unterminated": true`); got != "" {
		t.Fatalf("unterminated object should return empty, got %q", got)
	}
}
