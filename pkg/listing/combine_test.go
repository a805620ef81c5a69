package listing

import (
	"reflect"
	"testing"
)

func TestCombineFieldPriority(t *testing.T) {
	list := ListRaw{
		Region:     1,
		ID:         "777",
		URL:        "https://rent.591.com.tw/777",
		Title:      "list title",
		PriceRaw:   "9,000元/月",
		Tags:       []string{"近捷運"},
		KindName:   "獨立套房",
		FloorRaw:   "2F/4F",
		AddressRaw: "list address",
	}
	detail := DetailRaw{
		ID:       777,
		Title:    "detail title",
		PriceRaw: "9,500元/月",
		Tags:     []string{"近捷運", "可養寵物"},
		Region:   "1",
		Section:  "7",
		Kind:     "2",
		FloorRaw: "3F/4F",
		Options:  []string{"冷氣"},
	}

	c := Combine(list, detail)

	// List-priority fields.
	if c.ID != "777" || c.URL != list.URL || c.KindName != "獨立套房" {
		t.Fatalf("list-priority fields wrong: %+v", c)
	}
	// Detail wins when present.
	if c.Title != "detail title" || c.PriceRaw != "9,500元/月" || c.FloorRaw != "3F/4F" {
		t.Fatalf("detail-priority fields wrong: %+v", c)
	}
	// Detail falls back to list when absent.
	if c.AddressRaw != "list address" {
		t.Fatalf("want list address fallback, got %q", c.AddressRaw)
	}
	// Tags are unioned and deduplicated.
	if !reflect.DeepEqual(c.Tags, []string{"近捷運", "可養寵物"}) {
		t.Fatalf("unexpected tag union %#v", c.Tags)
	}
	if !reflect.DeepEqual(c.Options, []string{"冷氣"}) {
		t.Fatalf("options are detail-only, got %#v", c.Options)
	}
	if !c.HasDetail {
		t.Fatal("combined record must claim detail data")
	}
}

func TestCombineRegionFallback(t *testing.T) {
	c := Combine(ListRaw{Region: 3, ID: "1"}, DetailRaw{ID: 1})
	if c.Region != "3" {
		t.Fatalf("want list region fallback 3, got %q", c.Region)
	}

	c = Combine(ListRaw{Region: 3, ID: "1"}, DetailRaw{ID: 1, Region: "1"})
	if c.Region != "1" {
		t.Fatalf("detail breadcrumb region should win, got %q", c.Region)
	}
}

func TestCombineListOnly(t *testing.T) {
	c := CombineListOnly(ListRaw{
		Region:   1,
		ID:       "888",
		Title:    "t",
		PriceRaw: "8,000元/月",
		Tags:     []string{"近捷運", "近捷運"},
	})
	if c.HasDetail {
		t.Fatal("list-only combine must not claim detail data")
	}
	if c.Region != "1" {
		t.Fatalf("want region 1, got %q", c.Region)
	}
	if len(c.Options) != 0 || c.GenderRaw != "" || c.ShapeRaw != "" {
		t.Fatalf("enrichment fields must stay empty: %+v", c)
	}
	if !reflect.DeepEqual(c.Tags, []string{"近捷運"}) {
		t.Fatalf("tags should be deduplicated, got %#v", c.Tags)
	}
}
