package listing

// Combine merges raw data from a list row and its detail page.
//
// Priority rules:
//   - id, url, kind_name: from list
//   - title, price, address, floor, area, layout: detail wins when present
//   - tags: union of both, deduplicated
//   - region, section, kind: from detail (breadcrumb), list fallback for region
//   - gender, shape, fitment, options, surrounding: detail only
func Combine(list ListRaw, detail DetailRaw) CombinedRaw {
	return CombinedRaw{
		ID:       list.ID,
		URL:      list.URL,
		KindName: list.KindName,

		Title:      firstNonEmpty(detail.Title, list.Title),
		PriceRaw:   firstNonEmpty(detail.PriceRaw, list.PriceRaw),
		AddressRaw: firstNonEmpty(detail.AddressRaw, list.AddressRaw),
		FloorRaw:   firstNonEmpty(detail.FloorRaw, list.FloorRaw),
		AreaRaw:    firstNonEmpty(detail.AreaRaw, list.AreaRaw),
		LayoutRaw:  firstNonEmpty(detail.LayoutRaw, list.LayoutRaw),

		Tags: mergeTags(list.Tags, detail.Tags),

		Region:  firstNonEmpty(detail.Region, itoa(list.Region)),
		Section: detail.Section,
		Kind:    detail.Kind,

		GenderRaw:       detail.GenderRaw,
		ShapeRaw:        detail.ShapeRaw,
		FitmentRaw:      detail.FitmentRaw,
		Options:         detail.Options,
		SurroundingType: detail.SurroundingType,
		SurroundingRaw:  detail.SurroundingRaw,

		HasDetail: true,
	}
}

// CombineListOnly builds a minimal CombinedRaw when the detail fetch failed
// entirely. Enrichment fields stay empty rather than guessed; HasDetail is
// false so a later pass can upgrade the record in place.
func CombineListOnly(list ListRaw) CombinedRaw {
	return CombinedRaw{
		ID:         list.ID,
		URL:        list.URL,
		KindName:   list.KindName,
		Title:      list.Title,
		PriceRaw:   list.PriceRaw,
		AddressRaw: list.AddressRaw,
		FloorRaw:   list.FloorRaw,
		AreaRaw:    list.AreaRaw,
		LayoutRaw:  list.LayoutRaw,
		Tags:       mergeTags(list.Tags, nil),
		Region:     itoa(list.Region),
		HasDetail:  false,
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func mergeTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, tags := range [][]string{a, b} {
		for _, t := range tags {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
