package listing

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe      = regexp.MustCompile(`^(\d+)`)
	priceUnitRe  = regexp.MustCompile(`\d+(.+)`)
	totalFloorRe = regexp.MustCompile(`(?i)/(\d+)F`)
	basementRe   = regexp.MustCompile(`(?i)^B(\d+)`)
	floorRe      = regexp.MustCompile(`(?i)^(\d+)F`)
	roomRe       = regexp.MustCompile(`(\d+)房`)
	bathRe       = regexp.MustCompile(`(\d+)衛`)
	areaRe       = regexp.MustCompile(`([\d.]+)`)
	surroundRe   = regexp.MustCompile(`距(.+?)(\d+)公尺`)
)

func itoa(n int) string { return strconv.Itoa(n) }

// ParsePrice extracts the numeric rent and its unit from a raw price string
// like "8,499元/月". A negotiable marker or missing digits yields nil.
func ParsePrice(raw string) (*int, string) {
	if raw == "" {
		return nil, ""
	}
	cleaned := strings.ReplaceAll(strings.ReplaceAll(raw, ",", ""), " ", "")
	m := priceRe.FindStringSubmatch(cleaned)
	if m == nil {
		return nil, ""
	}
	price, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, ""
	}
	unit := "元/月"
	if um := priceUnitRe.FindStringSubmatch(cleaned); um != nil && um[1] != "" {
		unit = um[1]
	}
	return &price, unit
}

// ParseFloor splits a raw floor string into (floor, total floors, rooftop
// flag). Rooftop additions are floor 0 with the flag set; basements are
// negative.
//
//	"3F/5F"     -> (3, 5, false)
//	"頂樓加蓋/5F" -> (0, 5, true)
//	"B1/10F"    -> (-1, 10, false)
func ParseFloor(raw string) (*int, *int, bool) {
	if raw == "" {
		return nil, nil, false
	}

	isRooftop := strings.Contains(raw, "頂") && strings.Contains(raw, "加")

	var totalFloor *int
	if m := totalFloorRe.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			totalFloor = &n
		}
	}

	var floor *int
	switch {
	case isRooftop:
		zero := 0
		floor = &zero
	case basementRe.MatchString(raw):
		m := basementRe.FindStringSubmatch(raw)
		if n, err := strconv.Atoi(m[1]); err == nil {
			neg := -n
			floor = &neg
		}
	default:
		if m := floorRe.FindStringSubmatch(raw); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				floor = &n
			}
		}
	}

	return floor, totalFloor, isRooftop
}

// ParseLayout extracts the room and bathroom counts from a layout string
// like "3房2廳1衛". Open layouts ("開放格局") have neither.
func ParseLayout(raw string) (rooms, bathrooms *int) {
	if raw == "" {
		return nil, nil
	}
	if m := roomRe.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rooms = &n
		}
	}
	if m := bathRe.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			bathrooms = &n
		}
	}
	return rooms, bathrooms
}

// ParseArea extracts the numeric area from a string like "10.5 坪".
func ParseArea(raw string) *float64 {
	if raw == "" {
		return nil
	}
	m := areaRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseAddress strips separator noise from a raw address.
func ParseAddress(raw string) string {
	return strings.ReplaceAll(strings.ReplaceAll(raw, "-", ""), " ", "")
}

// ParseGender maps a gender-restriction string to "boy", "girl" or "all".
func ParseGender(raw string) string {
	switch {
	case strings.Contains(raw, "限男"):
		return "boy"
	case strings.Contains(raw, "限女"):
		return "girl"
	default:
		return "all"
	}
}

// ParsePetAllowed derives the pet policy from tags. nil means the listing
// does not state one.
func ParsePetAllowed(tags []string) *bool {
	for _, tag := range tags {
		if strings.Contains(tag, "可養寵") {
			t := true
			return &t
		}
		if strings.Contains(tag, "不可養") || strings.Contains(tag, "禁養") {
			f := false
			return &f
		}
	}
	return nil
}

// ParseSurrounding splits a transit string like "距信義安和站353公尺" into
// the station name and distance in meters.
func ParseSurrounding(raw string) (string, *int) {
	m := surroundRe.FindStringSubmatch(raw)
	if m == nil {
		return "", nil
	}
	dist, err := strconv.Atoi(m[2])
	if err != nil {
		return m[1], nil
	}
	return m[1], &dist
}

// IsRooftopFloor reports whether a raw floor string denotes a rooftop
// addition, without parsing the rest of it.
func IsRooftopFloor(raw string) bool {
	return strings.Contains(raw, "頂") && strings.Contains(raw, "加")
}

// Transform normalizes combined raw data into a storage-ready Listing.
func Transform(c CombinedRaw) Listing {
	id, _ := strconv.ParseInt(c.ID, 10, 64)
	price, priceUnit := ParsePrice(c.PriceRaw)
	floor, totalFloor, isRooftop := ParseFloor(c.FloorRaw)
	rooms, bathrooms := ParseLayout(c.LayoutRaw)
	area := ParseArea(c.AreaRaw)

	l := Listing{
		ID:              id,
		URL:             c.URL,
		Title:           c.Title,
		Price:           price,
		PriceUnit:       priceUnit,
		Region:          atoiOrZero(c.Region),
		Section:         atoiOrZero(c.Section),
		Kind:            atoiOrZero(c.Kind),
		KindName:        c.KindName,
		Address:         ParseAddress(c.AddressRaw),
		Floor:           floor,
		FloorStr:        c.FloorRaw,
		TotalFloor:      totalFloor,
		IsRooftop:       isRooftop,
		Layout:          rooms,
		LayoutStr:       c.LayoutRaw,
		Bathroom:        bathrooms,
		Area:            area,
		Gender:          ParseGender(c.GenderRaw),
		PetAllowed:      ParsePetAllowed(c.Tags),
		Options:         OptionsToCodes(c.Options),
		Other:           OtherToCodes(c.Tags),
		Tags:            c.Tags,
		SurroundingType: c.SurroundingType,
		HasDetail:       c.HasDetail,
	}

	if code, ok := ShapeCode(c.ShapeRaw); ok {
		l.Shape = &code
	}
	if code, ok := FitmentCode(c.FitmentRaw); ok {
		l.Fitment = &code
	}
	// List pages carry the kind as a name only.
	if l.Kind == 0 && c.KindName != "" {
		if code, ok := KindCode(c.KindName); ok {
			l.Kind = code
		}
	}

	desc, dist := ParseSurrounding(c.SurroundingRaw)
	l.SurroundingDesc = desc
	l.SurroundingDistance = dist

	return l
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
