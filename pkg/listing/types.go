package listing

// ListRaw is one row scraped from a list page. Values are kept as-is from
// the page, no parsing applied yet.
type ListRaw struct {
	Region     int
	ID         string
	URL        string
	Title      string
	PriceRaw   string
	Tags       []string
	KindName   string
	LayoutRaw  string
	AreaRaw    string
	FloorRaw   string
	AddressRaw string
}

// DetailRaw is the field set scraped from a single detail page. Region,
// section and kind come from the breadcrumb and are still string codes here.
type DetailRaw struct {
	ID              int64
	Title           string
	PriceRaw        string
	Tags            []string
	AddressRaw      string
	Region          string
	Section         string
	Kind            string
	FloorRaw        string
	LayoutRaw       string
	AreaRaw         string
	GenderRaw       string
	ShapeRaw        string
	FitmentRaw      string
	Options         []string
	SurroundingType string
	SurroundingRaw  string
}

// CombinedRaw merges ListRaw and DetailRaw by field priority. See Combine
// for the priority rules.
type CombinedRaw struct {
	ID              string
	URL             string
	Title           string
	PriceRaw        string
	Tags            []string
	KindName        string
	AddressRaw      string
	Region          string
	Section         string
	Kind            string
	FloorRaw        string
	LayoutRaw       string
	AreaRaw         string
	GenderRaw       string
	ShapeRaw        string
	FitmentRaw      string
	Options         []string
	SurroundingType string
	SurroundingRaw  string
	HasDetail       bool
}

// Listing is the fully typed, storage-ready record. Pointer fields are
// attributes the upstream page may simply not carry; nil means unknown, and
// unknown is distinct from zero.
type Listing struct {
	ID                  int64    `json:"id"`
	URL                 string   `json:"url"`
	Title               string   `json:"title"`
	Price               *int     `json:"price"`
	PriceUnit           string   `json:"price_unit"`
	Region              int      `json:"region"`
	Section             int      `json:"section"`
	Kind                int      `json:"kind"`
	KindName            string   `json:"kind_name"`
	Address             string   `json:"address"`
	Floor               *int     `json:"floor"`
	FloorStr            string   `json:"floor_str"`
	TotalFloor          *int     `json:"total_floor"`
	IsRooftop           bool     `json:"is_rooftop"`
	Layout              *int     `json:"layout"`
	LayoutStr           string   `json:"layout_str"`
	Bathroom            *int     `json:"bathroom"`
	Area                *float64 `json:"area"`
	Shape               *int     `json:"shape"`
	Fitment             *int     `json:"fitment"`
	Gender              string   `json:"gender"`
	PetAllowed          *bool    `json:"pet_allowed"`
	Options             []string `json:"options"`
	Other               []string `json:"other"`
	Tags                []string `json:"tags"`
	SurroundingType     string   `json:"surrounding_type"`
	SurroundingDesc     string   `json:"surrounding_desc"`
	SurroundingDistance *int     `json:"surrounding_distance"`
	HasDetail           bool     `json:"has_detail"`
}

// EquipmentCodes returns the union of the listing's detail-page option codes
// and the codes derived from its list-page tags, lowercased and deduplicated.
func (l *Listing) EquipmentCodes() map[string]bool {
	codes := make(map[string]bool, len(l.Options)+len(l.Tags))
	for _, c := range l.Options {
		codes[lower(c)] = true
	}
	for _, c := range OptionsToCodes(l.Tags) {
		codes[lower(c)] = true
	}
	return codes
}
