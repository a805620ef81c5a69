// Package match evaluates normalized listings against subscription filters.
// Matching is a pure in-memory conjunction; no store round-trips happen here.
package match

import (
	"strings"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

// Subscription is a user-owned filter set over listing fields. Slice fields
// are allowed-value sets; nil/empty means "no restriction". Pointer bounds
// are open when nil. JSON tags match the cache mirror format.
type Subscription struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Region int    `json:"region"`

	Section  []int `json:"section"`
	Kind     []int `json:"kind"`
	Shape    []int `json:"shape"`
	Fitment  []int `json:"fitment"`
	Layout   []int `json:"layout"`
	Bathroom []int `json:"bathroom"`

	PriceMin *int     `json:"price_min"`
	PriceMax *int     `json:"price_max"`
	AreaMin  *float64 `json:"area_min"`
	AreaMax  *float64 `json:"area_max"`
	FloorMin *int     `json:"floor_min"`
	FloorMax *int     `json:"floor_max"`

	ExcludeRooftop bool   `json:"exclude_rooftop"`
	Gender         string `json:"gender"` // "", "boy" or "girl"
	PetRequired    bool   `json:"pet_required"`

	Other   []string `json:"other"`
	Options []string `json:"options"`

	Enabled bool   `json:"enabled"`
	Target  string `json:"target"` // notification destination
}

// The top bucket of layout and bathroom filters means "this value or more".
const topBucket = 4

// Matches reports whether a listing satisfies every populated criterion of
// the subscription. Cheap numeric checks run first; string-set subset checks
// last. Unknown numeric attributes pass range filters, unknown categorical
// attributes fail set filters.
func Matches(l *listing.Listing, s *Subscription) bool {
	// Range fields: open bounds, unknown passes.
	if !inIntRange(l.Price, s.PriceMin, s.PriceMax) {
		return false
	}
	if !inFloatRange(l.Area, s.AreaMin, s.AreaMax) {
		return false
	}
	if !inIntRange(l.Floor, s.FloorMin, s.FloorMax) {
		return false
	}

	// Boolean fields.
	if s.ExcludeRooftop && l.IsRooftop {
		return false
	}
	if s.PetRequired && (l.PetAllowed == nil || !*l.PetAllowed) {
		return false
	}

	// Gender compatibility: a restricted subscriber accepts that gender or
	// unrestricted listings.
	if s.Gender == "boy" && l.Gender != "boy" && l.Gender != "all" {
		return false
	}
	if s.Gender == "girl" && l.Gender != "girl" && l.Gender != "all" {
		return false
	}

	// Set-membership fields: listing value must be in the allowed set.
	if !inIntSet(codeOrNil(l.Kind), s.Kind) {
		return false
	}
	if !inIntSet(codeOrNil(l.Section), s.Section) {
		return false
	}
	if !inIntSet(l.Shape, s.Shape) {
		return false
	}
	if !inIntSet(l.Fitment, s.Fitment) {
		return false
	}

	// Bucketed fields: top bucket means "N or more".
	if !inBuckets(l.Layout, s.Layout) {
		return false
	}
	if !inBuckets(l.Bathroom, s.Bathroom) {
		return false
	}

	// Subset fields: every required code must be on the listing.
	if len(s.Other) > 0 && !isSubset(s.Other, stringSet(l.Other)) {
		return false
	}
	if len(s.Options) > 0 && !isSubset(s.Options, l.EquipmentCodes()) {
		return false
	}

	return true
}

func inIntRange(v, min, max *int) bool {
	if v == nil {
		return true
	}
	if min != nil && *v < *min {
		return false
	}
	if max != nil && *v > *max {
		return false
	}
	return true
}

func inFloatRange(v, min, max *float64) bool {
	if v == nil {
		return true
	}
	if min != nil && *v < *min {
		return false
	}
	if max != nil && *v > *max {
		return false
	}
	return true
}

// inIntSet applies set-membership semantics: empty set allows everything, a
// populated set requires a known, member value.
func inIntSet(v *int, allowed []int) bool {
	if len(allowed) == 0 {
		return true
	}
	if v == nil {
		return false
	}
	for _, a := range allowed {
		if a == *v {
			return true
		}
	}
	return false
}

// inBuckets applies bucket semantics: unknown listing values pass, the top
// bucket matches any value at or above it.
func inBuckets(v *int, buckets []int) bool {
	if len(buckets) == 0 || v == nil {
		return true
	}
	for _, b := range buckets {
		if b >= topBucket && *v >= topBucket {
			return true
		}
		if b == *v {
			return true
		}
	}
	return false
}

func codeOrNil(code int) *int {
	if code == 0 {
		return nil
	}
	return &code
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

func isSubset(required []string, have map[string]bool) bool {
	for _, r := range required {
		if !have[strings.ToLower(r)] {
			return false
		}
	}
	return true
}
