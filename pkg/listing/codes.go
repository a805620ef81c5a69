package listing

import "strings"

// Code tables converting upstream vocabulary to stable codes. Matching is
// exact first, then substring containment in table order, first hit wins —
// more specific names sit above the generic ones they contain. New upstream
// vocabulary is a data change here, not a code change.

type intCode struct {
	name string
	code int
}

type strCode struct {
	name string
	code string
}

// Building shape: 1=公寓, 2=電梯大樓, 3=透天厝, 4=別墅.
var shapeNameToCode = []intCode{
	{"公寓", 1},
	{"電梯大樓", 2},
	{"透天厝", 3},
	{"別墅", 4},
}

// Fitment level: 99=新裝潢, 3=中檔裝潢, 4=高檔裝潢. Anything else
// (簡易裝潢, "--") is unknown.
var fitmentNameToCode = []intCode{
	{"新裝潢", 99},
	{"中檔裝潢", 3},
	{"高檔裝潢", 4},
}

// Property kind: 1=整層住家, 2=獨立套房, 3=分租套房, 4=雅房, 8=車位, 24=其他.
var kindNameToCode = []intCode{
	{"整層住家", 1},
	{"獨立套房", 2},
	{"分租套房", 3},
	{"雅房", 4},
	{"車位", 8},
	{"其他", 24},
}

// Equipment names to option codes.
var optionNameToCode = []strCode{
	{"冷氣", "cold"},
	{"空調", "cold"},
	{"洗衣機", "washer"},
	{"洗衣", "washer"},
	{"冰箱", "icebox"},
	{"熱水器", "hotwater"},
	{"熱水", "hotwater"},
	{"天然瓦斯", "naturalgas"},
	{"天然氣", "naturalgas"},
	{"瓦斯", "naturalgas"},
	{"網路", "broadband"},
	{"寬頻", "broadband"},
	{"wifi", "broadband"},
	{"床鋪", "bed"},
	{"床", "bed"},
	{"電視", "tv"},
	{"衣櫃", "wardrobe"},
	{"第四台", "cable"},
	{"沙發", "sofa"},
	{"桌椅", "desk"},
	{"陽台", "balcony"},
	{"電梯", "lift"},
	{"車位", "parking"},
}

// Tag names to feature ("other") codes.
var otherNameToCode = []strCode{
	{"近捷運", "near_subway"},
	{"捷運", "near_subway"},
	{"mrt", "near_subway"},
	{"可養寵物", "pet"},
	{"可養寵", "pet"},
	{"寵物", "pet"},
	{"可開伙", "cook"},
	{"開伙", "cook"},
	{"廚房", "cook"},
	{"有電梯", "lift"},
	{"電梯", "lift"},
	{"有陽台", "balcony_1"},
	{"陽台", "balcony_1"},
	{"隨時可遷入", "lease"},
	{"押一付一", "deposit_1"},
}

func lower(s string) string { return strings.ToLower(s) }

// lookupInt resolves a raw name against an int code table, exact match
// first, then substring containment in either direction.
func lookupInt(table []intCode, raw string) (int, bool) {
	if raw == "" || raw == "--" {
		return 0, false
	}
	for _, e := range table {
		if e.name == raw {
			return e.code, true
		}
	}
	for _, e := range table {
		if strings.Contains(raw, e.name) || strings.Contains(e.name, raw) {
			return e.code, true
		}
	}
	return 0, false
}

// lookupStrings maps a list of raw names to a deduplicated code list. ASCII
// keys are matched case-insensitively.
func lookupStrings(table []strCode, names []string) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, name := range names {
		folded := lower(name)
		code, ok := "", false
		for _, e := range table {
			if e.name == name || e.name == folded {
				code, ok = e.code, true
				break
			}
		}
		if !ok {
			for _, e := range table {
				if strings.Contains(name, e.name) || strings.Contains(folded, e.name) {
					code, ok = e.code, true
					break
				}
			}
		}
		if ok && !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

// ShapeCode converts a building shape name to its code, 0 if unknown.
func ShapeCode(raw string) (int, bool) { return lookupInt(shapeNameToCode, raw) }

// FitmentCode converts a fitment name to its code, 0 if unknown.
func FitmentCode(raw string) (int, bool) { return lookupInt(fitmentNameToCode, raw) }

// KindCode converts a property kind name to its code, 0 if unknown.
func KindCode(raw string) (int, bool) { return lookupInt(kindNameToCode, raw) }

// OptionsToCodes converts equipment names to option codes.
func OptionsToCodes(names []string) []string { return lookupStrings(optionNameToCode, names) }

// OtherToCodes converts tag names to feature codes.
func OtherToCodes(tags []string) []string { return lookupStrings(otherNameToCode, tags) }
