package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Heuristic distances between bins
const (
	CrossZoneDistance    = 100.0
	SharedPrefixDistance = 50.0
	aisleWeight          = 10.0
	rackWeight           = 1.0
	levelWeight          = 0.5
)

// Bin codes follow ZONE-AISLE-RACK-LEVEL, e.g. A-01-R05-L02
var binPattern = regexp.MustCompile(`^([A-Z][A-Z0-9]*)-(\d{1,3})-R?(\d{1,3})-L?(\d{1,3})$`)

// BinLocation is a parsed bin code
type BinLocation struct {
	Code  string
	Zone  string
	Aisle int
	Rack  int
	Level int
}

// ParseBin parses a bin code. ok is false when the code does not follow the
// ZONE-AISLE-RACK-LEVEL layout.
func ParseBin(code string) (BinLocation, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	m := binPattern.FindStringSubmatch(normalized)
	if m == nil {
		return BinLocation{Code: normalized}, false
	}
	aisle, _ := strconv.Atoi(m[2])
	rack, _ := strconv.Atoi(m[3])
	level, _ := strconv.Atoi(m[4])
	return BinLocation{Code: normalized, Zone: m[1], Aisle: aisle, Rack: rack, Level: level}, true
}

// ZoneOf returns the zone segment of a bin code, parsed or not
func ZoneOf(code string) string {
	if loc, ok := ParseBin(code); ok {
		return loc.Zone
	}
	prefix, _, _ := strings.Cut(strings.ToUpper(strings.TrimSpace(code)), "-")
	return prefix
}

// BinDistance is the travel heuristic between two bin codes. An unknown
// starting position costs nothing.
func BinDistance(from, to string) float64 {
	if from == "" || to == "" {
		return 0
	}
	a, okA := ParseBin(from)
	b, okB := ParseBin(to)
	if !okA || !okB {
		switch {
		case a.Code == b.Code:
			return 0
		case ZoneOf(from) != "" && ZoneOf(from) == ZoneOf(to):
			return SharedPrefixDistance
		default:
			return CrossZoneDistance
		}
	}
	if a.Zone != b.Zone {
		return CrossZoneDistance
	}
	return math.Abs(float64(a.Aisle-b.Aisle))*aisleWeight +
		math.Abs(float64(a.Rack-b.Rack))*rackWeight +
		math.Abs(float64(a.Level-b.Level))*levelWeight
}

// SameAisle reports whether two bins share zone and aisle
func SameAisle(a, b string) bool {
	la, okA := ParseBin(a)
	lb, okB := ParseBin(b)
	return okA && okB && la.Zone == lb.Zone && la.Aisle == lb.Aisle
}

// LessInRoute orders bins for a pick walk by zone, aisle, rack and
// level, then by raw code. Unparsable codes sort after parsable ones in
// the same zone.
func LessInRoute(a, b string) bool {
	la, okA := ParseBin(a)
	lb, okB := ParseBin(b)
	za, zb := ZoneOf(a), ZoneOf(b)
	if za != zb {
		return za < zb
	}
	if okA != okB {
		return okA
	}
	if okA {
		if la.Aisle != lb.Aisle {
			return la.Aisle < lb.Aisle
		}
		if la.Rack != lb.Rack {
			return la.Rack < lb.Rack
		}
		if la.Level != lb.Level {
			return la.Level < lb.Level
		}
	}
	return la.Code < lb.Code
}

// ReachTier classifies a bin level by ergonomic reach: golden levels 2-3
// are tier 1, levels 1 and 4 tier 2, everything else tier 3.
func ReachTier(bin string) int {
	loc, ok := ParseBin(bin)
	if !ok {
		return 3
	}
	switch loc.Level {
	case 2, 3:
		return 1
	case 1, 4:
		return 2
	default:
		return 3
	}
}
