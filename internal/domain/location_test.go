package domain

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBin(t *testing.T) {
	loc, ok := ParseBin("a-01-R05-L02")
	require.True(t, ok)
	assert.Equal(t, BinLocation{Code: "A-01-R05-L02", Zone: "A", Aisle: 1, Rack: 5, Level: 2}, loc)

	loc, ok = ParseBin("FWD-12-03-04")
	require.True(t, ok)
	assert.Equal(t, "FWD", loc.Zone)
	assert.Equal(t, 4, loc.Level)

	_, ok = ParseBin("DOCK-7")
	assert.False(t, ok)
}

func TestBinDistance(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     float64
	}{
		{"same bin", "A-01-R05-L02", "A-01-R05-L02", 0},
		{"same zone", "A-01-R05-L02", "A-03-R02-L04", 2*10 + 3 + 2*0.5},
		{"different zone", "A-01-R05-L02", "B-01-R05-L02", 100},
		{"unparsable equal", "DOCK-7", "DOCK-7", 0},
		{"unparsable shared prefix", "DOCK-7", "DOCK-9", 50},
		{"unparsable other zone", "DOCK-7", "A-01-R01-L01", 100},
		{"unknown start", "", "A-01-R01-L01", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BinDistance(tt.from, tt.to), 1e-9)
		})
	}
}

func TestLessInRoute(t *testing.T) {
	bins := []string{"B-01-R01-L01", "A-02-R01-L01", "A-01-R03-L01", "A-01-R01-L02", "A-01-R01-L01", "A-STAGE"}
	sort.SliceStable(bins, func(i, j int) bool { return LessInRoute(bins[i], bins[j]) })
	assert.Equal(t, []string{"A-01-R01-L01", "A-01-R01-L02", "A-01-R03-L01", "A-02-R01-L01", "A-STAGE", "B-01-R01-L01"}, bins)
}

func TestReachTier(t *testing.T) {
	assert.Equal(t, 1, ReachTier("A-01-R01-L02"))
	assert.Equal(t, 1, ReachTier("A-01-R01-L03"))
	assert.Equal(t, 2, ReachTier("A-01-R01-L01"))
	assert.Equal(t, 2, ReachTier("A-01-R01-L04"))
	assert.Equal(t, 3, ReachTier("A-01-R01-L06"))
	assert.Equal(t, 3, ReachTier("FLOOR"))
}
