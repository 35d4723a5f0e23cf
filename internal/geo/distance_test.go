package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	boston    = Point{Lat: 42.3601, Lng: -71.0589}
	cambridge = Point{Lat: 42.3736, Lng: -71.1097}
	nyc       = Point{Lat: 40.7128, Lng: -74.0060}
	london    = Point{Lat: 51.5074, Lng: -0.1278}
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name    string
		p, q    Point
		want    float64
		epsilon float64
	}{
		{"identical", boston, boston, 0, 0},
		{"origin", Point{}, Point{}, 0, 0},
		{"boston-nyc", boston, nyc, 306.1, 1.0},
		{"nyc-london", nyc, london, 5570.2, 5.0},
		{"antipodal", Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 180}, math.Pi * EarthRadiusKm, 1e-6},
		{"poles", Point{Lat: 90, Lng: 0}, Point{Lat: -90, Lng: 0}, math.Pi * EarthRadiusKm, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.p, tt.q)
			require.False(t, math.IsNaN(got), "distance is NaN")
			assert.InDelta(t, tt.want, got, tt.epsilon)
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	points := []Point{boston, cambridge, nyc, london, {Lat: -33.8688, Lng: 151.2093}, {}}
	for _, p := range points {
		for _, q := range points {
			assert.InDelta(t, Distance(p, q), Distance(q, p), 1e-9, "%v <-> %v", p, q)
		}
		assert.Equal(t, 0.0, Distance(p, p))
	}
}

type place struct {
	name string
	pt   *Point
}

func placeCoords(p place) (Point, bool) {
	if p.pt == nil {
		return Point{}, false
	}
	return *p.pt, true
}

func names(ranked []Ranked[place]) []string {
	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.Record.name)
	}
	return out
}

func TestRank(t *testing.T) {
	records := []place{
		{name: "london", pt: &london},
		{name: "unknown-1"},
		{name: "nyc", pt: &nyc},
		{name: "cambridge", pt: &cambridge},
		{name: "unknown-2"},
		{name: "boston", pt: &boston},
	}

	ranked := Rank(&boston, records, placeCoords)
	assert.Equal(t, []string{"boston", "cambridge", "nyc", "london", "unknown-1", "unknown-2"}, names(ranked))

	for i := 1; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i-1].Distance, ranked[i].Distance)
	}
	assert.True(t, ranked[0].HasDistance())
	assert.False(t, ranked[len(ranked)-1].HasDistance())
}

func TestRankStableForEqualDistances(t *testing.T) {
	same := nyc
	records := []place{
		{name: "a", pt: &same},
		{name: "b", pt: &same},
		{name: "c", pt: &same},
	}
	ranked := Rank(&boston, records, placeCoords)
	assert.Equal(t, []string{"a", "b", "c"}, names(ranked))
}

func TestRankWithoutReference(t *testing.T) {
	records := []place{
		{name: "london", pt: &london},
		{name: "unknown"},
		{name: "boston", pt: &boston},
	}
	ranked := Rank(nil, records, placeCoords)
	assert.Equal(t, []string{"london", "unknown", "boston"}, names(ranked))
	for _, r := range ranked {
		assert.False(t, r.HasDistance())
	}
}

func TestRankEmpty(t *testing.T) {
	ranked := Rank(&boston, []place{}, placeCoords)
	assert.Empty(t, ranked)
}
