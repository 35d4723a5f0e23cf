// Package geo ranks geo-tagged records by great-circle distance from a reference point.
package geo

import (
	"math"
	"slices"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the haversine distance between p and q in kilometres.
func Distance(p, q Point) float64 {
	if p == q {
		return 0
	}
	lat1 := toRadians(p.Lat)
	lat2 := toRadians(q.Lat)
	dLat := toRadians(q.Lat - p.Lat)
	dLng := toRadians(q.Lng - p.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	// rounding can push a just outside [0, 1] near identical or antipodal points
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

type Ranked[T any] struct {
	Record   T
	Distance float64
}

// HasDistance is false for records without coordinates or when no reference point was given.
func (r Ranked[T]) HasDistance() bool {
	return !math.IsInf(r.Distance, 1)
}

// Rank pairs every record with its distance from ref and orders the result
// ascending by distance. Records for which coords reports false get +Inf and
// therefore sort last. Equal distances keep their input order. A nil ref
// leaves the input order untouched.
func Rank[T any](ref *Point, records []T, coords func(T) (Point, bool)) []Ranked[T] {
	out := make([]Ranked[T], 0, len(records))
	for _, rec := range records {
		d := math.Inf(1)
		if ref != nil {
			if pt, ok := coords(rec); ok {
				d = Distance(*ref, pt)
			}
		}
		out = append(out, Ranked[T]{Record: rec, Distance: d})
	}
	if ref == nil {
		return out
	}
	slices.SortStableFunc(out, func(a, b Ranked[T]) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return out
}
