package geo

import (
	"fmt"
	"math"
	"sort"
)

const earthRadiusKm = 6371.0

// TravelMode selects the assumed average speed for ETA estimates.
type TravelMode string

const (
	Walking TravelMode = "walking"
	Cycling TravelMode = "cycling"
	Driving TravelMode = "driving"
)

var speedKmh = map[TravelMode]float64{
	Walking: 5,
	Cycling: 15,
	Driving: 30,
}

// ParseTravelMode maps a mode name to a TravelMode, defaulting to Driving.
func ParseTravelMode(s string) TravelMode {
	m := TravelMode(s)
	if _, ok := speedKmh[m]; ok {
		return m
	}
	return Driving
}

// ETA is an estimated travel time to a destination.
type ETA struct {
	Minutes    int        `json:"minutes"`
	Formatted  string     `json:"formatted"`
	DistanceKm float64    `json:"distanceKm"`
	Mode       TravelMode `json:"mode"`
}

// Distance returns the haversine great-circle distance in kilometres.
func Distance(p1, p2 Point) float64 {
	lat1 := p1.Lat * math.Pi / 180
	lat2 := p2.Lat * math.Pi / 180
	dLat := (p2.Lat - p1.Lat) * math.Pi / 180
	dLon := (p2.Lon - p1.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// EstimateETA converts a distance into a travel time for the given mode.
// Non-finite and non-positive distances have no ETA.
func EstimateETA(distanceKm float64, mode TravelMode) (ETA, bool) {
	if !isFinite(distanceKm) || distanceKm <= 0 {
		return ETA{}, false
	}
	return estimate(distanceKm, mode), true
}

// estimate assumes a finite, non-negative distance.
func estimate(distanceKm float64, mode TravelMode) ETA {
	mode = ParseTravelMode(string(mode))
	minutes := int(math.Round(distanceKm / speedKmh[mode] * 60))
	return ETA{
		Minutes:    minutes,
		Formatted:  FormatMinutes(minutes),
		DistanceKm: distanceKm,
		Mode:       mode,
	}
}

// FormatMinutes renders a duration such as "< 1 min", "20 mins", "2 hrs"
// or "1h 5m".
func FormatMinutes(minutes int) string {
	switch {
	case minutes < 1:
		return "< 1 min"
	case minutes < 60:
		return fmt.Sprintf("%d %s", minutes, plural(minutes, "min"))
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%d %s", h, plural(h, "hr"))
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// Resolver extracts a coordinate from a candidate.
type Resolver[T any] func(T) (Point, bool)

func resolverOrDefault[T any](resolve Resolver[T]) Resolver[T] {
	if resolve != nil {
		return resolve
	}
	return func(item T) (Point, bool) { return Resolve(any(item)) }
}

// Match is the closest candidate to a reference point.
type Match[T any] struct {
	Item     T
	Distance float64
	ETA      ETA
}

// Closest returns the candidate nearest to ref. Ties keep the earliest
// candidate. It reports false when no candidate has a coordinate.
func Closest[T any](candidates []T, ref Point, mode TravelMode, resolve Resolver[T]) (Match[T], bool) {
	resolve = resolverOrDefault(resolve)
	var (
		best  Match[T]
		found bool
	)
	for _, c := range candidates {
		p, ok := resolve(c)
		if !ok {
			continue
		}
		d := Distance(ref, p)
		if !found || d < best.Distance {
			best = Match[T]{Item: c, Distance: d}
			found = true
		}
	}
	if !found {
		return Match[T]{}, false
	}
	best.ETA = estimate(best.Distance, mode)
	return best, true
}

// Ranked is a candidate annotated with its distance from a reference point.
// DistanceKm is nil when the candidate has no resolvable coordinate.
type Ranked[T any] struct {
	Item       T
	DistanceKm *float64
}

// RankByDistance sorts candidates by ascending distance from ref with
// distances rounded to two decimals. Unresolvable candidates go last in
// their input order.
func RankByDistance[T any](candidates []T, ref Point, resolve Resolver[T]) []Ranked[T] {
	resolve = resolverOrDefault(resolve)
	out := make([]Ranked[T], len(candidates))
	for i, c := range candidates {
		out[i] = Ranked[T]{Item: c}
		if p, ok := resolve(c); ok {
			d := math.Round(Distance(ref, p)*100) / 100
			out[i].DistanceKm = &d
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DistanceKm, out[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a < *b
	})
	return out
}
