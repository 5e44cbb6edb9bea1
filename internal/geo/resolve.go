package geo

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Point is a resolved geographic coordinate with optional address details.
type Point struct {
	Lat        float64 `json:"lat" yaml:"lat"`
	Lon        float64 `json:"lon" yaml:"lon"`
	Address    string  `json:"address,omitempty" yaml:"address,omitempty"`
	City       string  `json:"city,omitempty" yaml:"city,omitempty"`
	State      string  `json:"state,omitempty" yaml:"state,omitempty"`
	Country    string  `json:"country,omitempty" yaml:"country,omitempty"`
	PostalCode string  `json:"postalCode,omitempty" yaml:"postalCode,omitempty"`
}

// Valid reports whether both coordinates are finite numbers.
func (p Point) Valid() bool {
	return isFinite(p.Lat) && isFinite(p.Lon)
}

var (
	latKeys = []string{"lat", "latitude"}
	lonKeys = []string{"lon", "lng", "longitude"}
	// Nested containers, searched in this order.
	nestedKeys = []string{"location", "coordinates", "coords"}
	addrKeys   = map[string]func(*Point, string){
		"address":    func(p *Point, v string) { p.Address = v },
		"city":       func(p *Point, v string) { p.City = v },
		"state":      func(p *Point, v string) { p.State = v },
		"country":    func(p *Point, v string) { p.Country = v },
		"postalCode": func(p *Point, v string) { p.PostalCode = v },
	}
)

const maxNestingDepth = 2

// Resolve extracts a coordinate from an arbitrary record. Records may be
// Points, or maps keyed by any of the lat/lon aliases, either at the top level
// or nested under location/coordinates/coords up to two levels deep. The first
// fully resolved pair wins. A coordinate of exactly zero is a valid value.
func Resolve(record any) (Point, bool) {
	return resolveAt(record, 0)
}

func resolveAt(record any, depth int) (Point, bool) {
	switch v := record.(type) {
	case nil:
		return Point{}, false
	case Point:
		return v, v.Valid()
	case *Point:
		if v == nil {
			return Point{}, false
		}
		return *v, v.Valid()
	case map[string]any:
		return resolveMap(v, depth)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return resolveMap(m, depth)
	}
	return Point{}, false
}

func resolveMap(m map[string]any, depth int) (Point, bool) {
	for _, lk := range latKeys {
		lat, ok := toFloat(m[lk])
		if !ok {
			continue
		}
		for _, lk2 := range lonKeys {
			lon, ok := toFloat(m[lk2])
			if !ok {
				continue
			}
			p := Point{Lat: lat, Lon: lon}
			if !p.Valid() {
				continue
			}
			for key, set := range addrKeys {
				if s, ok := m[key].(string); ok {
					set(&p, s)
				}
			}
			return p, true
		}
	}
	if depth >= maxNestingDepth {
		return Point{}, false
	}
	for _, nk := range nestedKeys {
		nested, ok := m[nk]
		if !ok || nested == nil {
			continue
		}
		if p, ok := resolveAt(nested, depth+1); ok {
			return p, true
		}
	}
	return Point{}, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if !isFinite(f) {
		return 0, false
	}
	return f, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
