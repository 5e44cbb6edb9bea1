package geo

import (
	"encoding/json"
	"math"
	"testing"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name   string
		record any
		want   Point
		ok     bool
	}{
		{"top level short keys", map[string]any{"lat": 1.5, "lon": 2.5}, Point{Lat: 1.5, Lon: 2.5}, true},
		{"long keys", map[string]any{"latitude": 3.0, "longitude": 4.0}, Point{Lat: 3, Lon: 4}, true},
		{"lng alias", map[string]any{"lat": 1.0, "lng": 2.0}, Point{Lat: 1, Lon: 2}, true},
		{"zero is present", map[string]any{"lat": 0, "lon": 0}, Point{}, true},
		{"numeric strings", map[string]any{"lat": "12.5", "lng": " -7 "}, Point{Lat: 12.5, Lon: -7}, true},
		{"json number", map[string]any{"lat": json.Number("1"), "lon": json.Number("2")}, Point{Lat: 1, Lon: 2}, true},
		{"nested location", map[string]any{"location": map[string]any{"latitude": 5.0, "longitude": 6.0}}, Point{Lat: 5, Lon: 6}, true},
		{"depth two", map[string]any{"location": map[string]any{"coords": map[string]any{"lat": 7.0, "lon": 8.0}}}, Point{Lat: 7, Lon: 8}, true},
		{"depth three is too deep", map[string]any{"location": map[string]any{"coords": map[string]any{"coordinates": map[string]any{"lat": 7.0, "lon": 8.0}}}}, Point{}, false},
		{"top level wins over nested", map[string]any{"lat": 1.0, "lon": 1.0, "location": map[string]any{"lat": 9.0, "lon": 9.0}}, Point{Lat: 1, Lon: 1}, true},
		{"location before coordinates", map[string]any{"coordinates": map[string]any{"lat": 2.0, "lon": 2.0}, "location": map[string]any{"lat": 3.0, "lon": 3.0}}, Point{Lat: 3, Lon: 3}, true},
		{"falls through bad nested", map[string]any{"location": map[string]any{"lat": "x", "lon": 1.0}, "coords": map[string]any{"lat": 4.0, "lon": 4.0}}, Point{Lat: 4, Lon: 4}, true},
		{"missing lon", map[string]any{"lat": 1.0}, Point{}, false},
		{"non finite", map[string]any{"lat": math.NaN(), "lon": 1.0}, Point{}, false},
		{"infinite string", map[string]any{"lat": "Inf", "lon": 1.0}, Point{}, false},
		{"empty string", map[string]any{"lat": "", "lon": 1.0}, Point{}, false},
		{"bool rejected", map[string]any{"lat": true, "lon": 1.0}, Point{}, false},
		{"no aliases", map[string]any{"x": 1.0, "y": 2.0}, Point{}, false},
		{"nil", nil, Point{}, false},
		{"point value", Point{Lat: 0, Lon: 0}, Point{}, true},
		{"unsupported type", 42, Point{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(tc.record)
			if ok != tc.ok {
				t.Fatalf("ok=%v, want %v", ok, tc.ok)
			}
			if ok && (got.Lat != tc.want.Lat || got.Lon != tc.want.Lon) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestResolve_CopiesAddressFields(t *testing.T) {
	p, ok := Resolve(map[string]any{
		"location": map[string]any{"lat": 1.0, "lon": 2.0, "city": "Lagos", "postalCode": "100001"},
	})
	if !ok {
		t.Fatal("expected point")
	}
	if p.City != "Lagos" || p.PostalCode != "100001" {
		t.Fatalf("address fields not copied: %+v", p)
	}
}

func TestDistance(t *testing.T) {
	a := Point{Lat: 6.5244, Lon: 3.3792}
	b := Point{Lat: 9.0765, Lon: 7.3986}
	if d := Distance(a, a); d != 0 {
		t.Fatalf("distance to self = %v", d)
	}
	if Distance(a, b) != Distance(b, a) {
		t.Fatal("distance is not symmetric")
	}
	// One degree of longitude at the equator.
	d := Distance(Point{}, Point{Lon: 1})
	if math.Abs(d-111.19) > 0.01 {
		t.Fatalf("unexpected equator degree distance %v", d)
	}
}

func TestEstimateETA(t *testing.T) {
	eta, ok := EstimateETA(10, Driving)
	if !ok {
		t.Fatal("expected eta")
	}
	if eta.Minutes != 20 || eta.Formatted != "20 mins" || eta.Mode != Driving {
		t.Fatalf("unexpected eta %+v", eta)
	}
	for _, d := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		if _, ok := EstimateETA(d, Walking); ok {
			t.Fatalf("expected no eta for %v", d)
		}
	}
	eta, _ = EstimateETA(1, "teleport")
	if eta.Mode != Driving || eta.Minutes != 2 {
		t.Fatalf("unknown mode should fall back to driving: %+v", eta)
	}
}

func TestFormatMinutes(t *testing.T) {
	cases := map[int]string{
		0:   "< 1 min",
		1:   "1 min",
		59:  "59 mins",
		60:  "1 hr",
		120: "2 hrs",
		65:  "1h 5m",
	}
	for in, want := range cases {
		if got := FormatMinutes(in); got != want {
			t.Errorf("FormatMinutes(%d)=%q, want %q", in, got, want)
		}
	}
}

type pharmacy struct {
	ID  string
	Lat any
	Lon any
}

func resolvePharmacy(p pharmacy) (Point, bool) {
	return Resolve(map[string]any{"lat": p.Lat, "lon": p.Lon})
}

func TestClosest(t *testing.T) {
	if _, ok := Closest[pharmacy](nil, Point{}, Driving, resolvePharmacy); ok {
		t.Fatal("expected no match for empty candidates")
	}

	candidates := []pharmacy{{ID: "A", Lat: 0, Lon: 0}, {ID: "B", Lat: 0, Lon: 1}}
	m, ok := Closest(candidates, Point{}, Driving, resolvePharmacy)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Item.ID != "A" || m.Distance != 0 || m.ETA.Formatted != "< 1 min" {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestClosest_TieKeepsFirst(t *testing.T) {
	candidates := []pharmacy{
		{ID: "none", Lat: nil, Lon: nil},
		{ID: "east", Lat: 0, Lon: 1},
		{ID: "west", Lat: 0, Lon: -1},
	}
	m, ok := Closest(candidates, Point{}, Walking, resolvePharmacy)
	if !ok || m.Item.ID != "east" {
		t.Fatalf("expected first of tied candidates, got %+v", m)
	}
}

func TestClosest_DefaultResolver(t *testing.T) {
	docs := []map[string]any{
		{"id": "far", "lat": 10.0, "lon": 10.0},
		{"id": "near", "location": map[string]any{"lat": 0.1, "lng": 0.1}},
	}
	m, ok := Closest(docs, Point{}, Driving, nil)
	if !ok || m.Item["id"] != "near" {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestRankByDistance(t *testing.T) {
	candidates := []pharmacy{
		{ID: "unknown1"},
		{ID: "far", Lat: 0, Lon: 2},
		{ID: "unknown2", Lat: "x", Lon: 1},
		{ID: "near", Lat: 0, Lon: 0.5},
		{ID: "origin", Lat: 0, Lon: 0},
	}
	ranked := RankByDistance(candidates, Point{}, resolvePharmacy)
	order := make([]string, len(ranked))
	for i, r := range ranked {
		order[i] = r.Item.ID
	}
	want := []string{"origin", "near", "far", "unknown1", "unknown2"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order=%v, want %v", order, want)
		}
	}
	if ranked[1].DistanceKm == nil || *ranked[1].DistanceKm != 55.6 {
		t.Fatalf("expected rounded distance 55.6, got %v", ranked[1].DistanceKm)
	}
	if ranked[3].DistanceKm != nil {
		t.Fatal("unresolvable candidate should have no distance")
	}
}
