package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stupiduntilnot/pharmassist/internal/geo"
)

func TestLinks(t *testing.T) {
	cases := map[string]string{
		ProductPath("p1"):       "/product/p1",
		ProductPath("a/b"):      "/product/a%2Fb",
		VendorPath("v 1"):       "/vendor/v%201",
		OrderPath("o&1"):        "/orders?highlight=o%261",
		OrderPath("order-9001"): "/orders?highlight=order-9001",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestConversationContext_CloneIsDeep(t *testing.T) {
	d := 1.25
	orig := &ConversationContext{
		UserInfo:     &UserInfo{ID: "u1", Name: "Ada"},
		ProductInfo:  []ProductSummary{{ID: "p1", Name: "Paracetamol", Tags: []string{"pain"}}},
		PharmacyInfo: []PharmacySummary{{ID: "v1", Name: "HealthPlus", DistanceKm: &d}},
		OrderInfo:    []OrderSummary{{ID: "o1", ItemNames: []string{"Paracetamol"}}},
		UserLocation: &geo.Point{Lat: 1, Lon: 2},
	}
	snap := orig.Clone()
	if diff := cmp.Diff(orig, snap); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	orig.UserInfo.Name = "changed"
	orig.ProductInfo[0].Tags[0] = "changed"
	*orig.PharmacyInfo[0].DistanceKm = 99
	orig.OrderInfo[0].ItemNames[0] = "changed"
	orig.UserLocation.Lat = 50

	if snap.UserInfo.Name != "Ada" || snap.ProductInfo[0].Tags[0] != "pain" ||
		*snap.PharmacyInfo[0].DistanceKm != 1.25 || snap.OrderInfo[0].ItemNames[0] != "Paracetamol" ||
		snap.UserLocation.Lat != 1 {
		t.Fatalf("snapshot was mutated: %+v", snap)
	}
}

func TestConversationContext_CloneNil(t *testing.T) {
	var c *ConversationContext
	if c.Clone() != nil {
		t.Fatal("expected nil clone")
	}
}
