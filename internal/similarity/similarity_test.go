package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name      string
		query     string
		candidate string
		want      float64
	}{
		{"candidate contains query", "para", "Paracetamol", 0.9},
		{"query contains candidate", "paracetamol tablets", "Paracetamol", 0.8},
		{"identical", "Vitamin C", "vitamin c", 0.9},
		{"token overlap", "vitamin tablets", "vitamins daily", 0.5},
		{"overlap capped", "cold flu", "flu cold", 0.7},
		{"disjoint", "ibuprofen", "sunscreen", 0},
		{"empty query", "", "anything", 0},
		{"blank candidate", "query", "   ", 0},
		{"blank query", "   ", "query", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.query, tc.candidate), 1e-9)
		})
	}
}

func TestScore_SelfIsHigh(t *testing.T) {
	for _, s := range []string{"a", "Amoxicillin 500mg", "  mixed Case  ", "  ", "\t"} {
		assert.GreaterOrEqual(t, Score(s, s), 0.8, s)
	}
}

type vendor struct {
	Name    string
	Address string
}

func vendorFields() []Field[vendor] {
	return []Field[vendor]{
		func(v vendor) string { return v.Name },
		func(v vendor) string { return v.Address },
	}
}

func TestSearch_ExactHitsSuppressFallback(t *testing.T) {
	items := []vendor{
		{Name: "HealthPlus", Address: "12 Allen Avenue"},
		{Name: "MedPlus Pharmacy", Address: "Lekki"},
		{Name: "Health Corner", Address: "Ikeja"},
	}
	got := Search("allen", items, vendorFields()...)
	require.Len(t, got, 1)
	assert.True(t, got[0].Exact)
	assert.Equal(t, "HealthPlus", got[0].Item.Name)
}

func TestSearch_FallbackSortedByScore(t *testing.T) {
	items := []vendor{
		{Name: "Green Leaf Drugs", Address: "Yaba"},
		{Name: "Corner Pharmacy Central", Address: "Surulere"},
		{Name: "Central Pharmacy", Address: "Ikoyi"},
	}
	got := Search("central pharmacies", items, vendorFields()...)
	require.Len(t, got, 2)
	assert.Equal(t, "Central Pharmacy", got[0].Item.Name)
	assert.False(t, got[0].Exact)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestSearch_NothingSimilar(t *testing.T) {
	items := []vendor{{Name: "Alpha", Address: "Beta"}}
	assert.Empty(t, Search("zzz", items, vendorFields()...))
	assert.Empty(t, Search("", items, vendorFields()...))
}
