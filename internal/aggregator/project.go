package aggregator

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stupiduntilnot/pharmassist/internal/domain"
	"github.com/stupiduntilnot/pharmassist/internal/store"
)

// The projections below copy display fields and navigation ids only; any
// other document field stays out of the context.

// productIndex resolves product ids referenced by carts, orders and
// prescriptions, and pharmacy names for products.
type productIndex struct {
	byID       map[string]store.Document
	pharmacies map[string]string
}

func newProductIndex(products, pharmacies []store.Document) *productIndex {
	idx := &productIndex{
		byID:       make(map[string]store.Document, len(products)),
		pharmacies: make(map[string]string, len(pharmacies)),
	}
	for _, p := range pharmacies {
		idx.pharmacies[store.ID(p)] = store.String(p, "name")
	}
	idx.add(products)
	return idx
}

func (idx *productIndex) add(docs []store.Document) {
	for _, d := range docs {
		if id := store.ID(d); id != "" {
			idx.byID[id] = d
		}
	}
}

// missing returns the distinct ids not already indexed, in first-mention order.
func (idx *productIndex) missing(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := idx.byID[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func (idx *productIndex) name(id string) string {
	return store.String(idx.byID[id], "name")
}

func (idx *productIndex) pharmacyName(doc store.Document) string {
	if name := store.String(doc, "pharmacyName"); name != "" {
		return name
	}
	return idx.pharmacies[store.String(doc, "pharmacyId")]
}

func (idx *productIndex) summary(d store.Document) domain.ProductSummary {
	id := store.ID(d)
	return domain.ProductSummary{
		ID:           id,
		Name:         store.String(d, "name"),
		Description:  store.String(d, "description"),
		Category:     store.String(d, "category"),
		Price:        store.Float(d, "price"),
		PharmacyName: idx.pharmacyName(d),
		Stock:        store.Int(d, "stock"),
		Tags:         store.Strings(d, "tags"),
		URL:          domain.ProductPath(id),
	}
}

// referencedProductIDs lists product ids mentioned by the per-user records.
func referencedProductIDs(r raw) []string {
	var ids []string
	for _, item := range store.Documents(r.cart, "items") {
		ids = append(ids, store.String(item, "productId"))
	}
	for _, o := range r.orders {
		for _, item := range store.Documents(o, "items") {
			ids = append(ids, store.String(item, "productId"))
		}
	}
	for _, p := range r.prescriptions {
		ids = append(ids, prescriptionProductIDs(p)...)
	}
	return ids
}

func prescriptionProductIDs(p store.Document) []string {
	ids := store.Strings(p, "productIds")
	for _, item := range store.Documents(p, "items") {
		ids = append(ids, store.String(item, "productId"))
	}
	return ids
}

func userInfo(userID string, profile, authUser store.Document) *domain.UserInfo {
	if profile == nil && authUser == nil {
		return nil
	}
	pick := func(keys ...string) string {
		for _, doc := range []store.Document{profile, authUser} {
			for _, k := range keys {
				if v := store.String(doc, k); v != "" {
					return v
				}
			}
		}
		return ""
	}
	return &domain.UserInfo{
		ID:    userID,
		Name:  pick("name", "displayName"),
		Email: pick("email"),
		Role:  pick("role"),
		URL:   domain.ProfilePath,
	}
}

func pharmacySummary(d store.Document, distanceKm *float64) domain.PharmacySummary {
	id := store.ID(d)
	return domain.PharmacySummary{
		ID:         id,
		Name:       store.String(d, "name"),
		Address:    pharmacyAddress(d),
		Verified:   store.Bool(d, "verified"),
		Phone:      store.String(d, "phone"),
		DistanceKm: distanceKm,
		URL:        domain.VendorPath(id),
	}
}

// pharmacyAddress prefers a top-level address, then the nested location's.
func pharmacyAddress(d store.Document) string {
	if a := store.String(d, "address"); a != "" {
		return a
	}
	if loc, ok := d["location"].(map[string]any); ok {
		return store.String(loc, "address")
	}
	return ""
}

func cartItems(cart store.Document, idx *productIndex, limit int) []domain.CartItem {
	var out []domain.CartItem
	for _, item := range capped(store.Documents(cart, "items"), limit) {
		id := store.String(item, "productId")
		name := store.String(item, "name")
		if name == "" {
			name = idx.name(id)
		}
		price := store.Float(item, "price")
		if price == 0 {
			price = store.Float(idx.byID[id], "price")
		}
		qty := store.Int(item, "quantity")
		if qty <= 0 {
			qty = 1
		}
		out = append(out, domain.CartItem{
			ProductID:   id,
			ProductName: name,
			Quantity:    qty,
			Price:       price,
			URL:         domain.CartPath,
		})
	}
	return out
}

// orderSummaries returns the most recent orders first.
func orderSummaries(orders []store.Document, idx *productIndex, limit int) []domain.OrderSummary {
	out := make([]domain.OrderSummary, 0, len(orders))
	for _, o := range orders {
		id := store.ID(o)
		var names []string
		for _, item := range store.Documents(o, "items") {
			name := store.String(item, "name")
			if name == "" {
				name = idx.name(store.String(item, "productId"))
			}
			if name != "" {
				names = append(names, name)
			}
		}
		out = append(out, domain.OrderSummary{
			ID:        id,
			Status:    store.String(o, "status"),
			Total:     store.Float(o, "total"),
			ItemNames: names,
			CreatedAt: timeField(o, "createdAt"),
			URL:       domain.OrderPath(id),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) == 0 {
		return nil
	}
	return capped(out, limit)
}

// prescriptionSummaries marks a prescription paid when one of the user's
// orders links to it, either by the order's prescriptionId or the
// prescription's orderId. Payment state itself is not checked.
func prescriptionSummaries(prescriptions, orders []store.Document, idx *productIndex, limit int) []domain.PrescriptionSummary {
	linked := make(map[string]bool)
	orderIDs := make(map[string]bool, len(orders))
	for _, o := range orders {
		orderIDs[store.ID(o)] = true
		if pid := store.String(o, "prescriptionId"); pid != "" {
			linked[pid] = true
		}
	}

	var out []domain.PrescriptionSummary
	for _, p := range capped(prescriptions, limit) {
		id := store.ID(p)
		var names []string
		for _, pid := range prescriptionProductIDs(p) {
			if name := idx.name(pid); name != "" {
				names = append(names, name)
			}
		}
		orderID := store.String(p, "orderId")
		url := domain.ProfilePath
		if orderID != "" {
			url = domain.OrderPath(orderID)
		}
		pharmacy := store.String(p, "pharmacyName")
		if pharmacy == "" {
			pharmacy = idx.pharmacies[store.String(p, "pharmacyId")]
		}
		out = append(out, domain.PrescriptionSummary{
			ID:           id,
			Status:       store.String(p, "status"),
			PharmacyName: pharmacy,
			ProductNames: names,
			Paid:         linked[id] || (orderID != "" && orderIDs[orderID]),
			URL:          url,
		})
	}
	return out
}

// timeField reads RFC 3339 strings, unix milliseconds, or numeric strings.
func timeField(doc store.Document, key string) time.Time {
	switch v := doc[key].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
			return t.UTC()
		}
		if ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case float64, int, int64:
		return time.UnixMilli(int64(store.Float(doc, key))).UTC()
	}
	return time.Time{}
}
