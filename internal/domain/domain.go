// Package domain holds the projections the assistant exposes to generation.
package domain

import (
	"slices"
	"time"

	"github.com/stupiduntilnot/pharmassist/internal/geo"
)

// Collections in the document store.
const (
	CollectionUsers         = "users"
	CollectionAuthUsers     = "auth_users"
	CollectionPharmacies    = "pharmacies"
	CollectionProducts      = "products"
	CollectionCarts         = "carts"
	CollectionOrders        = "orders"
	CollectionPrescriptions = "prescriptions"
)

// UserInfo is the display profile of the requesting user.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	URL   string `json:"url"`
}

// PharmacySummary is a public pharmacy projection. DistanceKm is derived
// from the current reference point on every request.
type PharmacySummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	Verified   bool     `json:"verified"`
	Phone      string   `json:"phone,omitempty"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
	URL        string   `json:"url"`
}

// ProductSummary is a public catalog projection.
type ProductSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Price        float64  `json:"price"`
	PharmacyName string   `json:"pharmacyName,omitempty"`
	Stock        int      `json:"stock"`
	Tags         []string `json:"tags,omitempty"`
	URL          string   `json:"url"`
}

// CartItem is one line of the requesting user's cart.
type CartItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	URL         string  `json:"url"`
}

// OrderSummary is one of the requesting user's orders.
type OrderSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	ItemNames []string  `json:"itemNames,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	URL       string    `json:"url"`
}

// PrescriptionSummary is one of the requesting user's prescriptions.
type PrescriptionSummary struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	PharmacyName string   `json:"pharmacyName,omitempty"`
	ProductNames []string `json:"productNames,omitempty"`
	Paid         bool     `json:"paid"`
	URL          string   `json:"url"`
}

// ConversationContext is the bounded set of facts assembled for one turn.
// It is rebuilt on every turn and never persisted.
type ConversationContext struct {
	UserInfo          *UserInfo             `json:"userInfo,omitempty"`
	ProductInfo       []ProductSummary      `json:"productInfo"`
	PharmacyInfo      []PharmacySummary     `json:"pharmacyInfo"`
	NearestPharmacies []PharmacySummary     `json:"nearestPharmacies"`
	CartInfo          []CartItem            `json:"cartInfo"`
	OrderInfo         []OrderSummary        `json:"orderInfo"`
	PrescriptionInfo  []PrescriptionSummary `json:"prescriptionInfo"`
	UserLocation      *geo.Point            `json:"userLocation,omitempty"`
}

// Clone returns a deep copy, so a generation in flight is isolated from
// later changes to the source context.
func (c *ConversationContext) Clone() *ConversationContext {
	if c == nil {
		return nil
	}
	out := &ConversationContext{
		ProductInfo: cloneEach(c.ProductInfo, func(p ProductSummary) ProductSummary {
			p.Tags = slices.Clone(p.Tags)
			return p
		}),
		PharmacyInfo:      cloneEach(c.PharmacyInfo, clonePharmacy),
		NearestPharmacies: cloneEach(c.NearestPharmacies, clonePharmacy),
		CartInfo:          slices.Clone(c.CartInfo),
		OrderInfo: cloneEach(c.OrderInfo, func(o OrderSummary) OrderSummary {
			o.ItemNames = slices.Clone(o.ItemNames)
			return o
		}),
		PrescriptionInfo: cloneEach(c.PrescriptionInfo, func(p PrescriptionSummary) PrescriptionSummary {
			p.ProductNames = slices.Clone(p.ProductNames)
			return p
		}),
	}
	if c.UserInfo != nil {
		u := *c.UserInfo
		out.UserInfo = &u
	}
	if c.UserLocation != nil {
		p := *c.UserLocation
		out.UserLocation = &p
	}
	return out
}

func cloneEach[T any](in []T, fn func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

func clonePharmacy(p PharmacySummary) PharmacySummary {
	if p.DistanceKm != nil {
		d := *p.DistanceKm
		p.DistanceKm = &d
	}
	return p
}

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one persisted transcript entry.
type ConversationMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
