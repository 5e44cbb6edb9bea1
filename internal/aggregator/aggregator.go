// Package aggregator builds the bounded per-turn ConversationContext from the
// document store.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stupiduntilnot/pharmassist/internal/domain"
	"github.com/stupiduntilnot/pharmassist/internal/geo"
	"github.com/stupiduntilnot/pharmassist/internal/logging"
	"github.com/stupiduntilnot/pharmassist/internal/similarity"
	"github.com/stupiduntilnot/pharmassist/internal/store"
)

// Limits caps every slice of the context.
type Limits struct {
	PharmaciesFetched int
	PharmaciesSent    int
	Nearest           int
	ProductsFetched   int
	ProductsSent      int
	CartItems         int
	Orders            int
	Prescriptions     int
}

// DefaultLimits returns the standard context caps.
func DefaultLimits() Limits {
	return Limits{
		PharmaciesFetched: 20,
		PharmaciesSent:    10,
		Nearest:           3,
		ProductsFetched:   50,
		ProductsSent:      20,
		CartItems:         25,
		Orders:            10,
		Prescriptions:     15,
	}
}

// Slice names used in FetchError and logs.
const (
	SliceProfile            = "profile"
	SliceAuthUser           = "auth_user"
	SlicePharmacies         = "pharmacies"
	SliceProducts           = "products"
	SliceCart               = "cart"
	SliceOrders             = "orders"
	SlicePrescriptions      = "prescriptions"
	SliceReferencedProducts = "referenced_products"
)

// FetchError records one failed sub-fetch. The slice it feeds degrades to
// empty; the rest of the context is still built.
type FetchError struct {
	Slice string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Slice, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result is an assembled context plus the sub-fetches that failed.
type Result struct {
	Context  *domain.ConversationContext
	Failures []*FetchError
}

// Counts reports the size of each context slice.
func (r *Result) Counts() map[string]int {
	c := r.Context
	return map[string]int{
		"products":           len(c.ProductInfo),
		"pharmacies":         len(c.PharmacyInfo),
		"nearest_pharmacies": len(c.NearestPharmacies),
		"cart_items":         len(c.CartInfo),
		"orders":             len(c.OrderInfo),
		"prescriptions":      len(c.PrescriptionInfo),
	}
}

// Aggregator assembles ConversationContexts.
type Aggregator struct {
	reader store.Reader
	logger *zap.Logger
	limits Limits
}

// New creates an Aggregator with DefaultLimits.
func New(reader store.Reader, logger *zap.Logger) *Aggregator {
	return &Aggregator{reader: reader, logger: logging.OrNop(logger), limits: DefaultLimits()}
}

// WithLimits returns a copy of a using the given caps.
func (a *Aggregator) WithLimits(l Limits) *Aggregator {
	cp := *a
	cp.limits = l
	return &cp
}

// raw holds the documents fetched for one turn.
type raw struct {
	profile       store.Document
	authUser      store.Document
	pharmacies    []store.Document
	products      []store.Document
	cart          store.Document
	orders        []store.Document
	prescriptions []store.Document
}

// Build fetches every slice for userID concurrently, then ranks, relates and
// caps them. turn is the user's message and orders products by relevance.
// Build itself only fails when ctx is done.
func (a *Aggregator) Build(ctx context.Context, userID, turn string) (*Result, error) {
	var (
		mu       sync.Mutex
		failures []*FetchError
		r        raw
	)
	fail := func(slice string, err error) {
		a.logger.Warn("context sub-fetch failed",
			zap.String("slice", slice),
			zap.Error(err),
		)
		mu.Lock()
		failures = append(failures, &FetchError{Slice: slice, Err: err})
		mu.Unlock()
	}

	// Public catalog: pharmacies and products.
	catalog, catalogCtx := errgroup.WithContext(ctx)
	catalog.Go(func() error {
		docs, err := a.reader.List(catalogCtx, domain.CollectionPharmacies, store.Filter{}.WithLimit(a.limits.PharmaciesFetched))
		if err != nil {
			fail(SlicePharmacies, err)
			return nil
		}
		r.pharmacies = docs
		return nil
	})
	catalog.Go(func() error {
		docs, err := a.reader.List(catalogCtx, domain.CollectionProducts, store.Filter{}.WithLimit(a.limits.ProductsFetched))
		if err != nil {
			fail(SliceProducts, err)
			return nil
		}
		r.products = docs
		return nil
	})

	// Per-user records: profile, cart, orders, prescriptions.
	personal, personalCtx := errgroup.WithContext(ctx)
	personal.Go(func() error {
		r.profile, r.authUser = a.fetchUser(personalCtx, userID, fail)
		return nil
	})
	personal.Go(func() error {
		doc, err := a.reader.Get(personalCtx, domain.CollectionCarts, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			fail(SliceCart, err)
			return nil
		}
		r.cart = doc
		return nil
	})
	personal.Go(func() error {
		docs, err := a.reader.List(personalCtx, domain.CollectionOrders, store.Where("userId", userID))
		if err != nil {
			fail(SliceOrders, err)
			return nil
		}
		r.orders = docs
		return nil
	})
	personal.Go(func() error {
		docs, err := a.reader.List(personalCtx, domain.CollectionPrescriptions, store.Where("userId", userID))
		if err != nil {
			fail(SlicePrescriptions, err)
			return nil
		}
		r.prescriptions = docs
		return nil
	})

	_ = catalog.Wait()
	_ = personal.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	products := newProductIndex(r.products, r.pharmacies)
	if missing := products.missing(referencedProductIDs(r)); len(missing) > 0 {
		docs, err := a.reader.GetMany(ctx, domain.CollectionProducts, missing)
		if err != nil {
			fail(SliceReferencedProducts, err)
		} else {
			products.add(docs)
		}
	}

	cc := &domain.ConversationContext{
		UserInfo:         userInfo(userID, r.profile, r.authUser),
		ProductInfo:      a.rankProducts(r.products, products, turn),
		CartInfo:         cartItems(r.cart, products, a.limits.CartItems),
		OrderInfo:        orderSummaries(r.orders, products, a.limits.Orders),
		PrescriptionInfo: prescriptionSummaries(r.prescriptions, r.orders, products, a.limits.Prescriptions),
	}
	if loc, ok := userLocation(r.profile, r.authUser); ok {
		cc.UserLocation = &loc
	}
	cc.PharmacyInfo, cc.NearestPharmacies = a.rankPharmacies(r.pharmacies, cc.UserLocation)

	sort.Slice(failures, func(i, j int) bool { return failures[i].Slice < failures[j].Slice })
	return &Result{Context: cc, Failures: failures}, nil
}

func (a *Aggregator) fetchUser(ctx context.Context, userID string, fail func(string, error)) (profile, authUser store.Document) {
	profile, err := a.reader.Get(ctx, domain.CollectionUsers, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		fail(SliceProfile, err)
	}
	if _, ok := geo.Resolve(profile); ok {
		return profile, nil
	}
	// Profile has no usable location; fall back to the auth-provider record.
	authUser, err = a.reader.Get(ctx, domain.CollectionAuthUsers, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		fail(SliceAuthUser, err)
	}
	return profile, authUser
}

// userLocation prefers the profile's coordinates over the auth record's.
func userLocation(profile, authUser store.Document) (geo.Point, bool) {
	if p, ok := geo.Resolve(profile); ok {
		return p, true
	}
	return geo.Resolve(authUser)
}

// rankPharmacies orders candidates by distance from loc when known. The
// nearest list only holds pharmacies with a computed distance.
func (a *Aggregator) rankPharmacies(docs []store.Document, loc *geo.Point) (sent, nearest []domain.PharmacySummary) {
	if len(docs) == 0 {
		return nil, nil
	}
	if loc == nil {
		for _, d := range capped(docs, a.limits.PharmaciesSent) {
			sent = append(sent, pharmacySummary(d, nil))
		}
		return sent, nil
	}

	for _, r := range geo.RankByDistance(docs, *loc, nil) {
		s := pharmacySummary(r.Item, r.DistanceKm)
		if len(sent) < a.limits.PharmaciesSent {
			sent = append(sent, s)
		}
		if s.DistanceKm != nil && len(nearest) < a.limits.Nearest {
			nearest = append(nearest, s)
		}
	}
	return sent, nearest
}

// rankProducts orders the fetched catalog by relevance to the turn, keeping
// store order among equals, then caps it.
func (a *Aggregator) rankProducts(docs []store.Document, idx *productIndex, turn string) []domain.ProductSummary {
	if len(docs) == 0 {
		return nil
	}
	type scored struct {
		summary domain.ProductSummary
		score   float64
	}
	q := strings.TrimSpace(turn)
	ranked := make([]scored, 0, len(docs))
	for _, d := range docs {
		s := idx.summary(d)
		var score float64
		if q != "" {
			score = max(similarity.Score(q, s.Name), similarity.Score(q, s.Category))
		}
		ranked = append(ranked, scored{summary: s, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	summaries := make([]domain.ProductSummary, 0, len(ranked))
	for _, r := range ranked {
		summaries = append(summaries, r.summary)
	}
	return capped(summaries, a.limits.ProductsSent)
}

func capped[T any](in []T, n int) []T {
	if n > 0 && len(in) > n {
		return in[:n]
	}
	return in
}
