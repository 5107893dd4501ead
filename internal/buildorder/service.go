// Package buildorder manages saved lumber shopping lists and runs them
// through the repricing engine.
package buildorder

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumberlens/backend-lumber/internal/common"
	"github.com/lumberlens/backend-lumber/internal/repo"
	"github.com/lumberlens/backend-lumber/internal/reprice"
)

const shareTokenLength = 12
const shareTokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Store defines the build order persistence the service needs.
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, name string, notes *string, wasteFactor float64, items []repo.NewBuildOrderItem) (repo.BuildOrder, error)
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (repo.BuildOrder, error)
	Get(ctx context.Context, orderID uuid.UUID) (repo.BuildOrder, error)
	GetByShareToken(ctx context.Context, token string) (repo.BuildOrder, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]repo.BuildOrder, int64, error)
	Update(ctx context.Context, userID, orderID uuid.UUID, name string, notes *string, wasteFactor float64, items []repo.NewBuildOrderItem) (repo.BuildOrder, error)
	Delete(ctx context.Context, userID, orderID uuid.UUID) error
	Items(ctx context.Context, orderID uuid.UUID) ([]repo.BuildOrderItem, error)
	SetShareToken(ctx context.Context, userID, orderID uuid.UUID, token *string) error
	TouchRepriced(ctx context.Context, orderID uuid.UUID, splitSavingsCents int64, at time.Time) error
}

// ProductStore resolves line item products.
type ProductStore interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]repo.Product, error)
}

// ListingStore supplies the active market snapshot for repricing.
type ListingStore interface {
	ActiveForProducts(ctx context.Context, productIDs []uuid.UUID) ([]repo.ListingWithVendor, error)
}

// ItemInput is one requested line on a build order.
type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Input is the create/update payload for a build order.
type Input struct {
	Name        string      `json:"name"`
	Notes       string      `json:"notes"`
	WasteFactor *float64    `json:"wasteFactor"`
	Items       []ItemInput `json:"items"`
}

// ItemView is one line of a build order as returned to clients.
type ItemView struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

// View is the build order payload returned to clients.
type View struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Notes             string     `json:"notes,omitempty"`
	WasteFactor       float64    `json:"wasteFactor"`
	ShareToken        string     `json:"shareToken,omitempty"`
	LastRepriced      *time.Time `json:"lastRepriced,omitempty"`
	SplitSavingsCents *int64     `json:"splitSavingsCents,omitempty"`
	Items             []ItemView `json:"items,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// RepriceView bundles an order with the result of a repricing run.
type RepriceView struct {
	Order  View           `json:"order"`
	Result reprice.Result `json:"result"`
}

// ListResult contains a page of build orders.
type ListResult struct {
	Items []View
	Total int64
	Page  int
	Limit int
}

// Service coordinates build order persistence and repricing.
type Service struct {
	store        Store
	products     ProductStore
	listings     ListingStore
	defaultWaste float64
	now          func() time.Time
	newToken     func() (string, error)
}

// Config groups Service dependencies.
type Config struct {
	Store              Store
	Products           ProductStore
	Listings           ListingStore
	DefaultWasteFactor float64
}

// NewService constructs a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("buildorder: store is required")
	}
	if cfg.Products == nil {
		return nil, errors.New("buildorder: product store is required")
	}
	if cfg.Listings == nil {
		return nil, errors.New("buildorder: listing store is required")
	}
	defaultWaste := cfg.DefaultWasteFactor
	if defaultWaste < 0 || defaultWaste > 1 {
		defaultWaste = 0.1
	}
	return &Service{
		store:        cfg.Store,
		products:     cfg.Products,
		listings:     cfg.Listings,
		defaultWaste: defaultWaste,
		now:          time.Now,
		newToken:     generateShareToken,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithTokenFunc allows tests to override share token generation.
func (s *Service) WithTokenFunc(fn func() (string, error)) {
	if fn != nil {
		s.newToken = fn
	}
}

// Create stores a new build order for the user.
func (s *Service) Create(ctx context.Context, rawUserID string, in Input) (View, error) {
	userID, err := parseUser(rawUserID)
	if err != nil {
		return View{}, err
	}
	name, notes, waste, items, err := s.normalizeInput(ctx, in)
	if err != nil {
		return View{}, err
	}
	order, err := s.store.Create(ctx, userID, name, notes, waste, items)
	if err != nil {
		return View{}, fmt.Errorf("create build order: %w", err)
	}
	return s.viewWithItems(ctx, order)
}

// Get returns one build order with its lines.
func (s *Service) Get(ctx context.Context, rawUserID, rawOrderID string) (View, error) {
	userID, orderID, err := parseUserAndOrder(rawUserID, rawOrderID)
	if err != nil {
		return View{}, err
	}
	order, err := s.store.GetForUser(ctx, userID, orderID)
	if err != nil {
		return View{}, notFoundOr(err, "get build order")
	}
	return s.viewWithItems(ctx, order)
}

// List returns a page of the user's build orders without line detail.
func (s *Service) List(ctx context.Context, rawUserID string, page, limit int) (ListResult, error) {
	userID, err := parseUser(rawUserID)
	if err != nil {
		return ListResult{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	orders, total, err := s.store.ListForUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("list build orders: %w", err)
	}
	items := make([]View, 0, len(orders))
	for _, order := range orders {
		items = append(items, convertOrder(order))
	}
	return ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Update replaces an order's name, notes, waste factor, and line set.
func (s *Service) Update(ctx context.Context, rawUserID, rawOrderID string, in Input) (View, error) {
	userID, orderID, err := parseUserAndOrder(rawUserID, rawOrderID)
	if err != nil {
		return View{}, err
	}
	name, notes, waste, items, err := s.normalizeInput(ctx, in)
	if err != nil {
		return View{}, err
	}
	order, err := s.store.Update(ctx, userID, orderID, name, notes, waste, items)
	if err != nil {
		return View{}, notFoundOr(err, "update build order")
	}
	return s.viewWithItems(ctx, order)
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, rawUserID, rawOrderID string) error {
	userID, orderID, err := parseUserAndOrder(rawUserID, rawOrderID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, orderID); err != nil {
		return notFoundOr(err, "delete build order")
	}
	return nil
}

// Reprice runs the order through the pricing engine against the current
// market snapshot and records the savings result on the order.
func (s *Service) Reprice(ctx context.Context, rawUserID, rawOrderID string) (RepriceView, error) {
	userID, orderID, err := parseUserAndOrder(rawUserID, rawOrderID)
	if err != nil {
		return RepriceView{}, err
	}
	order, err := s.store.GetForUser(ctx, userID, orderID)
	if err != nil {
		return RepriceView{}, notFoundOr(err, "get build order")
	}
	return s.repriceOrder(ctx, order, true)
}

// RefreshSnapshot reprices one order outside a user session and records the
// result. Background workers use it to keep savings figures current.
func (s *Service) RefreshSnapshot(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return notFoundOr(err, "get build order")
	}
	_, err = s.repriceOrder(ctx, order, true)
	return err
}

// EnableShare publishes the order under a fresh share token.
func (s *Service) EnableShare(ctx context.Context, rawUserID, rawOrderID string) (string, error) {
	userID, orderID, err := parseUserAndOrder(rawUserID, rawOrderID)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < 5; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return "", fmt.Errorf("generate share token: %w", err)
		}
		err = s.store.SetShareToken(ctx, userID, orderID, &token)
		if err == nil {
			return token, nil
		}
		if errors.Is(err, repo.ErrDuplicate) {
			continue
		}
		return "", notFoundOr(err, "set share token")
	}
	return "", errors.New("buildorder: could not allocate share token")
}

// DisableShare revokes the order's share token.
func (s *Service) DisableShare(ctx context.Context, rawUserID, rawOrderID string) error {
	userID, orderID, err := parseUserAndOrder(rawUserID, rawOrderID)
	if err != nil {
		return err
	}
	if err := s.store.SetShareToken(ctx, userID, orderID, nil); err != nil {
		return notFoundOr(err, "clear share token")
	}
	return nil
}

// Shared resolves a public share token and reprices the order against the
// current market, without recording the run on the order.
func (s *Service) Shared(ctx context.Context, token string) (RepriceView, error) {
	token = strings.TrimSpace(strings.ToLower(token))
	if token == "" {
		return RepriceView{}, common.NewAppError("NOT_FOUND", "shared build order not found", http.StatusNotFound, nil)
	}
	order, err := s.store.GetByShareToken(ctx, token)
	if err != nil {
		return RepriceView{}, notFoundOr(err, "get shared build order")
	}
	view, err := s.repriceOrder(ctx, order, false)
	if err != nil {
		return RepriceView{}, err
	}
	// The owner's identity stays private on the shared surface.
	view.Order.ShareToken = ""
	return view, nil
}

func (s *Service) repriceOrder(ctx context.Context, order repo.BuildOrder, persist bool) (RepriceView, error) {
	items, err := s.store.Items(ctx, order.ID)
	if err != nil {
		return RepriceView{}, fmt.Errorf("load build order items: %w", err)
	}

	lineItems := make([]reprice.LineItem, 0, len(items))
	productIDs := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, reprice.LineItem{
			ProductID:   it.ProductID.String(),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
		})
		productIDs = append(productIDs, it.ProductID)
	}

	offers, err := s.listings.ActiveForProducts(ctx, productIDs)
	if err != nil {
		return RepriceView{}, fmt.Errorf("load market snapshot: %w", err)
	}
	marketListings := make([]reprice.Listing, 0, len(offers))
	for _, offer := range offers {
		l := reprice.Listing{
			VendorID:   offer.VendorID.String(),
			VendorName: offer.VendorName,
			ProductID:  offer.ProductID.String(),
			PriceCents: offer.PriceCents,
			InStock:    offer.InStock,
		}
		if offer.VendorChain != nil {
			l.VendorChain = *offer.VendorChain
		}
		marketListings = append(marketListings, l)
	}

	result := reprice.Compute(lineItems, order.WasteFactor, marketListings)

	if persist {
		at := s.now()
		if err := s.store.TouchRepriced(ctx, order.ID, result.SplitSavingsCents, at); err != nil {
			return RepriceView{}, fmt.Errorf("record reprice: %w", err)
		}
		order.LastRepriced = &at
		savings := result.SplitSavingsCents
		order.SplitSavingsCents = &savings
	}

	view := convertOrder(order)
	view.Items = convertItems(items)
	return RepriceView{Order: view, Result: result}, nil
}

func (s *Service) normalizeInput(ctx context.Context, in Input) (string, *string, float64, []repo.NewBuildOrderItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, 0, nil, common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	if len(name) > 120 {
		return "", nil, 0, nil, common.NewAppError("VALIDATION_ERROR", "name is too long", http.StatusBadRequest, nil)
	}

	var notes *string
	if trimmed := strings.TrimSpace(in.Notes); trimmed != "" {
		notes = &trimmed
	}

	waste := s.defaultWaste
	if in.WasteFactor != nil {
		waste = *in.WasteFactor
		if waste < 0 || waste > 1 {
			return "", nil, 0, nil, common.NewAppError("VALIDATION_ERROR", "wasteFactor must be between 0 and 1", http.StatusBadRequest, nil)
		}
	}

	items := make([]repo.NewBuildOrderItem, 0, len(in.Items))
	ids := make([]uuid.UUID, 0, len(in.Items))
	for _, item := range in.Items {
		productID, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			return "", nil, 0, nil, common.NewAppError("VALIDATION_ERROR", "items contain an invalid productId", http.StatusBadRequest, err)
		}
		if item.Quantity < 1 {
			return "", nil, 0, nil, common.NewAppError("VALIDATION_ERROR", "item quantity must be at least 1", http.StatusBadRequest, nil)
		}
		items = append(items, repo.NewBuildOrderItem{ProductID: productID, Quantity: item.Quantity})
		ids = append(ids, productID)
	}

	if len(ids) > 0 {
		known, err := s.products.GetByIDs(ctx, ids)
		if err != nil {
			return "", nil, 0, nil, fmt.Errorf("resolve products: %w", err)
		}
		if len(known) != len(dedupe(ids)) {
			return "", nil, 0, nil, common.NewAppError("VALIDATION_ERROR", "items reference unknown products", http.StatusBadRequest, nil)
		}
	}

	return name, notes, waste, items, nil
}

func (s *Service) viewWithItems(ctx context.Context, order repo.BuildOrder) (View, error) {
	items, err := s.store.Items(ctx, order.ID)
	if err != nil {
		return View{}, fmt.Errorf("load build order items: %w", err)
	}
	view := convertOrder(order)
	view.Items = convertItems(items)
	return view, nil
}

func convertOrder(order repo.BuildOrder) View {
	view := View{
		ID:                order.ID.String(),
		Name:              order.Name,
		WasteFactor:       order.WasteFactor,
		LastRepriced:      order.LastRepriced,
		SplitSavingsCents: order.SplitSavingsCents,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
	if order.Notes != nil {
		view.Notes = *order.Notes
	}
	if order.ShareToken != nil {
		view.ShareToken = *order.ShareToken
	}
	return view
}

func convertItems(items []repo.BuildOrderItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, ItemView{
			ID:          it.ID.String(),
			ProductID:   it.ProductID.String(),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
		})
	}
	return out
}

func generateShareToken() (string, error) {
	max := big.NewInt(int64(len(shareTokenAlphabet)))
	out := make([]byte, shareTokenLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = shareTokenAlphabet[n.Int64()]
	}
	return string(out), nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func parseUser(rawUserID string) (uuid.UUID, error) {
	userID, err := uuid.Parse(strings.TrimSpace(rawUserID))
	if err != nil {
		return uuid.Nil, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	return userID, nil
}

func parseUserAndOrder(rawUserID, rawOrderID string) (uuid.UUID, uuid.UUID, error) {
	userID, err := parseUser(rawUserID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	orderID, err := uuid.Parse(strings.TrimSpace(rawOrderID))
	if err != nil {
		return uuid.Nil, uuid.Nil, common.NewAppError("NOT_FOUND", "build order not found", http.StatusNotFound, err)
	}
	return userID, orderID, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return common.NewAppError("NOT_FOUND", "build order not found", http.StatusNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
