package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumberlens/backend-lumber/internal/common"
	"github.com/lumberlens/backend-lumber/internal/lumber"
	"github.com/lumberlens/backend-lumber/internal/repo"
)

// Store defines the product and vendor queries the catalog needs.
type Store interface {
	List(ctx context.Context, f repo.ProductFilter) ([]repo.ProductWithPrice, int64, error)
	Get(ctx context.Context, id uuid.UUID) (repo.Product, error)
	ListVendors(ctx context.Context) ([]repo.Vendor, error)
	GetVendor(ctx context.Context, id uuid.UUID) (repo.Vendor, error)
}

// ListingStore defines the listing queries the catalog needs.
type ListingStore interface {
	ActiveForProduct(ctx context.Context, productID uuid.UUID) ([]repo.ListingWithVendor, error)
	PriceHistory(ctx context.Context, productID uuid.UUID, since time.Time) ([]repo.ListingWithVendor, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	store        Store
	listings     ListingStore
	cache        *Cache
	defaultPage  int
	defaultLimit int
	maxLimit     int
	historyDays  int
	now          func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Listings     ListingStore
	Cache        *Cache
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
	HistoryDays  int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query     string
	Species   string
	Grade     string
	Treatment string
	Category  string
	Width     int
	Depth     int
	LengthFt  int
	MinPrice  *int64
	MaxPrice  *int64
	InStock   bool
	Sort      string
	Page      int
	Limit     int
}

// ProductListItem represents an entry in list responses.
type ProductListItem struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Species        string  `json:"species"`
	Grade          string  `json:"grade"`
	Treatment      string  `json:"treatment"`
	Category       string  `json:"category"`
	Dimension      string  `json:"dimension"`
	BoardFeet      float64 `json:"boardFeet"`
	BestPriceCents *int64  `json:"bestPriceCents,omitempty"`
	BestPerBFCents *int64  `json:"bestPerBfCents,omitempty"`
	BestVendor     *string `json:"bestVendor,omitempty"`
	InStock        bool    `json:"inStock"`
	ListingCount   int     `json:"listingCount"`
}

// ListingView is one vendor's current offer on a product.
type ListingView struct {
	VendorID    string    `json:"vendorId"`
	VendorName  string    `json:"vendorName"`
	VendorChain string    `json:"vendorChain,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	PerBFCents  int64     `json:"perBfCents"`
	InStock     bool      `json:"inStock"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	CapturedAt  time.Time `json:"capturedAt"`
}

// ProductDetail aggregates the full detail payload.
type ProductDetail struct {
	ProductListItem
	Listings []ListingView `json:"listings"`
}

// PricePoint is one observation on a product's price history.
type PricePoint struct {
	VendorName string    `json:"vendorName"`
	PriceCents int64     `json:"priceCents"`
	InStock    bool      `json:"inStock"`
	CapturedAt time.Time `json:"capturedAt"`
}

// VendorView is the public vendor payload.
type VendorView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Chain   string `json:"chain,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductListItem
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if cfg.Listings == nil {
		return nil, errors.New("catalog: listing store is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	historyDays := cfg.HistoryDays
	if historyDays < 1 {
		historyDays = 90
	}
	return &Service{
		store:        cfg.Store,
		listings:     cfg.Listings,
		cache:        cfg.Cache,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		historyDays:  historyDays,
		now:          time.Now,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  s.defaultPage,
		Limit: s.defaultLimit,
	}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Species = strings.TrimSpace(values.Get("species"))
	params.Grade = strings.TrimSpace(values.Get("grade"))
	params.Treatment = strings.TrimSpace(values.Get("treatment"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("dimension")); v != "" {
		width, depth, err := parseCrossSection(v)
		if err != nil {
			return params, badRequest("dimension", "dimension must look like 2x4", err)
		}
		params.Width = width
		params.Depth = depth
	}
	if v := strings.TrimSpace(values.Get("length")); v != "" {
		length, err := strconv.Atoi(v)
		if err != nil || length < 1 {
			return params, badRequest("length", "length must be a positive integer", err)
		}
		params.LengthFt = length
	}

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}

	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit

	if v := strings.TrimSpace(values.Get("minPrice")); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return params, badRequest("minPrice", "minPrice must be a valid integer", err)
		}
		params.MinPrice = &parsed
	}
	if v := strings.TrimSpace(values.Get("maxPrice")); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return params, badRequest("maxPrice", "maxPrice must be a valid integer", err)
		}
		params.MaxPrice = &parsed
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return params, badRequest("price", "minPrice cannot be greater than maxPrice", fmt.Errorf("invalid price range"))
	}

	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, badRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = b
	}

	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// ListProducts returns filtered product list with pagination metadata.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key, shouldUseCache := s.listCacheKey(params)
	if shouldUseCache && s.cache != nil {
		var cached cachedList
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return ProductListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	filter := repo.ProductFilter{
		Search:       params.Query,
		Species:      params.Species,
		Grade:        params.Grade,
		Treatment:    params.Treatment,
		Category:     params.Category,
		NominalWidth: params.Width,
		NominalDepth: params.Depth,
		LengthFt:     params.LengthFt,
		InStockOnly:  params.InStock,
		Sort:         params.Sort,
		Limit:        params.Limit,
		Offset:       (params.Page - 1) * params.Limit,
	}
	if params.MinPrice != nil {
		filter.MinPriceCents = *params.MinPrice
	}
	if params.MaxPrice != nil {
		filter.MaxPriceCents = *params.MaxPrice
	}

	rows, total, err := s.store.List(ctx, filter)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	items := make([]ProductListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ListItemFromRow(row))
	}

	if shouldUseCache && s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProductDetail returns one product with its current per-vendor offers.
func (s *Service) GetProductDetail(ctx context.Context, rawID string) (ProductDetail, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return ProductDetail{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
	}

	key := "cat:detail:" + id.String()
	if s.cache != nil {
		var cached ProductDetail
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}

	product, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ProductDetail{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return ProductDetail{}, fmt.Errorf("get product: %w", err)
	}

	offers, err := s.listings.ActiveForProduct(ctx, id)
	if err != nil {
		return ProductDetail{}, fmt.Errorf("active listings: %w", err)
	}

	detail := ProductDetail{
		ProductListItem: ListItemFromRow(repo.ProductWithPrice{Product: product}),
		Listings:        make([]ListingView, 0, len(offers)),
	}
	for _, offer := range offers {
		view := ListingView{
			VendorID:   offer.VendorID.String(),
			VendorName: offer.VendorName,
			PriceCents: offer.PriceCents,
			PerBFCents: lumber.PerBoardFootCents(offer.PriceCents, offer.PriceUnit, product.BoardFeet),
			InStock:    offer.InStock,
			Confidence: offer.Confidence,
			Source:     offer.Source,
			CapturedAt: offer.CapturedAt,
		}
		if offer.VendorChain != nil {
			view.VendorChain = *offer.VendorChain
		}
		if offer.InStock && (detail.BestPriceCents == nil || view.PriceCents < *detail.BestPriceCents) {
			price := view.PriceCents
			vendor := view.VendorName
			per := view.PerBFCents
			detail.BestPriceCents = &price
			detail.BestVendor = &vendor
			detail.BestPerBFCents = &per
			detail.InStock = true
		}
		detail.Listings = append(detail.Listings, view)
	}
	detail.ListingCount = len(detail.Listings)

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, detail)
	}
	return detail, nil
}

// PriceHistory returns a product's observations over the configured window.
func (s *Service) PriceHistory(ctx context.Context, rawID string) ([]PricePoint, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	since := s.now().AddDate(0, 0, -s.historyDays)
	rows, err := s.listings.PriceHistory(ctx, id, since)
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	points := make([]PricePoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, PricePoint{
			VendorName: row.VendorName,
			PriceCents: row.PriceCents,
			InStock:    row.InStock,
			CapturedAt: row.CapturedAt,
		})
	}
	return points, nil
}

// ListVendors returns all vendors sorted by name.
func (s *Service) ListVendors(ctx context.Context) ([]VendorView, error) {
	rows, err := s.store.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	result := make([]VendorView, 0, len(rows))
	for _, row := range rows {
		result = append(result, convertVendor(row))
	}
	return result, nil
}

// GetVendor returns one vendor by id.
func (s *Service) GetVendor(ctx context.Context, rawID string) (VendorView, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return VendorView{}, common.NewAppError("NOT_FOUND", "vendor not found", http.StatusNotFound, err)
	}
	vendor, err := s.store.GetVendor(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return VendorView{}, common.NewAppError("NOT_FOUND", "vendor not found", http.StatusNotFound, err)
		}
		return VendorView{}, fmt.Errorf("get vendor: %w", err)
	}
	return convertVendor(vendor), nil
}

type cachedList struct {
	Items []ProductListItem `json:"items"`
	Total int64             `json:"total"`
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	// Only the common unfiltered pages are worth caching.
	if params.Query != "" || params.MinPrice != nil || params.MaxPrice != nil {
		return "", false
	}
	key := fmt.Sprintf("cat:list:%s:%s:%s:%s:%dx%dx%d:%t:%s:%d:%d",
		params.Species, params.Grade, params.Treatment, params.Category,
		params.Width, params.Depth, params.LengthFt, params.InStock,
		params.Sort, params.Page, params.Limit)
	return key, true
}

// ListItemFromRow builds the list payload for one product row. The favorites
// surface reuses it so both lists render products identically.
func ListItemFromRow(row repo.ProductWithPrice) ProductListItem {
	item := ProductListItem{
		ID:           row.ID.String(),
		Name:         row.Name,
		Species:      row.Species,
		Grade:        row.Grade,
		Treatment:    row.Treatment,
		Category:     row.Category,
		Dimension:    lumber.FormatDimension(row.NominalWidth, row.NominalDepth, row.LengthFt),
		BoardFeet:    row.BoardFeet,
		ListingCount: row.ListingCount,
	}
	if row.BestPriceCents != nil {
		price := *row.BestPriceCents
		item.BestPriceCents = &price
		item.InStock = true
		if row.BoardFeet > 0 {
			per := lumber.PerBoardFootCents(price, lumber.UnitPiece, row.BoardFeet)
			item.BestPerBFCents = &per
		}
	}
	if row.BestVendorName != nil {
		vendor := *row.BestVendorName
		item.BestVendor = &vendor
	}
	return item
}

func convertVendor(v repo.Vendor) VendorView {
	view := VendorView{ID: v.ID.String(), Name: v.Name}
	if v.Chain != nil {
		view.Chain = *v.Chain
	}
	if v.Address != nil {
		view.Address = *v.Address
	}
	if v.City != nil {
		view.City = *v.City
	}
	if v.State != nil {
		view.State = *v.State
	}
	if v.ZipCode != nil {
		view.ZipCode = *v.ZipCode
	}
	return view
}

func parseCrossSection(value string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(value), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("catalog: invalid cross section %q", value)
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || width < 1 {
		return 0, 0, fmt.Errorf("catalog: invalid width %q", parts[0])
	}
	depth, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || depth < 1 {
		return 0, 0, fmt.Errorf("catalog: invalid depth %q", parts[1])
	}
	return width, depth, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("catalog: invalid boolean %q", value)
	}
}

func normalizeSort(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "price_asc", "price":
		return "price_asc"
	case "price_desc":
		return "price_desc"
	case "newest":
		return "newest"
	default:
		return "name"
	}
}

func badRequest(field, message string, err error) error {
	appErr := common.NewAppError("VALIDATION_ERROR", message, http.StatusBadRequest, err)
	appErr.Details = map[string]any{"field": field}
	return appErr
}
