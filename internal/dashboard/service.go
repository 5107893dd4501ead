// Package dashboard serves the aggregate overview shown after sign-in.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lumberlens/backend-lumber/internal/common"
	"github.com/lumberlens/backend-lumber/internal/repo"
)

// Store defines the aggregate queries the dashboard needs.
type Store interface {
	UserCounts(ctx context.Context, userID uuid.UUID) (repo.UserCounts, error)
	MarketCounts(ctx context.Context) (repo.MarketCounts, error)
	SpeciesPrices(ctx context.Context) ([]repo.SpeciesPrice, error)
	RecentCaptures(ctx context.Context, since time.Time, limit int) ([]repo.ListingWithVendor, error)
}

// UserStats is the per-user block of the dashboard.
type UserStats struct {
	BuildOrders int64 `json:"buildOrders"`
	Favorites   int64 `json:"favorites"`
	Submissions int64 `json:"submissions"`
}

// MarketStats is the market-wide block of the dashboard.
type MarketStats struct {
	Products       int64 `json:"products"`
	Vendors        int64 `json:"vendors"`
	ActiveListings int64 `json:"activeListings"`
}

// SpeciesView is one row of the per-species price table.
type SpeciesView struct {
	Species        string `json:"species"`
	AvgPerBFCents  int64  `json:"avgPerBfCents"`
	ActiveListings int64  `json:"activeListings"`
}

// CaptureView is one recent price observation.
type CaptureView struct {
	ProductID  string    `json:"productId"`
	VendorName string    `json:"vendorName"`
	PriceCents int64     `json:"priceCents"`
	InStock    bool      `json:"inStock"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Overview is the full dashboard payload.
type Overview struct {
	User           UserStats     `json:"user"`
	Market         MarketStats   `json:"market"`
	SpeciesPrices  []SpeciesView `json:"speciesPrices"`
	RecentCaptures []CaptureView `json:"recentCaptures"`
}

// Service provides cached access to the dashboard aggregates. The market
// block is shared across users; only the user block is fetched per request.
type Service struct {
	Store        Store
	R            *redis.Client
	TTL          time.Duration
	RecentWindow time.Duration
	RecentLimit  int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Overview assembles the dashboard for one user.
func (s *Service) Overview(ctx context.Context, rawUserID string) (Overview, error) {
	if s == nil || s.Store == nil {
		return Overview{}, fmt.Errorf("dashboard service not configured")
	}
	userID, err := uuid.Parse(strings.TrimSpace(rawUserID))
	if err != nil {
		return Overview{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}

	counts, err := s.Store.UserCounts(ctx, userID)
	if err != nil {
		return Overview{}, fmt.Errorf("user counts: %w", err)
	}

	market, err := s.marketBlock(ctx)
	if err != nil {
		return Overview{}, err
	}
	market.User = UserStats(counts)
	return market, nil
}

type marketCache struct {
	Market         MarketStats   `json:"market"`
	SpeciesPrices  []SpeciesView `json:"speciesPrices"`
	RecentCaptures []CaptureView `json:"recentCaptures"`
}

func (s *Service) marketBlock(ctx context.Context) (Overview, error) {
	const key = "dash:market"
	if cached, ok := s.fromCache(ctx, key); ok {
		return Overview{Market: cached.Market, SpeciesPrices: cached.SpeciesPrices, RecentCaptures: cached.RecentCaptures}, nil
	}

	counts, err := s.Store.MarketCounts(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("market counts: %w", err)
	}
	species, err := s.Store.SpeciesPrices(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("species prices: %w", err)
	}
	window := s.RecentWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	limit := s.RecentLimit
	if limit <= 0 {
		limit = 20
	}
	captures, err := s.Store.RecentCaptures(ctx, s.now().Add(-window), limit)
	if err != nil {
		return Overview{}, fmt.Errorf("recent captures: %w", err)
	}

	block := marketCache{
		Market:         MarketStats(counts),
		SpeciesPrices:  make([]SpeciesView, 0, len(species)),
		RecentCaptures: make([]CaptureView, 0, len(captures)),
	}
	for _, row := range species {
		block.SpeciesPrices = append(block.SpeciesPrices, SpeciesView(row))
	}
	for _, row := range captures {
		block.RecentCaptures = append(block.RecentCaptures, CaptureView{
			ProductID:  row.ProductID.String(),
			VendorName: row.VendorName,
			PriceCents: row.PriceCents,
			InStock:    row.InStock,
			Source:     row.Source,
			CapturedAt: row.CapturedAt,
		})
	}
	s.store(ctx, key, block)
	return Overview{Market: block.Market, SpeciesPrices: block.SpeciesPrices, RecentCaptures: block.RecentCaptures}, nil
}

func (s *Service) fromCache(ctx context.Context, key string) (marketCache, bool) {
	if s.R == nil || s.TTL <= 0 {
		return marketCache{}, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return marketCache{}, false
	}
	var cached marketCache
	if err := json.Unmarshal(data, &cached); err != nil {
		return marketCache{}, false
	}
	return cached, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
