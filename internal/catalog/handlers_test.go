package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lumberlens/backend-lumber/internal/catalog"
	"github.com/lumberlens/backend-lumber/internal/repo"
)

type productsResponse struct {
	Data       []catalog.ProductListItem `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

type productDetailResponse struct {
	Data catalog.ProductDetail `json:"data"`
}

type vendorsResponse struct {
	Data []catalog.VendorView `json:"data"`
}

type historyResponse struct {
	Data []catalog.PricePoint `json:"data"`
}

type fakeStore struct {
	products map[uuid.UUID]repo.Product
	list     []repo.ProductWithPrice
	vendors  []repo.Vendor
}

func (f *fakeStore) List(_ context.Context, filter repo.ProductFilter) ([]repo.ProductWithPrice, int64, error) {
	total := int64(len(f.list))
	start := filter.Offset
	if start > len(f.list) {
		start = len(f.list)
	}
	end := start + filter.Limit
	if end > len(f.list) {
		end = len(f.list)
	}
	return f.list[start:end], total, nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (repo.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return repo.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListVendors(context.Context) ([]repo.Vendor, error) {
	return f.vendors, nil
}

func (f *fakeStore) GetVendor(_ context.Context, id uuid.UUID) (repo.Vendor, error) {
	for _, v := range f.vendors {
		if v.ID == id {
			return v, nil
		}
	}
	return repo.Vendor{}, repo.ErrNotFound
}

type fakeListings struct {
	active  map[uuid.UUID][]repo.ListingWithVendor
	history map[uuid.UUID][]repo.ListingWithVendor
}

func (f *fakeListings) ActiveForProduct(_ context.Context, productID uuid.UUID) ([]repo.ListingWithVendor, error) {
	return f.active[productID], nil
}

func (f *fakeListings) PriceHistory(_ context.Context, productID uuid.UUID, _ time.Time) ([]repo.ListingWithVendor, error) {
	return f.history[productID], nil
}

func TestCatalogHandlers(t *testing.T) {
	studID := uuid.New()
	cedarID := uuid.New()
	vendorA := uuid.New()
	vendorB := uuid.New()
	chain := "BigBox"
	bestPrice := int64(398)
	bestVendor := "Hometown Lumber"

	stud := repo.Product{
		ID: studID, Name: "2x4x8' SPF Stud", Species: "spf", Grade: "stud",
		Treatment: "none", Category: "framing",
		NominalWidth: 2, NominalDepth: 4, LengthFt: 8, BoardFeet: 5.333,
	}
	cedar := repo.Product{
		ID: cedarID, Name: "2x6x10' Cedar", Species: "cedar", Grade: "select",
		Treatment: "none", Category: "decking",
		NominalWidth: 2, NominalDepth: 6, LengthFt: 10, BoardFeet: 10,
	}

	store := &fakeStore{
		products: map[uuid.UUID]repo.Product{studID: stud, cedarID: cedar},
		list: []repo.ProductWithPrice{
			{Product: stud, BestPriceCents: &bestPrice, BestVendorName: &bestVendor, ListingCount: 2},
			{Product: cedar},
		},
		vendors: []repo.Vendor{
			{ID: vendorA, Name: "Hometown Lumber"},
			{ID: vendorB, Name: "MegaMart", Chain: &chain},
		},
	}
	captured := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	listings := &fakeListings{
		active: map[uuid.UUID][]repo.ListingWithVendor{
			studID: {
				{
					Listing: repo.Listing{
						VendorID: vendorA, ProductID: studID,
						PriceCents: 398, PriceUnit: "piece", InStock: true,
						Confidence: 0.9, Source: "flyer", CapturedAt: captured,
					},
					VendorName: "Hometown Lumber",
				},
				{
					Listing: repo.Listing{
						VendorID: vendorB, ProductID: studID,
						PriceCents: 425, PriceUnit: "piece", InStock: false,
						Confidence: 0.8, Source: "web", CapturedAt: captured,
					},
					VendorName:  "MegaMart",
					VendorChain: &chain,
				},
			},
		},
		history: map[uuid.UUID][]repo.ListingWithVendor{
			studID: {
				{
					Listing:    repo.Listing{PriceCents: 450, InStock: true, CapturedAt: captured.AddDate(0, 0, -30)},
					VendorName: "Hometown Lumber",
				},
				{
					Listing:    repo.Listing{PriceCents: 398, InStock: true, CapturedAt: captured},
					VendorName: "Hometown Lumber",
				},
			},
		},
	}

	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        store,
		Listings:     listings,
		DefaultPage:  1,
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)

	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	t.Run("products list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=1", nil)
		rec := httptest.NewRecorder()
		handler.Products(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

		var resp productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "2x4x8' SPF Stud", resp.Data[0].Name)
		require.Equal(t, "2x4x8'", resp.Data[0].Dimension)
		require.NotNil(t, resp.Data[0].BestPriceCents)
		require.Equal(t, int64(398), *resp.Data[0].BestPriceCents)
		require.True(t, resp.Data[0].InStock)
		require.Equal(t, 1, resp.Pagination.Page)
		require.Equal(t, 1, resp.Pagination.PerPage)
		require.Equal(t, 2, resp.Pagination.TotalItems)
	})

	t.Run("products list rejects bad dimension", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?dimension=wide", nil)
		rec := httptest.NewRecorder()
		handler.Products(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("product detail", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+studID.String(), nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", studID.String())
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		handler.ProductDetail(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp productDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "2x4x8' SPF Stud", resp.Data.Name)
		require.Len(t, resp.Data.Listings, 2)
		require.NotNil(t, resp.Data.BestPriceCents)
		require.Equal(t, int64(398), *resp.Data.BestPriceCents)
		require.Equal(t, "Hometown Lumber", *resp.Data.BestVendor)
		require.Equal(t, "BigBox", resp.Data.Listings[1].VendorChain)
	})

	t.Run("product detail not found", func(t *testing.T) {
		missing := uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+missing, nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", missing)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		handler.ProductDetail(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("price history", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+studID.String()+"/history", nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", studID.String())
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		handler.PriceHistory(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp historyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
		require.Equal(t, int64(450), resp.Data[0].PriceCents)
		require.Equal(t, int64(398), resp.Data[1].PriceCents)
	})

	t.Run("vendors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vendors", nil)
		rec := httptest.NewRecorder()
		handler.Vendors(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp vendorsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
		require.Equal(t, "BigBox", resp.Data[1].Chain)
	})
}
