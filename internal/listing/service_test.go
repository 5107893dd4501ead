package listing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lumberlens/backend-lumber/internal/listing"
	"github.com/lumberlens/backend-lumber/internal/repo"
)

type fakeListingStore struct {
	inserted []repo.NewListing
}

func (f *fakeListingStore) Insert(_ context.Context, n repo.NewListing) (repo.Listing, error) {
	f.inserted = append(f.inserted, n)
	l := repo.Listing{
		ID:              uuid.New(),
		ProductID:       n.ProductID,
		VendorID:        n.VendorID,
		PriceCents:      n.PriceCents,
		PriceUnit:       n.PriceUnit,
		PricePerBFCents: n.PricePerBFCents,
		InStock:         n.InStock,
		Confidence:      n.Confidence,
		Source:          n.Source,
		SubmittedBy:     n.SubmittedBy,
		Notes:           n.Notes,
		CapturedAt:      time.Now(),
		ExpiresAt:       n.ExpiresAt,
	}
	return l, nil
}

type fakeCatalog struct {
	product repo.Product
	vendor  repo.Vendor
}

func (f *fakeCatalog) Get(_ context.Context, id uuid.UUID) (repo.Product, error) {
	if id != f.product.ID {
		return repo.Product{}, repo.ErrNotFound
	}
	return f.product, nil
}

func (f *fakeCatalog) GetVendor(_ context.Context, id uuid.UUID) (repo.Vendor, error) {
	if id != f.vendor.ID {
		return repo.Vendor{}, repo.ErrNotFound
	}
	return f.vendor, nil
}

type fakeQuota struct {
	allowed bool
	err     error
	calls   int
}

func (f *fakeQuota) Allow(context.Context, string, time.Duration, int) (bool, int, time.Time, error) {
	f.calls++
	return f.allowed, 0, time.Now().Add(time.Hour), f.err
}

func newTestService(t *testing.T, store *fakeListingStore, cat *fakeCatalog, quota *fakeQuota) *listing.Service {
	t.Helper()
	svc, err := listing.NewService(listing.Config{
		Store:       store,
		Catalog:     cat,
		Quota:       quota,
		Expiry:      14 * 24 * time.Hour,
		Confidence:  0.5,
		QuotaPerDay: 20,
	})
	require.NoError(t, err)
	return svc
}

func TestSubmitStoresNormalizedListing(t *testing.T) {
	store := &fakeListingStore{}
	cat := &fakeCatalog{
		product: repo.Product{ID: uuid.New(), Name: "2x4x8' SPF Stud", BoardFeet: 5.333},
		vendor:  repo.Vendor{ID: uuid.New(), Name: "Hometown Lumber"},
	}
	quota := &fakeQuota{allowed: true}
	svc := newTestService(t, store, cat, quota)

	fixed := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })

	userID := uuid.New()
	result, err := svc.Submit(context.Background(), userID.String(), listing.Submission{
		ProductID:  cat.product.ID.String(),
		VendorID:   cat.vendor.ID.String(),
		PriceCents: 398,
		Notes:      "end cap sale",
	})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	stored := store.inserted[0]
	require.Equal(t, int64(398), stored.PriceCents)
	require.Equal(t, "piece", stored.PriceUnit)
	require.Equal(t, listing.SourceUser, stored.Source)
	require.Equal(t, 0.5, stored.Confidence)
	require.True(t, stored.InStock)
	require.NotNil(t, stored.SubmittedBy)
	require.Equal(t, userID, *stored.SubmittedBy)
	require.NotNil(t, stored.ExpiresAt)
	require.Equal(t, fixed.Add(14*24*time.Hour), *stored.ExpiresAt)
	require.NotNil(t, stored.PricePerBFCents)
	require.Equal(t, int64(75), *stored.PricePerBFCents)

	require.Equal(t, listing.SourceUser, result.Source)
	require.Equal(t, 1, quota.calls)
}

func TestSubmitConvertsBoardFootPricing(t *testing.T) {
	store := &fakeListingStore{}
	cat := &fakeCatalog{
		product: repo.Product{ID: uuid.New(), Name: "2x6x10' Cedar", BoardFeet: 10},
		vendor:  repo.Vendor{ID: uuid.New(), Name: "Hometown Lumber"},
	}
	svc := newTestService(t, store, cat, &fakeQuota{allowed: true})

	_, err := svc.Submit(context.Background(), uuid.New().String(), listing.Submission{
		ProductID:  cat.product.ID.String(),
		VendorID:   cat.vendor.ID.String(),
		PriceCents: 120,
		PriceUnit:  "board_foot",
	})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	require.Equal(t, int64(1200), store.inserted[0].PriceCents)
	require.Equal(t, "piece", store.inserted[0].PriceUnit)
}

func TestSubmitValidation(t *testing.T) {
	store := &fakeListingStore{}
	cat := &fakeCatalog{
		product: repo.Product{ID: uuid.New()},
		vendor:  repo.Vendor{ID: uuid.New()},
	}
	svc := newTestService(t, store, cat, &fakeQuota{allowed: true})

	tests := []struct {
		name string
		sub  listing.Submission
	}{
		{
			name: "missing product",
			sub:  listing.Submission{VendorID: cat.vendor.ID.String(), PriceCents: 100},
		},
		{
			name: "zero price",
			sub:  listing.Submission{ProductID: cat.product.ID.String(), VendorID: cat.vendor.ID.String()},
		},
		{
			name: "bad unit",
			sub: listing.Submission{
				ProductID: cat.product.ID.String(), VendorID: cat.vendor.ID.String(),
				PriceCents: 100, PriceUnit: "bundle",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), uuid.New().String(), tt.sub)
			require.Error(t, err)
			require.Empty(t, store.inserted)
		})
	}
}

func TestSubmitQuotaExceeded(t *testing.T) {
	store := &fakeListingStore{}
	cat := &fakeCatalog{
		product: repo.Product{ID: uuid.New(), BoardFeet: 5.333},
		vendor:  repo.Vendor{ID: uuid.New()},
	}
	svc := newTestService(t, store, cat, &fakeQuota{allowed: false})

	_, err := svc.Submit(context.Background(), uuid.New().String(), listing.Submission{
		ProductID:  cat.product.ID.String(),
		VendorID:   cat.vendor.ID.String(),
		PriceCents: 398,
	})
	require.Error(t, err)
	require.Empty(t, store.inserted)
}

func TestSubmitFailsOpenOnQuotaBackendError(t *testing.T) {
	store := &fakeListingStore{}
	cat := &fakeCatalog{
		product: repo.Product{ID: uuid.New(), BoardFeet: 5.333},
		vendor:  repo.Vendor{ID: uuid.New()},
	}
	quotaErr := errors.New("redis down")
	var reported []error
	svc, err := listing.NewService(listing.Config{
		Store:        store,
		Catalog:      cat,
		Quota:        &fakeQuota{allowed: false, err: quotaErr},
		OnQuotaError: func(err error) { reported = append(reported, err) },
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), uuid.New().String(), listing.Submission{
		ProductID:  cat.product.ID.String(),
		VendorID:   cat.vendor.ID.String(),
		PriceCents: 398,
	})
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
	require.Equal(t, []error{quotaErr}, reported)
}

func TestSubmitUnknownVendor(t *testing.T) {
	store := &fakeListingStore{}
	cat := &fakeCatalog{
		product: repo.Product{ID: uuid.New(), BoardFeet: 5.333},
		vendor:  repo.Vendor{ID: uuid.New()},
	}
	svc := newTestService(t, store, cat, &fakeQuota{allowed: true})

	_, err := svc.Submit(context.Background(), uuid.New().String(), listing.Submission{
		ProductID:  cat.product.ID.String(),
		VendorID:   uuid.New().String(),
		PriceCents: 398,
	})
	require.Error(t, err)
	require.Empty(t, store.inserted)
}
