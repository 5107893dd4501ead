package favorites_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lumberlens/backend-lumber/internal/common"
	"github.com/lumberlens/backend-lumber/internal/favorites"
	"github.com/lumberlens/backend-lumber/internal/repo"
)

type favKey struct {
	user, product uuid.UUID
}

type fakeStore struct {
	pins    map[favKey]struct{}
	rows    []repo.ProductWithPrice
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{pins: make(map[favKey]struct{})}
}

func (f *fakeStore) Add(_ context.Context, userID, productID uuid.UUID) error {
	f.pins[favKey{userID, productID}] = struct{}{}
	return nil
}

func (f *fakeStore) Remove(_ context.Context, userID, productID uuid.UUID) error {
	delete(f.pins, favKey{userID, productID})
	return nil
}

func (f *fakeStore) Exists(_ context.Context, userID, productID uuid.UUID) (bool, error) {
	_, ok := f.pins[favKey{userID, productID}]
	return ok, nil
}

func (f *fakeStore) ListProducts(_ context.Context, _ uuid.UUID) ([]repo.ProductWithPrice, error) {
	return f.rows, f.listErr
}

type fakeProducts struct {
	known map[uuid.UUID]repo.Product
}

func (f *fakeProducts) Get(_ context.Context, id uuid.UUID) (repo.Product, error) {
	p, ok := f.known[id]
	if !ok {
		return repo.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func TestToggleFlipsState(t *testing.T) {
	store := newFakeStore()
	productID := uuid.New()
	products := &fakeProducts{known: map[uuid.UUID]repo.Product{
		productID: {ID: productID, Name: "2x4x8' SPF"},
	}}
	svc, err := favorites.NewService(store, products)
	require.NoError(t, err)

	ctx := context.Background()
	userID := uuid.NewString()

	favorited, err := svc.Toggle(ctx, userID, productID.String())
	require.NoError(t, err)
	require.True(t, favorited)

	exists, err := svc.Check(ctx, userID, productID.String())
	require.NoError(t, err)
	require.True(t, exists)

	favorited, err = svc.Toggle(ctx, userID, productID.String())
	require.NoError(t, err)
	require.False(t, favorited)

	exists, err = svc.Check(ctx, userID, productID.String())
	require.NoError(t, err)
	require.False(t, exists)
}

func TestToggleUnknownProduct(t *testing.T) {
	svc, err := favorites.NewService(newFakeStore(), &fakeProducts{known: map[uuid.UUID]repo.Product{}})
	require.NoError(t, err)

	_, err = svc.Toggle(context.Background(), uuid.NewString(), uuid.NewString())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestToggleInvalidProductID(t *testing.T) {
	svc, err := favorites.NewService(newFakeStore(), &fakeProducts{known: map[uuid.UUID]repo.Product{}})
	require.NoError(t, err)

	_, err = svc.Toggle(context.Background(), uuid.NewString(), "not-a-uuid")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestListConvertsRows(t *testing.T) {
	store := newFakeStore()
	best := int64(398)
	vendor := "Hometown Lumber"
	store.rows = []repo.ProductWithPrice{
		{
			Product: repo.Product{
				ID:           uuid.New(),
				Name:         "2x4x8' SPF",
				Species:      "spf",
				NominalWidth: 2,
				NominalDepth: 4,
				LengthFt:     8,
				BoardFeet:    5.33,
			},
			BestPriceCents: &best,
			BestVendorName: &vendor,
			ListingCount:   3,
		},
	}
	svc, err := favorites.NewService(store, &fakeProducts{known: map[uuid.UUID]repo.Product{}})
	require.NoError(t, err)

	items, err := svc.List(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "2x4x8' SPF", items[0].Name)
	require.True(t, items[0].InStock)
	require.NotNil(t, items[0].BestPriceCents)
	require.Equal(t, int64(398), *items[0].BestPriceCents)
	require.NotNil(t, items[0].BestVendor)
	require.Equal(t, "Hometown Lumber", *items[0].BestVendor)
}
