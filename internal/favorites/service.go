// Package favorites lets users pin products they want to track.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lumberlens/backend-lumber/internal/catalog"
	"github.com/lumberlens/backend-lumber/internal/common"
	"github.com/lumberlens/backend-lumber/internal/repo"
)

// Store defines the favorites persistence the service needs.
type Store interface {
	Add(ctx context.Context, userID, productID uuid.UUID) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	ListProducts(ctx context.Context, userID uuid.UUID) ([]repo.ProductWithPrice, error)
}

// ProductStore resolves products before they are pinned.
type ProductStore interface {
	Get(ctx context.Context, id uuid.UUID) (repo.Product, error)
}

// Service coordinates favorite toggling and listing.
type Service struct {
	store    Store
	products ProductStore
}

// NewService constructs a Service.
func NewService(store Store, products ProductStore) (*Service, error) {
	if store == nil {
		return nil, errors.New("favorites: store is required")
	}
	if products == nil {
		return nil, errors.New("favorites: product store is required")
	}
	return &Service{store: store, products: products}, nil
}

// List returns the user's pinned products, most recently pinned first.
func (s *Service) List(ctx context.Context, rawUserID string) ([]catalog.ProductListItem, error) {
	userID, err := parseUser(rawUserID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListProducts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	items := make([]catalog.ProductListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, catalog.ListItemFromRow(row))
	}
	return items, nil
}

// Toggle flips the favorite state for a product and reports the new state.
func (s *Service) Toggle(ctx context.Context, rawUserID, rawProductID string) (bool, error) {
	userID, err := parseUser(rawUserID)
	if err != nil {
		return false, err
	}
	productID, err := parseProduct(rawProductID)
	if err != nil {
		return false, err
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return false, fmt.Errorf("resolve product: %w", err)
	}

	exists, err := s.store.Exists(ctx, userID, productID)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	if exists {
		if err := s.store.Remove(ctx, userID, productID); err != nil {
			return false, fmt.Errorf("remove favorite: %w", err)
		}
		return false, nil
	}
	if err := s.store.Add(ctx, userID, productID); err != nil {
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return true, nil
}

// Check reports whether the user has pinned the product.
func (s *Service) Check(ctx context.Context, rawUserID, rawProductID string) (bool, error) {
	userID, err := parseUser(rawUserID)
	if err != nil {
		return false, err
	}
	productID, err := parseProduct(rawProductID)
	if err != nil {
		return false, err
	}
	exists, err := s.store.Exists(ctx, userID, productID)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return exists, nil
}

func parseUser(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	return id, nil
}

func parseProduct(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, common.NewAppError("VALIDATION_ERROR", "invalid product id", http.StatusBadRequest, err)
	}
	return id, nil
}
