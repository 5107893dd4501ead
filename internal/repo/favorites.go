package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Favorite marks a product a user watches.
type Favorite struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	CreatedAt time.Time
}

// Favorites provides watchlist persistence.
type Favorites struct {
	Pool *pgxpool.Pool
}

// Add marks a product as favorite. Adding twice is a no-op.
func (r Favorites) Add(ctx context.Context, userID, productID uuid.UUID) error {
	const query = `
		INSERT INTO favorites (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, query, userID, productID); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// Remove unmarks a product. Removing an absent favorite is a no-op.
func (r Favorites) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	if _, err := r.Pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`, userID, productID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// Exists reports whether the user favorited the product.
func (r Favorites) Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND product_id = $2)`

	var ok bool
	if err := r.Pool.QueryRow(ctx, query, userID, productID).Scan(&ok); err != nil {
		return false, fmt.Errorf("favorite exists: %w", err)
	}
	return ok, nil
}

// ListProducts returns the user's favorited products joined with their
// cheapest active listing, newest favorite first.
func (r Favorites) ListProducts(ctx context.Context, userID uuid.UUID) ([]ProductWithPrice, error) {
	query := fmt.Sprintf(`
		SELECT %s, best.best_price, best.vendor_name, best.listing_count
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		LEFT JOIN LATERAL (
			SELECT l.price_cents AS best_price, v.name AS vendor_name,
			       count(*) OVER () AS listing_count
			FROM listings l
			JOIN vendors v ON v.id = l.vendor_id
			WHERE l.product_id = p.id AND l.in_stock
			  AND (l.expires_at IS NULL OR l.expires_at > now())
			ORDER BY l.price_cents ASC
			LIMIT 1
		) best ON true
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, p.id`, productColumns)

	rows, err := r.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var out []ProductWithPrice
	for rows.Next() {
		var p ProductWithPrice
		var listingCount *int
		err := rows.Scan(
			&p.ID, &p.Name, &p.Species, &p.Grade, &p.Treatment, &p.Category,
			&p.NominalWidth, &p.NominalDepth, &p.LengthFt, &p.BoardFeet, &p.CreatedAt,
			&p.BestPriceCents, &p.BestVendorName, &listingCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		if listingCount != nil {
			p.ListingCount = *listingCount
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return out, nil
}
