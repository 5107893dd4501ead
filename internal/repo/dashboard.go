package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserCounts aggregates a user's footprint for the dashboard.
type UserCounts struct {
	BuildOrders int64
	Favorites   int64
	Submissions int64
}

// MarketCounts aggregates the catalog for the dashboard.
type MarketCounts struct {
	Products       int64
	Vendors        int64
	ActiveListings int64
}

// SpeciesPrice is the average active per-board-foot price for one species.
type SpeciesPrice struct {
	Species        string
	AvgPerBFCents  int64
	ActiveListings int64
}

// Dashboard provides the aggregate queries behind the dashboard endpoints.
type Dashboard struct {
	Pool *pgxpool.Pool
}

// UserCounts returns the user's build order, favorite and submission totals.
func (r Dashboard) UserCounts(ctx context.Context, userID uuid.UUID) (UserCounts, error) {
	const query = `
		SELECT
			(SELECT count(*) FROM build_orders WHERE user_id = $1),
			(SELECT count(*) FROM favorites WHERE user_id = $1),
			(SELECT count(*) FROM listings WHERE submitted_by = $1)`

	var c UserCounts
	if err := r.Pool.QueryRow(ctx, query, userID).Scan(&c.BuildOrders, &c.Favorites, &c.Submissions); err != nil {
		return UserCounts{}, fmt.Errorf("user counts: %w", err)
	}
	return c, nil
}

// MarketCounts returns catalog-wide totals.
func (r Dashboard) MarketCounts(ctx context.Context) (MarketCounts, error) {
	const query = `
		SELECT
			(SELECT count(*) FROM products),
			(SELECT count(*) FROM vendors),
			(SELECT count(*) FROM listings WHERE expires_at IS NULL OR expires_at > now())`

	var c MarketCounts
	if err := r.Pool.QueryRow(ctx, query).Scan(&c.Products, &c.Vendors, &c.ActiveListings); err != nil {
		return MarketCounts{}, fmt.Errorf("market counts: %w", err)
	}
	return c, nil
}

// SpeciesPrices returns the average active per-board-foot price grouped by
// species, cheapest first.
func (r Dashboard) SpeciesPrices(ctx context.Context) ([]SpeciesPrice, error) {
	const query = `
		SELECT p.species,
		       round(avg(l.price_cents / NULLIF(p.board_feet, 0)))::bigint,
		       count(*)
		FROM listings l
		JOIN products p ON p.id = l.product_id
		WHERE l.in_stock AND (l.expires_at IS NULL OR l.expires_at > now())
		  AND p.board_feet > 0
		GROUP BY p.species
		ORDER BY 2 ASC`

	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("species prices: %w", err)
	}
	defer rows.Close()

	var out []SpeciesPrice
	for rows.Next() {
		var s SpeciesPrice
		if err := rows.Scan(&s.Species, &s.AvgPerBFCents, &s.ActiveListings); err != nil {
			return nil, fmt.Errorf("scan species price: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("species prices: %w", err)
	}
	return out, nil
}

// RecentCaptures returns the newest price observations across the market.
func (r Dashboard) RecentCaptures(ctx context.Context, since time.Time, limit int) ([]ListingWithVendor, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM listings l
		JOIN vendors v ON v.id = l.vendor_id
		WHERE l.captured_at >= $1
		ORDER BY l.captured_at DESC, l.id
		LIMIT $2`, listingWithVendorColumns)

	return Listings{Pool: r.Pool}.queryListings(ctx, query, "recent captures", since, limit)
}
