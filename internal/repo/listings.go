package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Listing is one observed price at one vendor.
type Listing struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	VendorID        uuid.UUID
	PriceCents      int64
	PriceUnit       string
	PricePerBFCents *int64
	InStock         bool
	Confidence      float64
	Source          string
	SubmittedBy     *uuid.UUID
	Notes           *string
	CapturedAt      time.Time
	ExpiresAt       *time.Time
}

// ListingWithVendor joins the vendor identity onto a listing for display and
// repricing.
type ListingWithVendor struct {
	Listing
	VendorName  string
	VendorChain *string
}

// NewListing is the insert payload for a price submission.
type NewListing struct {
	ProductID       uuid.UUID
	VendorID        uuid.UUID
	PriceCents      int64
	PriceUnit       string
	PricePerBFCents *int64
	InStock         bool
	Confidence      float64
	Source          string
	SubmittedBy     *uuid.UUID
	Notes           *string
	ExpiresAt       *time.Time
}

// Listings provides price observation persistence.
type Listings struct {
	Pool *pgxpool.Pool
}

// Insert stores a new price observation.
func (r Listings) Insert(ctx context.Context, n NewListing) (Listing, error) {
	const query = `
		INSERT INTO listings
			(product_id, vendor_id, price_cents, price_unit, price_per_bf_cents,
			 in_stock, confidence, source, submitted_by, notes, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, product_id, vendor_id, price_cents, price_unit, price_per_bf_cents,
			in_stock, confidence, source, submitted_by, notes, captured_at, expires_at`

	var l Listing
	err := r.Pool.QueryRow(ctx, query,
		n.ProductID, n.VendorID, n.PriceCents, n.PriceUnit, n.PricePerBFCents,
		n.InStock, n.Confidence, n.Source, n.SubmittedBy, n.Notes, n.ExpiresAt,
	).Scan(
		&l.ID, &l.ProductID, &l.VendorID, &l.PriceCents, &l.PriceUnit, &l.PricePerBFCents,
		&l.InStock, &l.Confidence, &l.Source, &l.SubmittedBy, &l.Notes, &l.CapturedAt, &l.ExpiresAt,
	)
	if err != nil {
		return Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	return l, nil
}

const listingWithVendorColumns = `l.id, l.product_id, l.vendor_id, l.price_cents, l.price_unit,
	l.price_per_bf_cents, l.in_stock, l.confidence, l.source, l.submitted_by, l.notes,
	l.captured_at, l.expires_at, v.name, v.chain`

// ActiveForProduct returns the freshest active listing per vendor for one
// product, cheapest first.
func (r Listings) ActiveForProduct(ctx context.Context, productID uuid.UUID) ([]ListingWithVendor, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM (
			SELECT DISTINCT ON (vendor_id) *
			FROM listings
			WHERE product_id = $1
			  AND (expires_at IS NULL OR expires_at > now())
			ORDER BY vendor_id, captured_at DESC, id
		) l
		JOIN vendors v ON v.id = l.vendor_id
		ORDER BY l.price_cents ASC, v.name ASC`, listingWithVendorColumns)

	return r.queryListings(ctx, query, "active listings for product", productID)
}

// ActiveForProducts returns the active snapshot across a set of products,
// newest observation first within each product. The ordering fixes which
// listing wins when a vendor has several rows for the same product.
func (r Listings) ActiveForProducts(ctx context.Context, productIDs []uuid.UUID) ([]ListingWithVendor, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM listings l
		JOIN vendors v ON v.id = l.vendor_id
		WHERE l.product_id = ANY($1)
		  AND (l.expires_at IS NULL OR l.expires_at > now())
		ORDER BY v.name ASC, l.captured_at DESC, l.id`, listingWithVendorColumns)

	return r.queryListings(ctx, query, "active listings for products", productIDs)
}

// PriceHistory returns observations for a product captured after the cutoff,
// oldest first.
func (r Listings) PriceHistory(ctx context.Context, productID uuid.UUID, since time.Time) ([]ListingWithVendor, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM listings l
		JOIN vendors v ON v.id = l.vendor_id
		WHERE l.product_id = $1 AND l.captured_at >= $2
		ORDER BY l.captured_at ASC, l.id`, listingWithVendorColumns)

	return r.queryListings(ctx, query, "price history", productID, since)
}

// RecentByUser counts submissions by a user within the window. Backs the
// submission quota.
func (r Listings) RecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	const query = `SELECT count(*) FROM listings WHERE submitted_by = $1 AND captured_at >= $2`

	var n int64
	if err := r.Pool.QueryRow(ctx, query, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recent listings: %w", err)
	}
	return n, nil
}

// DeleteExpired removes listings whose expiry has passed and reports how many
// rows went away.
func (r Listings) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM listings WHERE expires_at IS NOT NULL AND expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r Listings) queryListings(ctx context.Context, query, op string, args ...any) ([]ListingWithVendor, error) {
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []ListingWithVendor
	for rows.Next() {
		var l ListingWithVendor
		err := rows.Scan(
			&l.ID, &l.ProductID, &l.VendorID, &l.PriceCents, &l.PriceUnit,
			&l.PricePerBFCents, &l.InStock, &l.Confidence, &l.Source, &l.SubmittedBy,
			&l.Notes, &l.CapturedAt, &l.ExpiresAt, &l.VendorName, &l.VendorChain,
		)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
