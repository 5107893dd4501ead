package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Product is a catalog row describing one stick of dimensional lumber.
type Product struct {
	ID           uuid.UUID
	Name         string
	Species      string
	Grade        string
	Treatment    string
	Category     string
	NominalWidth int
	NominalDepth int
	LengthFt     int
	BoardFeet    float64
	CreatedAt    time.Time
}

// Vendor is a store that carries listings.
type Vendor struct {
	ID        uuid.UUID
	Name      string
	Chain     *string
	Address   *string
	City      *string
	State     *string
	ZipCode   *string
	CreatedAt time.Time
}

// ProductFilter narrows a catalog listing query. Zero values mean "no
// constraint"; MinPriceCents/MaxPriceCents apply to the cheapest active
// listing.
type ProductFilter struct {
	Search        string
	Species       string
	Grade         string
	Treatment     string
	Category      string
	NominalWidth  int
	NominalDepth  int
	LengthFt      int
	MinPriceCents int64
	MaxPriceCents int64
	InStockOnly   bool
	Sort          string
	Limit         int
	Offset        int
}

// ProductWithPrice pairs a product with its cheapest active listing, when one
// exists.
type ProductWithPrice struct {
	Product
	BestPriceCents *int64
	BestVendorName *string
	ListingCount   int
}

// Products provides catalog persistence.
type Products struct {
	Pool *pgxpool.Pool
}

const productColumns = `p.id, p.name, p.species, p.grade, p.treatment, p.category,
	p.nominal_width, p.nominal_depth, p.length_ft, p.board_feet, p.created_at`

// List returns a filtered page of products joined with their cheapest active
// in-stock listing, plus the total row count for the same filter.
func (r Products) List(ctx context.Context, f ProductFilter) ([]ProductWithPrice, int64, error) {
	where, args := buildProductWhere(f)

	countQuery := `
		SELECT count(*)
		FROM products p
		LEFT JOIN LATERAL (
			SELECT min(l.price_cents) AS best_price
			FROM listings l
			WHERE l.product_id = p.id AND l.in_stock
			  AND (l.expires_at IS NULL OR l.expires_at > now())
		) best ON true` + where

	var total int64
	if err := r.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	order := productOrder(f.Sort)
	args = append(args, f.Limit, f.Offset)
	listQuery := fmt.Sprintf(`
		SELECT %s, best.best_price, best.vendor_name, best.listing_count
		FROM products p
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
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		productColumns, where, order, len(args)-1, len(args))

	rows, err := r.Pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
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
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		if listingCount != nil {
			p.ListingCount = *listingCount
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return out, total, nil
}

func buildProductWhere(f ProductFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Search != "" {
		add("p.name ILIKE '%%' || $%d || '%%'", f.Search)
	}
	if f.Species != "" {
		add("p.species = $%d", f.Species)
	}
	if f.Grade != "" {
		add("p.grade = $%d", f.Grade)
	}
	if f.Treatment != "" {
		add("p.treatment = $%d", f.Treatment)
	}
	if f.Category != "" {
		add("p.category = $%d", f.Category)
	}
	if f.NominalWidth > 0 {
		add("p.nominal_width = $%d", f.NominalWidth)
	}
	if f.NominalDepth > 0 {
		add("p.nominal_depth = $%d", f.NominalDepth)
	}
	if f.LengthFt > 0 {
		add("p.length_ft = $%d", f.LengthFt)
	}
	if f.MinPriceCents > 0 {
		add("best.best_price >= $%d", f.MinPriceCents)
	}
	if f.MaxPriceCents > 0 {
		add("best.best_price <= $%d", f.MaxPriceCents)
	}
	if f.InStockOnly {
		conds = append(conds, "best.best_price IS NOT NULL")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func productOrder(sort string) string {
	switch sort {
	case "price_asc":
		return "best.best_price ASC NULLS LAST, p.name ASC"
	case "price_desc":
		return "best.best_price DESC NULLS LAST, p.name ASC"
	case "newest":
		return "p.created_at DESC, p.name ASC"
	default:
		return "p.name ASC"
	}
}

// Get fetches one product by id.
func (r Products) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE p.id = $1`, productColumns)

	var p Product
	err := r.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Species, &p.Grade, &p.Treatment, &p.Category,
		&p.NominalWidth, &p.NominalDepth, &p.LengthFt, &p.BoardFeet, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetByIDs fetches products in bulk. Missing ids are simply absent from the
// result.
func (r Products) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE p.id = ANY($1)`, productColumns)

	rows, err := r.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		err := rows.Scan(
			&p.ID, &p.Name, &p.Species, &p.Grade, &p.Treatment, &p.Category,
			&p.NominalWidth, &p.NominalDepth, &p.LengthFt, &p.BoardFeet, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	return out, nil
}

// ListVendors returns every vendor ordered by name.
func (r Products) ListVendors(ctx context.Context) ([]Vendor, error) {
	const query = `
		SELECT id, name, chain, address, city, state, zip_code, created_at
		FROM vendors ORDER BY name ASC`

	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Chain, &v.Address, &v.City, &v.State, &v.ZipCode, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	return out, nil
}

// GetVendor fetches one vendor by id.
func (r Products) GetVendor(ctx context.Context, id uuid.UUID) (Vendor, error) {
	const query = `
		SELECT id, name, chain, address, city, state, zip_code, created_at
		FROM vendors WHERE id = $1`

	var v Vendor
	err := r.Pool.QueryRow(ctx, query, id).Scan(&v.ID, &v.Name, &v.Chain, &v.Address, &v.City, &v.State, &v.ZipCode, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, ErrNotFound
		}
		return Vendor{}, fmt.Errorf("get vendor: %w", err)
	}
	return v, nil
}
