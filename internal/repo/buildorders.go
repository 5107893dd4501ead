package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BuildOrder is a saved shopping list of lumber plus the repricing snapshot
// from its last run.
type BuildOrder struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Name              string
	Notes             *string
	WasteFactor       float64
	ShareToken        *string
	LastRepriced      *time.Time
	SplitSavingsCents *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BuildOrderItem is one line of a build order.
type BuildOrderItem struct {
	ID           uuid.UUID
	BuildOrderID uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	Quantity     int
	CreatedAt    time.Time
}

// NewBuildOrderItem is the insert payload for one line.
type NewBuildOrderItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// BuildOrders provides build order persistence. Every user-scoped query
// filters by owner so one user can never read another's orders.
type BuildOrders struct {
	Pool *pgxpool.Pool
}

const buildOrderColumns = `b.id, b.user_id, b.name, b.notes, b.waste_factor, b.share_token,
	b.last_repriced, b.split_savings_cents, b.created_at, b.updated_at`

// Create inserts an order and its lines in one transaction.
func (r BuildOrders) Create(ctx context.Context, userID uuid.UUID, name string, notes *string, wasteFactor float64, items []NewBuildOrderItem) (BuildOrder, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return BuildOrder{}, fmt.Errorf("create build order: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertOrder = `
		INSERT INTO build_orders (user_id, name, notes, waste_factor)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, notes, waste_factor, share_token,
			last_repriced, split_savings_cents, created_at, updated_at`

	var b BuildOrder
	err = tx.QueryRow(ctx, insertOrder, userID, name, notes, wasteFactor).Scan(
		&b.ID, &b.UserID, &b.Name, &b.Notes, &b.WasteFactor, &b.ShareToken,
		&b.LastRepriced, &b.SplitSavingsCents, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return BuildOrder{}, fmt.Errorf("create build order: %w", err)
	}

	if err := insertItems(ctx, tx, b.ID, items); err != nil {
		return BuildOrder{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return BuildOrder{}, fmt.Errorf("create build order: %w", err)
	}
	return b, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []NewBuildOrderItem) error {
	const insertItem = `
		INSERT INTO build_order_items (build_order_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (build_order_id, product_id)
		DO UPDATE SET quantity = build_order_items.quantity + EXCLUDED.quantity`

	for _, it := range items {
		if _, err := tx.Exec(ctx, insertItem, orderID, it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("insert build order item: %w", err)
		}
	}
	return nil
}

// GetForUser fetches one order owned by the user.
func (r BuildOrders) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (BuildOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM build_orders b WHERE b.id = $1 AND b.user_id = $2`, buildOrderColumns)
	return r.scanOne(r.Pool.QueryRow(ctx, query, orderID, userID), "get build order")
}

// GetByShareToken fetches an order through its public share token.
func (r BuildOrders) GetByShareToken(ctx context.Context, token string) (BuildOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM build_orders b WHERE b.share_token = $1`, buildOrderColumns)
	return r.scanOne(r.Pool.QueryRow(ctx, query, token), "get build order by share token")
}

func (r BuildOrders) scanOne(row pgx.Row, op string) (BuildOrder, error) {
	var b BuildOrder
	err := row.Scan(
		&b.ID, &b.UserID, &b.Name, &b.Notes, &b.WasteFactor, &b.ShareToken,
		&b.LastRepriced, &b.SplitSavingsCents, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BuildOrder{}, ErrNotFound
		}
		return BuildOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// ListForUser returns the user's orders, most recently updated first.
func (r BuildOrders) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]BuildOrder, int64, error) {
	var total int64
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM build_orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count build orders: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM build_orders b
		WHERE b.user_id = $1
		ORDER BY b.updated_at DESC, b.id
		LIMIT $2 OFFSET $3`, buildOrderColumns)

	rows, err := r.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list build orders: %w", err)
	}
	defer rows.Close()

	var out []BuildOrder
	for rows.Next() {
		var b BuildOrder
		err := rows.Scan(
			&b.ID, &b.UserID, &b.Name, &b.Notes, &b.WasteFactor, &b.ShareToken,
			&b.LastRepriced, &b.SplitSavingsCents, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan build order: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list build orders: %w", err)
	}
	return out, total, nil
}

// Update renames an order, replaces its notes and waste factor, and swaps the
// full line set when items is non-nil.
func (r BuildOrders) Update(ctx context.Context, userID, orderID uuid.UUID, name string, notes *string, wasteFactor float64, items []NewBuildOrderItem) (BuildOrder, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return BuildOrder{}, fmt.Errorf("update build order: %w", err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE build_orders
		SET name = $3, notes = $4, waste_factor = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, notes, waste_factor, share_token,
			last_repriced, split_savings_cents, created_at, updated_at`

	var b BuildOrder
	err = tx.QueryRow(ctx, update, orderID, userID, name, notes, wasteFactor).Scan(
		&b.ID, &b.UserID, &b.Name, &b.Notes, &b.WasteFactor, &b.ShareToken,
		&b.LastRepriced, &b.SplitSavingsCents, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BuildOrder{}, ErrNotFound
		}
		return BuildOrder{}, fmt.Errorf("update build order: %w", err)
	}

	if items != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM build_order_items WHERE build_order_id = $1`, orderID); err != nil {
			return BuildOrder{}, fmt.Errorf("clear build order items: %w", err)
		}
		if err := insertItems(ctx, tx, orderID, items); err != nil {
			return BuildOrder{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return BuildOrder{}, fmt.Errorf("update build order: %w", err)
	}
	return b, nil
}

// Delete removes an order owned by the user; its lines go with it via cascade.
func (r BuildOrders) Delete(ctx context.Context, userID, orderID uuid.UUID) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM build_orders WHERE id = $1 AND user_id = $2`, orderID, userID)
	if err != nil {
		return fmt.Errorf("delete build order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Items returns the lines of an order joined with product names.
func (r BuildOrders) Items(ctx context.Context, orderID uuid.UUID) ([]BuildOrderItem, error) {
	const query = `
		SELECT i.id, i.build_order_id, i.product_id, p.name, i.quantity, i.created_at
		FROM build_order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.build_order_id = $1
		ORDER BY i.created_at ASC, i.id`

	rows, err := r.Pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list build order items: %w", err)
	}
	defer rows.Close()

	var out []BuildOrderItem
	for rows.Next() {
		var it BuildOrderItem
		if err := rows.Scan(&it.ID, &it.BuildOrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan build order item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list build order items: %w", err)
	}
	return out, nil
}

// SetShareToken publishes or revokes the order's share token. A nil token
// disables sharing.
func (r BuildOrders) SetShareToken(ctx context.Context, userID, orderID uuid.UUID, token *string) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE build_orders SET share_token = $3, updated_at = now() WHERE id = $1 AND user_id = $2`,
		orderID, userID, token)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("set share token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchRepriced records the savings snapshot from a repricing run.
func (r BuildOrders) TouchRepriced(ctx context.Context, orderID uuid.UUID, splitSavingsCents int64, at time.Time) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE build_orders SET split_savings_cents = $2, last_repriced = $3 WHERE id = $1`,
		orderID, splitSavingsCents, at)
	if err != nil {
		return fmt.Errorf("touch repriced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// StaleRepricedIDs returns orders whose snapshot is older than the cutoff or
// missing entirely. The worker refreshes these in the background.
func (r BuildOrders) StaleRepricedIDs(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	const query = `
		SELECT id FROM build_orders
		WHERE last_repriced IS NULL OR last_repriced < $1
		ORDER BY last_repriced ASC NULLS FIRST
		LIMIT $2`

	rows, err := r.Pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("stale repriced ids: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan build order id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stale repriced ids: %w", err)
	}
	return out, nil
}

// Get fetches one order without an ownership check. Worker use only.
func (r BuildOrders) Get(ctx context.Context, orderID uuid.UUID) (BuildOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM build_orders b WHERE b.id = $1`, buildOrderColumns)
	return r.scanOne(r.Pool.QueryRow(ctx, query, orderID), "get build order")
}
