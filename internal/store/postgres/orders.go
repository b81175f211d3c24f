package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

// Expected column order: id, user_id, order_type, design_subtype,
// tracking_code, carrier, total_cost, order_status, payment_status,
// result_url, admin_note, warning, label_id, paid_at, created_at, updated_at
const selectOrderColumns = `
	id, user_id, order_type, design_subtype, tracking_code, carrier, total_cost,
	order_status, payment_status, result_url, admin_note, warning, label_id,
	paid_at, created_at, updated_at
`

func scanOrder(s scanner) (*order.Order, error) {
	var (
		o                        order.Order
		typ, status, payment     string
		subtype, code, carrier   sql.NullString
		resultURL, note, warning sql.NullString
		labelID                  *uuid.UUID
		paidAt                   sql.NullTime
	)

	if err := s.Scan(
		&o.ID, &o.UserID, &typ, &subtype, &code, &carrier, &o.TotalCost,
		&status, &payment, &resultURL, &note, &warning, &labelID,
		&paidAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	kind, err := order.KindOf(order.Type(typ), order.DesignSubtype(subtype.String))
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}

	o.Kind = kind
	o.TrackingCode = code.String
	o.Carrier = carrier.String
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(payment)
	o.ResultURL = resultURL.String
	o.AdminNote = note.String
	o.Warning = warning.String
	o.LabelID = labelID

	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}

	return &o, nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query := `SELECT ` + selectOrderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrNotFound
		}

		return nil, fmt.Errorf("getting order: %w", err)
	}

	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, filter order.ListFilter) ([]*order.Order, error) {
	query := `SELECT ` + selectOrderColumns + ` FROM orders WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)

		args = append(args, *filter.UserID)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND order_status = $%d", argIdx)

		args = append(args, string(*filter.Status))
		argIdx++
	}

	if filter.PaymentStatus != nil {
		query += fmt.Sprintf(" AND payment_status = $%d", argIdx)

		args = append(args, string(*filter.PaymentStatus))
		argIdx++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]*order.Order, error) {
	var orders []*order.Order

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}

		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// Order transaction

func (t *tx) InsertOrder(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO orders (
			user_id, order_type, design_subtype, tracking_code, carrier, total_cost,
			order_status, payment_status, result_url, admin_note, warning, label_id,
			paid_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		o.UserID,
		string(o.Kind.Type()),
		nullString(string(order.SubtypeOf(o.Kind))),
		nullString(o.TrackingCode),
		nullString(o.Carrier),
		o.TotalCost,
		string(o.Status),
		string(o.PaymentStatus),
		nullString(o.ResultURL),
		nullString(o.AdminNote),
		nullString(o.Warning),
		o.LabelID,
		o.PaidAt,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting order: %w", translate(err))
	}

	return nil
}

func (t *tx) LockOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query := `SELECT ` + selectOrderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	o, err := scanOrder(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrNotFound
		}

		return nil, fmt.Errorf("locking order: %w", err)
	}

	return o, nil
}

func (t *tx) LockOwnedOrders(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*order.Order, error) {
	out := make(map[uuid.UUID]*order.Order, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query := `SELECT ` + selectOrderColumns + `
		FROM orders
		WHERE user_id = $1 AND id = ANY($2::uuid[])
		ORDER BY id
		FOR UPDATE`

	rows, err := t.tx.QueryContext(ctx, query, userID, keys)
	if err != nil {
		return nil, fmt.Errorf("locking orders: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	for _, o := range orders {
		out[o.ID] = o
	}

	return out, nil
}

func (t *tx) UpdateOrder(ctx context.Context, o *order.Order) error {
	query := `
		UPDATE orders
		SET tracking_code = $1, carrier = $2, total_cost = $3, order_status = $4,
			payment_status = $5, result_url = $6, admin_note = $7, warning = $8,
			paid_at = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		nullString(o.TrackingCode),
		nullString(o.Carrier),
		o.TotalCost,
		string(o.Status),
		string(o.PaymentStatus),
		nullString(o.ResultURL),
		nullString(o.AdminNote),
		nullString(o.Warning),
		o.PaidAt,
		o.ID,
	).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order.ErrNotFound
		}

		return fmt.Errorf("updating order: %w", translate(err))
	}

	return nil
}

func (t *tx) CountTracking(ctx context.Context, typ order.Type, code string, excludeID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM orders
		WHERE order_type = $1
			AND LOWER(tracking_code) = LOWER($2)
			AND order_status <> 'failed'
			AND id <> $3
	`

	var n int

	if err := t.tx.QueryRowContext(ctx, query, string(typ), code, excludeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tracking code: %w", err)
	}

	return n, nil
}
