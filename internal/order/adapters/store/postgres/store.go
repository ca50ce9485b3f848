// Package postgres provides a PostgreSQL implementation of ports.OrderStore
// on top of a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
	"github.com/ecomlabs/order-orchestrator/internal/order/ports"
)

var _ ports.OrderStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables if they do not exist. Monetary columns are
// NUMERIC; values travel as exact decimal strings on both sides.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS orders (
  id         text PRIMARY KEY,
  customer   text NOT NULL,
  status     text NOT NULL,
  total      numeric NOT NULL,
  created_at timestamptz NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items (
  id           bigserial PRIMARY KEY,
  order_id     text NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  position     int NOT NULL,
  product_id   bigint NOT NULL,
  product_name text NOT NULL,
  quantity     int NOT NULL,
  unit_price   numeric NOT NULL,
  subtotal     numeric NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders (lower(customer));
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_id, position);
`)
	if err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	saved := *o
	saved.Items = append([]domain.OrderItem(nil), o.Items...)

	insert := saved.ID == ""
	if insert {
		saved.ID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if insert {
		_, err = tx.Exec(ctx,
			`INSERT INTO orders (id, customer, status, total, created_at) VALUES ($1, $2, $3, $4, $5)`,
			saved.ID, saved.Customer, string(saved.Status), saved.Total.String(), saved.CreatedAt)
	} else {
		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx,
			`UPDATE orders SET customer = $1, status = $2, total = $3, created_at = $4 WHERE id = $5`,
			saved.Customer, string(saved.Status), saved.Total.String(), saved.CreatedAt, saved.ID)
		if err == nil && tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("postgres: save order %q: %w", saved.ID, domain.ErrOrderNotFound)
		}
		if err == nil {
			_, err = tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, saved.ID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: save order %q: %w", saved.ID, err)
	}

	for i := range saved.Items {
		item := &saved.Items[i]
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, product_name, quantity, unit_price, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			saved.ID, i, item.ProductID, item.ProductName, item.Quantity,
			item.UnitPrice.String(), item.Subtotal.String())
		if err != nil {
			return nil, fmt.Errorf("postgres: save item %d of order %q: %w", i, saved.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit order %q: %w", saved.ID, err)
	}
	return &saved, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, customer, status, total::text, created_at FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: order %q: %w", id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find order %q: %w", id, err)
	}

	if err := s.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) FindPage(ctx context.Context, filter ports.Filter, spec ports.PageSpec) (*ports.Page, error) {
	if spec.Size <= 0 {
		spec.Size = 10
	}
	if spec.Page < 0 {
		spec.Page = 0
	}

	where, args := buildWhere(filter)

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: count orders: %w", err)
	}

	orderBy := ` ORDER BY created_at, id`
	if spec.Sort == "customer" {
		orderBy = ` ORDER BY customer, id`
	}

	limitArgs := append(args, spec.Size, spec.Page*spec.Size)
	query := fmt.Sprintf(`SELECT id, customer, status, total::text, created_at FROM orders%s%s LIMIT $%d OFFSET $%d`,
		where, orderBy, len(args)+1, len(args)+2)

	rows, err := s.pool.Query(ctx, query, limitArgs...)
	if err != nil {
		return nil, fmt.Errorf("postgres: page orders: %w", err)
	}
	defer rows.Close()

	var content []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order row: %w", err)
		}
		content = append(content, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: page orders: %w", err)
	}

	for i := range content {
		if err := s.loadItems(ctx, &content[i]); err != nil {
			return nil, err
		}
	}

	return &ports.Page{
		Content:       content,
		TotalElements: total,
		Page:          spec.Page,
		Size:          spec.Size,
	}, nil
}

func (s *Store) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := s.pool.Query(ctx,
		`SELECT product_id, product_name, quantity, unit_price::text, subtotal::text
		 FROM order_items WHERE order_id = $1 ORDER BY position`, o.ID)
	if err != nil {
		return fmt.Errorf("postgres: load items of order %q: %w", o.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		var unitPrice, subtotal string
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &unitPrice, &subtotal); err != nil {
			return fmt.Errorf("postgres: scan item of order %q: %w", o.ID, err)
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return fmt.Errorf("postgres: parse unit price %q: %w", unitPrice, err)
		}
		if item.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return fmt.Errorf("postgres: parse subtotal %q: %w", subtotal, err)
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func buildWhere(filter ports.Filter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Customer != "" {
		args = append(args, "%"+filter.Customer+"%")
		clauses = append(clauses, fmt.Sprintf(`customer ILIKE $%d`, len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf(`status = $%d`, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status, total string
	if err := row.Scan(&o.ID, &o.Customer, &status, &total, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)

	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total %q: %w", total, err)
	}
	return &o, nil
}
