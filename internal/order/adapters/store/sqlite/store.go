// Package sqlite provides a SQLite-backed implementation of ports.OrderStore.
//
// WAL mode is enabled on Open so that readers never block writers — the HTTP
// read paths may be serving pages while a creation commits.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
	"github.com/ecomlabs/order-orchestrator/internal/order/ports"

	// Pure-Go SQLite driver: no CGO, so the service builds in minimal
	// containers. Register under driver name "sqlite".
	_ "modernc.org/sqlite"
)

var _ ports.OrderStore = (*Store)(nil)

// schema is the DDL executed once on startup. Monetary columns are TEXT
// holding exact decimal strings; SQLite REAL would lose cents.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id          TEXT PRIMARY KEY,
    customer    TEXT NOT NULL,
    status      TEXT NOT NULL,
    total       TEXT NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id      TEXT    NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    position      INTEGER NOT NULL,
    product_id    INTEGER NOT NULL,
    product_name  TEXT    NOT NULL,
    quantity      INTEGER NOT NULL,
    unit_price    TEXT    NOT NULL,
    subtotal      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_customer   ON orders(customer);
CREATE INDEX IF NOT EXISTS idx_orders_status     ON orders(status);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id, position);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for throwaway instances in tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save commits the order and all of its items in one transaction. An empty
// ID means insert (a fresh uuid is assigned); otherwise the row and its
// items are replaced.
func (s *Store) Save(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	saved := *o
	saved.Items = append([]domain.OrderItem(nil), o.Items...)

	insert := saved.ID == ""
	if insert {
		saved.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if insert {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO orders (id, customer, status, total, created_at) VALUES (?, ?, ?, ?, ?)`,
			saved.ID, saved.Customer, string(saved.Status), saved.Total.String(), formatTime(saved.CreatedAt))
	} else {
		var res sql.Result
		res, err = tx.ExecContext(ctx,
			`UPDATE orders SET customer = ?, status = ?, total = ?, created_at = ? WHERE id = ?`,
			saved.Customer, string(saved.Status), saved.Total.String(), formatTime(saved.CreatedAt), saved.ID)
		if err == nil {
			if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
				return nil, fmt.Errorf("sqlite: save order %q: %w", saved.ID, domain.ErrOrderNotFound)
			}
		}
		if err == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, saved.ID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: save order %q: %w", saved.ID, err)
	}

	for i := range saved.Items {
		item := &saved.Items[i]
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, product_name, quantity, unit_price, subtotal)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			saved.ID, i, item.ProductID, item.ProductName, item.Quantity,
			item.UnitPrice.String(), item.Subtotal.String())
		if err != nil {
			return nil, fmt.Errorf("sqlite: save item %d of order %q: %w", i, saved.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit order %q: %w", saved.ID, err)
	}
	return &saved, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer, status, total, created_at FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: order %q: %w", id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find order %q: %w", id, err)
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: count orders: %w", err)
	}

	orderBy := ` ORDER BY created_at, id`
	if spec.Sort == "customer" {
		orderBy = ` ORDER BY customer, id`
	}

	query := `SELECT id, customer, status, total, created_at FROM orders` + where + orderBy + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, spec.Size, spec.Page*spec.Size)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: page orders: %w", err)
	}
	defer rows.Close()

	var content []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan order row: %w", err)
		}
		content = append(content, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: page orders: %w", err)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, product_name, quantity, unit_price, subtotal
		 FROM order_items WHERE order_id = ? ORDER BY position`, o.ID)
	if err != nil {
		return fmt.Errorf("sqlite: load items of order %q: %w", o.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		var unitPrice, subtotal string
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &unitPrice, &subtotal); err != nil {
			return fmt.Errorf("sqlite: scan item of order %q: %w", o.ID, err)
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return fmt.Errorf("sqlite: parse unit price %q: %w", unitPrice, err)
		}
		if item.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return fmt.Errorf("sqlite: parse subtotal %q: %w", subtotal, err)
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func buildWhere(filter ports.Filter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Customer != "" {
		clauses = append(clauses, `lower(customer) LIKE '%' || lower(?) || '%'`)
		args = append(args, filter.Customer)
	}
	if filter.Status != "" {
		clauses = append(clauses, `status = ?`)
		args = append(args, string(filter.Status))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status, total, createdAt string
	if err := r.Scan(&o.ID, &o.Customer, &status, &total, &createdAt); err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)

	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total %q: %w", total, err)
	}
	if o.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &o, nil
}

// SQLite has no native datetime type; timestamps are stored as RFC3339 TEXT.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
