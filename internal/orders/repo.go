package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres Store.
type Repo struct{ DB DB }

var (
	_ Store = (*Repo)(nil)
	_ DB    = (*pgxpool.Pool)(nil)
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the slice of *pgxpool.Pool the repo uses.
type DB interface {
	querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

const orderColumns = `id, user_id, total_cents, status, payment_status, payment_method,
	payment_ref, agent_id, created_at, updated_at`

const productColumns = `id, sku, name, description, category_id, stock, price_cents, created_at, updated_at`

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *Repo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	return getOrder(ctx, r.DB, id, false)
}

func (r *Repo) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.AgentID != "" {
		args = append(args, f.AgentID)
		where = append(where, fmt.Sprintf("agent_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	byID := make(map[string]*Order, len(out))
	for i := range out {
		ids[i] = out[i].ID
		byID[out[i].ID] = &out[i]
	}
	items, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, qty, price_cents
		FROM order_items WHERE order_id = ANY($1) ORDER BY product_id`, ids)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var it OrderItem
		if err := items.Scan(&it.OrderID, &it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return out, items.Err()
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		var c Category
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
}

func (r *Repo) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	q := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if f.CategoryID != "" {
		q += ` WHERE category_id=$1`
		args = append(args, f.CategoryID)
	}
	rows, err := r.DB.Query(ctx, q+` ORDER BY sku`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (r *Repo) GetProduct(ctx context.Context, id string) (*Product, error) {
	return getProduct(ctx, r.DB, id)
}

func (r *Repo) CreateProduct(ctx context.Context, p *Product) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, sku, name, description, category_id, stock, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.SKU, p.Name, p.Description, p.CategoryID, p.Stock, p.PriceCents,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapWriteErr(err)
}

func (r *Repo) UpdateProduct(ctx context.Context, p *Product) error {
	if !validID(p.ID) {
		return ErrNotFound
	}
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET name=$2, description=$3, category_id=$4, stock=$5, price_cents=$6, updated_at=now()
		WHERE id=$1
		RETURNING sku, created_at, updated_at`,
		p.ID, p.Name, p.Description, p.CategoryID, p.Stock, p.PriceCents,
	).Scan(&p.SKU, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return mapWriteErr(err)
}

// mapWriteErr turns constraint violations into input errors.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23503":
		return fmt.Errorf("%w: unknown category", ErrInvalidInput)
	case "23505":
		return fmt.Errorf("%w: sku already exists", ErrInvalidInput)
	case "23514":
		return fmt.Errorf("%w: %s", ErrInvalidInput, pgErr.ConstraintName)
	}
	return err
}

// pgTx runs inside one Postgres transaction.
type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockOrder(ctx context.Context, id string) (*Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *pgTx) AdjustStock(ctx context.Context, productID string, delta int) error {
	if !validID(productID) {
		return ErrNotFound
	}
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id=$1 AND stock + $2 >= 0`, productID, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var stock int
	err = t.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return &StockError{ProductID: productID, Required: -delta, Available: stock}
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, total_cents, status, payment_status, payment_method, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.TotalCents, string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod), o.PaymentRef,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Qty, it.PriceCents,
		); err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}
	return nil
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id string, s Status) error {
	return t.execOne(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(s))
}

func (t *pgTx) SetOrderAgent(ctx context.Context, id, agentID string) error {
	return t.execOne(ctx, `UPDATE orders SET agent_id=$2, updated_at=now() WHERE id=$1`, id, agentID)
}

func (t *pgTx) execOne(ctx context.Context, sql string, args ...any) error {
	ct, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func getOrder(ctx context.Context, q querier, id string, forUpdate bool) (*Order, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, err
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := q.Query(ctx, `
		SELECT order_id, product_id, qty, price_cents
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, id)
	if err != nil {
		return nil, err
	}
	o.Items, err = pgx.CollectRows(items, func(row pgx.CollectableRow) (OrderItem, error) {
		var it OrderItem
		err := row.Scan(&it.OrderID, &it.ProductID, &it.Qty, &it.PriceCents)
		return it, err
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func getProduct(ctx context.Context, q querier, id string) (*Product, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	rows, err := q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanOrder(row pgx.CollectableRow) (Order, error) {
	var (
		o          Order
		paymentRef *string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.TotalCents, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&paymentRef, &o.AgentID, &o.CreatedAt, &o.UpdatedAt)
	if paymentRef != nil {
		o.PaymentRef = *paymentRef
	}
	return o, err
}

func scanProduct(row pgx.CollectableRow) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
