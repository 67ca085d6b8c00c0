package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent; every statement may run against an existing database.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'customer' CHECK (role IN ('customer','admin','delivery')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          UUID PRIMARY KEY,
		sku         TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category_id TEXT NOT NULL REFERENCES categories(id),
		stock       INT  NOT NULL CONSTRAINT products_stock_nonnegative CHECK (stock >= 0),
		price_cents INT  NOT NULL CONSTRAINT products_price_nonnegative CHECK (price_cents >= 0),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`INSERT INTO categories (id, name) VALUES ('general', 'General') ON CONFLICT (id) DO NOTHING`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id             UUID PRIMARY KEY,
		user_id        UUID NOT NULL REFERENCES users(id),
		total_cents    INT  NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('pending','shipped','delivered','cancelled')),
		payment_status TEXT NOT NULL CHECK (payment_status IN ('paid','unpaid')),
		payment_method TEXT NOT NULL CHECK (payment_method IN ('card','cod')),
		payment_ref    TEXT,
		agent_id       UUID REFERENCES users(id),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_agent ON orders (agent_id) WHERE agent_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id    UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id  UUID NOT NULL REFERENCES products(id),
		qty         INT  NOT NULL CHECK (qty > 0),
		price_cents INT  NOT NULL,
		PRIMARY KEY (order_id, product_id)
	)`,
}

// Migrate applies the schema in a single transaction.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
