package orders

import "context"

// Store is the persistence boundary. Writes that must be atomic go through WithTx.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)

	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
}

// Tx is a unit of work. LockOrder holds the order row until commit; AdjustStock
// holds each product row it touches.
type Tx interface {
	LockOrder(ctx context.Context, id string) (*Order, error)
	AdjustStock(ctx context.Context, productID string, delta int) error
	InsertOrder(ctx context.Context, o *Order) error
	SetOrderStatus(ctx context.Context, id string, s Status) error
	SetOrderAgent(ctx context.Context, id, agentID string) error
}
