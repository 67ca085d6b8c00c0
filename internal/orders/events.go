package orders

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderAssigned      = "OrderAssigned"
	EventProductChanged     = "ProductChanged"
)

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ItemPrice struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type OrderPlacedPayload struct {
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	Items         []ItemPrice   `json:"items"`
	TotalCents    int           `json:"total_cents"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

type OrderCancelledPayload struct {
	OrderID     string    `json:"order_id"`
	CancelledBy string    `json:"cancelled_by"`
	Restocked   []ItemQty `json:"restocked"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type OrderAssignedPayload struct {
	OrderID string `json:"order_id"`
	AgentID string `json:"agent_id"`
}

type ProductChangedPayload struct {
	ProductID string `json:"product_id"`
}

func itemPrices(items []OrderItem) []ItemPrice {
	out := make([]ItemPrice, 0, len(items))
	for _, it := range items {
		out = append(out, ItemPrice{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	return out
}

func itemQtys(items []OrderItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	return out
}
