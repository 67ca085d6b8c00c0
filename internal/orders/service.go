package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront-orders/internal/auth"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/payment"
)

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*auth.User, error)
}

type Service struct {
	Store       Store
	Payments    payment.Gateway
	Users       UserLookup
	Events      kafkax.Publisher       // optional
	Metrics     *metrics.ServerMetrics // optional
	ServiceName string
	Currency    string
}

type CheckoutInput struct {
	Items         []ItemInput   `json:"items"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentToken  string        `json:"payment_token"`
}

type ProductInput struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
	Stock       int    `json:"stock"`
	PriceCents  int    `json:"price_cents"`
}

// Cancel moves a pending order to cancelled and returns every line item's
// quantity to stock in the same transaction. Only the owner or an admin may
// cancel. The order is re-read under lock so concurrent cancels restock once.
func (s *Service) Cancel(ctx context.Context, caller *auth.Identity, orderID string) (*Order, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}

	var out *Order
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != caller.UserID && !caller.IsAdmin() {
			return auth.ErrForbidden
		}
		if o.Status != StatusPending {
			return &StateError{OrderID: o.ID, Current: o.Status, Want: string(StatusPending)}
		}

		for _, it := range sortedItems(o.Items) {
			if err := tx.AdjustStock(ctx, it.ProductID, it.Qty); err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("restock: product %s no longer exists", it.ProductID)
				}
				return fmt.Errorf("restock %s: %w", it.ProductID, err)
			}
		}
		if err := tx.SetOrderStatus(ctx, o.ID, StatusCancelled); err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.UpdatedAt = time.Now().UTC()
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Metrics != nil {
		s.Metrics.OrdersCancelled.Inc()
		s.Metrics.StockRestored.Add(float64(out.TotalQty()))
	}
	s.emit(EventOrderCancelled, out.ID, OrderCancelledPayload{
		OrderID:     out.ID,
		CancelledBy: caller.UserID,
		Restocked:   itemQtys(out.Items),
	})
	return out, nil
}

// Checkout prices the items from live products, charges the gateway for card
// payments, then reserves stock and writes a pending order atomically. A
// charge whose order could not be written is refunded.
func (s *Service) Checkout(ctx context.Context, caller *auth.Identity, in CheckoutInput) (*Order, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}
	items, err := mergeItems(in.Items)
	if err != nil {
		return nil, err
	}
	method := in.PaymentMethod
	if method == "" {
		method = PaymentCard
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, method)
	}

	o := &Order{
		ID:            uuid.NewString(),
		UserID:        caller.UserID,
		Status:        StatusPending,
		PaymentMethod: method,
		PaymentStatus: PaymentUnpaid,
	}
	for _, it := range items {
		p, err := s.Store.GetProduct(ctx, it.ProductID)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: product not found: %s", ErrInvalidInput, it.ProductID)
		}
		if err != nil {
			return nil, err
		}
		if p.Stock < it.Qty {
			return nil, &StockError{ProductID: p.ID, Required: it.Qty, Available: p.Stock}
		}
		if p.PriceCents > 0 && it.Qty > (math.MaxInt-o.TotalCents)/p.PriceCents {
			return nil, fmt.Errorf("%w: order total too large", ErrInvalidInput)
		}
		o.Items = append(o.Items, OrderItem{OrderID: o.ID, ProductID: p.ID, Qty: it.Qty, PriceCents: p.PriceCents})
		o.TotalCents += p.PriceCents * it.Qty
	}

	var charge *payment.Charge
	if method == PaymentCard {
		charge, err = s.Payments.Charge(ctx, payment.ChargeRequest{
			Reference:   o.ID,
			CustomerID:  caller.UserID,
			AmountCents: o.TotalCents,
			Currency:    s.currency(),
			Token:       in.PaymentToken,
		})
		if err != nil {
			return nil, err
		}
		o.PaymentStatus = PaymentPaid
		o.PaymentRef = charge.ID
	}

	err = s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		for _, it := range sortedItems(o.Items) {
			if err := tx.AdjustStock(ctx, it.ProductID, -it.Qty); err != nil {
				return err
			}
		}
		return tx.InsertOrder(ctx, o)
	})
	if err != nil {
		if charge != nil {
			s.refund(charge.ID, o)
		}
		return nil, err
	}

	if s.Metrics != nil {
		s.Metrics.OrdersPlaced.Inc()
	}
	s.emit(EventOrderPlaced, o.ID, OrderPlacedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Items:         itemPrices(o.Items),
		TotalCents:    o.TotalCents,
		PaymentMethod: o.PaymentMethod,
	})
	return o, nil
}

func (s *Service) refund(chargeID string, o *Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Payments.Refund(ctx, chargeID, o.TotalCents); err != nil {
		logging.Log(logging.Fields{
			Service: s.ServiceName,
			OrderID: o.ID,
			UserID:  o.UserID,
			Step:    "checkout_refund",
			Status:  "failed",
			Message: chargeID,
			Error:   err.Error(),
		})
	}
}

var prerequisite = map[Status]Status{
	StatusShipped:   StatusPending,
	StatusDelivered: StatusShipped,
}

// AdvanceStatus is the admin-only shipped/delivered transition. Cancellation
// has its own path because it restocks.
func (s *Service) AdvanceStatus(ctx context.Context, caller *auth.Identity, orderID string, to Status) (*Order, error) {
	if _, err := auth.CheckRole(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	from, ok := prerequisite[to]
	if !ok {
		return nil, fmt.Errorf("%w: status must be %s or %s", ErrInvalidInput, StatusShipped, StatusDelivered)
	}

	var out *Order
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return &StateError{OrderID: o.ID, Current: o.Status, Want: string(from)}
		}
		if err := tx.SetOrderStatus(ctx, o.ID, to); err != nil {
			return err
		}
		o.Status = to
		o.UpdatedAt = time.Now().UTC()
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(EventOrderStatusChanged, out.ID, OrderStatusChangedPayload{OrderID: out.ID, From: from, To: to})
	return out, nil
}

// AssignAgent hands an open order to a delivery agent.
func (s *Service) AssignAgent(ctx context.Context, caller *auth.Identity, orderID, agentID string) (*Order, error) {
	if _, err := auth.CheckRole(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(agentID) == "" {
		return nil, fmt.Errorf("%w: agent_id is required", ErrInvalidInput)
	}
	if s.Users != nil {
		agent, err := s.Users.GetUserByID(ctx, agentID)
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: agent not found", ErrInvalidInput)
		}
		if err != nil {
			return nil, err
		}
		if agent.Role != auth.RoleDelivery {
			return nil, fmt.Errorf("%w: user %s is not a delivery agent", ErrInvalidInput, agentID)
		}
	}

	var out *Order
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending && o.Status != StatusShipped {
			return &StateError{OrderID: o.ID, Current: o.Status, Want: "open"}
		}
		if err := tx.SetOrderAgent(ctx, o.ID, agentID); err != nil {
			return err
		}
		o.AgentID = &agentID
		o.UpdatedAt = time.Now().UTC()
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(EventOrderAssigned, out.ID, OrderAssignedPayload{OrderID: out.ID, AgentID: agentID})
	return out, nil
}

// Get returns an order to its owner, an admin, or the agent delivering it.
func (s *Service) Get(ctx context.Context, caller *auth.Identity, orderID string) (*Order, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case caller.IsAdmin(), o.UserID == caller.UserID:
	case caller.Role == auth.RoleDelivery && o.AgentID != nil && *o.AgentID == caller.UserID:
	default:
		return nil, auth.ErrForbidden
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, caller *auth.Identity) ([]Order, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}
	return s.Store.ListOrders(ctx, OrderFilter{UserID: caller.UserID})
}

func (s *Service) ListAll(ctx context.Context, caller *auth.Identity, status Status) ([]Order, error) {
	if _, err := auth.CheckRole(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.Store.ListOrders(ctx, OrderFilter{Status: status})
}

func (s *Service) ListAssigned(ctx context.Context, caller *auth.Identity) ([]Order, error) {
	if _, err := auth.CheckRole(caller, auth.RoleDelivery); err != nil {
		return nil, err
	}
	return s.Store.ListOrders(ctx, OrderFilter{AgentID: caller.UserID})
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.Store.ListCategories(ctx)
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	return s.Store.ListProducts(ctx, f)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.Store.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, caller *auth.Identity, in ProductInput) (*Product, error) {
	if _, err := auth.CheckRole(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.SKU) == "" {
		return nil, fmt.Errorf("%w: sku is required", ErrInvalidInput)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &Product{
		ID:          uuid.NewString(),
		SKU:         strings.TrimSpace(in.SKU),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Stock:       in.Stock,
		PriceCents:  in.PriceCents,
	}
	if err := s.Store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.emit(EventProductChanged, p.ID, ProductChangedPayload{ProductID: p.ID})
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, caller *auth.Identity, id string, in ProductInput) (*Product, error) {
	if _, err := auth.CheckRole(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Stock:       in.Stock,
		PriceCents:  in.PriceCents,
	}
	if err := s.Store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.emit(EventProductChanged, p.ID, ProductChangedPayload{ProductID: p.ID})
	return p, nil
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case in.CategoryID == "":
		return fmt.Errorf("%w: category_id is required", ErrInvalidInput)
	case in.Stock < 0:
		return fmt.Errorf("%w: stock must be >= 0", ErrInvalidInput)
	case in.PriceCents < 0:
		return fmt.Errorf("%w: price_cents must be >= 0", ErrInvalidInput)
	}
	return nil
}

func (s *Service) emit(eventType, orderID string, payload any) {
	if s.Events == nil {
		return
	}
	kafkax.Emit(s.Events, kafkax.NewEnvelope(eventType, s.ServiceName, orderID, payload))
}

func (s *Service) currency() string {
	if s.Currency == "" {
		return "USD"
	}
	return s.Currency
}

// maxLineQty is the largest quantity order_items.qty (INT) can hold.
const maxLineQty = math.MaxInt32

// mergeItems validates quantities and folds repeated products into one line.
func mergeItems(in []ItemInput) ([]ItemInput, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}
	idx := map[string]int{}
	out := make([]ItemInput, 0, len(in))
	for _, it := range in {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, fmt.Errorf("%w: product_id is required", ErrInvalidInput)
		}
		if it.Qty <= 0 || it.Qty > maxLineQty {
			return nil, fmt.Errorf("%w: invalid qty for product %s", ErrInvalidInput, it.ProductID)
		}
		if i, ok := idx[it.ProductID]; ok {
			if out[i].Qty > maxLineQty-it.Qty {
				return nil, fmt.Errorf("%w: invalid qty for product %s", ErrInvalidInput, it.ProductID)
			}
			out[i].Qty += it.Qty
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

// sortedItems orders row locks by product id so concurrent transactions
// acquire them in the same order.
func sortedItems(items []OrderItem) []OrderItem {
	out := append([]OrderItem(nil), items...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
