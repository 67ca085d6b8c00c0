package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/auth"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

const idemInFlight = "in-flight"

type OrdersHandler struct {
	Orders  *orders.Service
	Cart    *cart.Store   // optional; checkout without items reads it
	Redis   *redis.Client // optional; enables Idempotency-Key
	Service string
}

type statusReq struct {
	Status orders.Status `json:"status"`
}

type assignReq struct {
	AgentID string `json:"agent_id"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity(h.Service))

		r.Post("/orders", h.checkout)
		r.Get("/orders", h.listMine)
		r.Get("/orders/{id}", h.getOrder)
		r.Put("/orders/{id}/cancel", h.cancel)

		r.Get("/admin/orders", h.listAll)
		r.Put("/admin/orders/{id}/status", h.advance)
		r.Put("/admin/orders/{id}/assign", h.assign)

		r.Get("/delivery/orders", h.listAssigned)
	})
}

// cancel: 200 with the cancelled order, 403 when the caller neither owns the
// order nor is an admin, 404 when it does not exist, 400 when not pending.
func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Cancel(ctx, IdentityFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var in orders.CheckoutInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	id := IdentityFrom(ctx)

	fromCart := len(in.Items) == 0 && h.Cart != nil
	if fromCart {
		lines, err := h.Cart.Items(ctx, id.UserID)
		if err != nil {
			writeError(w, r, h.Service, err)
			return
		}
		for _, l := range lines {
			in.Items = append(in.Items, orders.ItemInput{ProductID: l.ProductID, Qty: l.Qty})
		}
	}

	idemKey, replay, err := h.claimIdempotency(ctx, id, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	if replay != nil {
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, replay)
		return
	}

	o, err := h.Orders.Checkout(ctx, id, in)
	if err != nil {
		if idemKey != "" {
			_ = h.Redis.Del(ctx, idemKey).Err()
		}
		writeError(w, r, h.Service, err)
		return
	}
	if idemKey != "" {
		_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
	}
	if fromCart {
		_ = h.Cart.Clear(ctx, id.UserID)
	}
	writeJSON(w, http.StatusCreated, o)
}

// claimIdempotency reserves key for this checkout. When an earlier request
// already completed under it, that order is returned instead. Redis failures
// degrade to a plain checkout.
func (h *OrdersHandler) claimIdempotency(ctx context.Context, id *auth.Identity, key string) (string, *orders.Order, error) {
	key = strings.TrimSpace(key)
	if key == "" || h.Redis == nil {
		return "", nil, nil
	}
	rkey := fmt.Sprintf(redisx.KeyIdemCheckout, id.UserID, key)
	ok, err := h.Redis.SetNX(ctx, rkey, idemInFlight, redisx.TTLIdempotency).Result()
	if err != nil {
		return "", nil, nil
	}
	if ok {
		return rkey, nil, nil
	}

	prev, err := h.Redis.Get(ctx, rkey).Result()
	if errors.Is(err, redis.Nil) || prev == idemInFlight {
		return "", nil, errCheckoutInFlight
	}
	if err != nil {
		return "", nil, nil
	}
	o, err := h.Orders.Get(ctx, id, prev)
	if err != nil {
		return "", nil, err
	}
	return "", o, nil
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	out, err := h.Orders.ListMine(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	status := orders.Status(r.URL.Query().Get("status"))
	out, err := h.Orders.ListAll(r.Context(), IdentityFrom(r.Context()), status)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) advance(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	o, err := h.Orders.AdvanceStatus(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	o, err := h.Orders.AssignAgent(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), req.AgentID)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listAssigned(w http.ResponseWriter, r *http.Request) {
	out, err := h.Orders.ListAssigned(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
