package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type CartHandler struct {
	Cart    *cart.Store
	Orders  *orders.Service
	Service string
}

type qtyReq struct {
	Qty int `json:"qty"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity(h.Service))
		r.Get("/cart", h.items)
		r.Put("/cart/items/{productID}", h.setQty)
		r.Delete("/cart/items/{productID}", h.remove)
		r.Delete("/cart", h.clear)

		r.Get("/wishlist", h.wishlist)
		r.Put("/wishlist/{productID}", h.wish)
		r.Delete("/wishlist/{productID}", h.unwish)
	})
}

func (h *CartHandler) items(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Cart.Items(r.Context(), IdentityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": lines})
}

func (h *CartHandler) setQty(w http.ResponseWriter, r *http.Request) {
	var req qtyReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	pid := chi.URLParam(r, "productID")
	if _, err := h.Orders.GetProduct(r.Context(), pid); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	if err := h.Cart.SetQty(r.Context(), IdentityFrom(r.Context()).UserID, pid, req.Qty); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.Remove(r.Context(), IdentityFrom(r.Context()).UserID, chi.URLParam(r, "productID")); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.Clear(r.Context(), IdentityFrom(r.Context()).UserID); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) wishlist(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Cart.Wishlist(r.Context(), IdentityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_ids": ids})
}

func (h *CartHandler) wish(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "productID")
	if _, err := h.Orders.GetProduct(r.Context(), pid); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	if err := h.Cart.Wish(r.Context(), IdentityFrom(r.Context()).UserID, pid); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) unwish(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.Unwish(r.Context(), IdentityFrom(r.Context()).UserID, chi.URLParam(r, "productID")); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
