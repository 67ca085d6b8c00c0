package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// CatalogHandler serves the public catalog and the admin product routes.
type CatalogHandler struct {
	Orders  *orders.Service
	Cache   *catalog.Cache // optional
	Service string
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity(h.Service))
		r.Post("/admin/products", h.createProduct)
		r.Put("/admin/products/{id}", h.updateProduct)
	})
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Orders.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	category := r.URL.Query().Get("category")
	var (
		ps  []orders.Product
		err error
	)
	if h.Cache != nil {
		ps, err = h.Cache.Products(ctx, category)
	} else {
		ps, err = h.Orders.ListProducts(ctx, orders.ProductFilter{CategoryID: category})
	}
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Orders.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in orders.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	p, err := h.Orders.CreateProduct(r.Context(), IdentityFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in orders.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	p, err := h.Orders.UpdateProduct(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, p)
}

// invalidate drops cached listings right away; the projector does the same
// when the ProductChanged event arrives.
func (h *CatalogHandler) invalidate(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(ctx); err != nil {
		logging.Err(h.Service, "catalog_invalidate", err)
	}
}
