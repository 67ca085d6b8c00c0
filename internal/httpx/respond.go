package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-storefront-orders/internal/auth"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payment"
)

var (
	errInvalidJSON      = errors.New("invalid json")
	errCheckoutInFlight = errors.New("a checkout with this Idempotency-Key is still in progress")
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidJSON
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidState),
		errors.Is(err, orders.ErrInvalidInput),
		errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidResetToken),
		errors.Is(err, cart.ErrInvalidQty),
		errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, errCheckoutInFlight):
		return http.StatusConflict
	case errors.Is(err, payment.ErrDeclined):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": msg}. Unclassified errors are logged and
// reported as "internal error".
func writeError(w http.ResponseWriter, r *http.Request, service string, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		logging.Log(logging.Fields{
			Service:   service,
			RequestID: middleware.GetReqID(r.Context()),
			Step:      r.Method + " " + route,
			Status:    "error",
			Error:     err.Error(),
		})
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Error: msg})
}
