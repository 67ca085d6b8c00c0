package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront-orders/internal/auth"
)

type identityKey struct{}

// Authenticate resolves a Bearer token into an Identity on the request
// context. A missing header passes through anonymously; a bad token is 401.
func Authenticate(tk *auth.Tokens, service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(h, "Bearer ")
			if !ok {
				writeError(w, r, service, auth.ErrUnauthorized)
				return
			}
			id, err := tk.Parse(strings.TrimSpace(raw))
			if err != nil {
				writeError(w, r, service, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
		})
	}
}

// RequireIdentity rejects anonymous requests with 401.
func RequireIdentity(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFrom(r.Context()) == nil {
				writeError(w, r, service, auth.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func IdentityFrom(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey{}).(*auth.Identity)
	return id
}
