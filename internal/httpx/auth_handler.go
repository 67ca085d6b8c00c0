package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/auth"
)

type AuthHandler struct {
	Auth    *auth.Service
	Service string
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type forgotReq struct {
	Email string `json:"email"`
}

type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type roleReq struct {
	Role auth.Role `json:"role"`
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/signup", h.signup)
	r.Post("/auth/login", h.login)
	r.Post("/auth/password/forgot", h.forgot)
	r.Post("/auth/password/reset", h.reset)

	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity(h.Service))
		r.Get("/me", h.me)
		r.Put("/admin/users/{id}/role", h.setRole)
	})
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	sess, err := h.Auth.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	sess, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) forgot(w http.ResponseWriter, r *http.Request) {
	var req forgotReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	if err := h.Auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	// same answer whether or not the account exists
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "if the account exists, a reset link was sent"})
}

func (h *AuthHandler) reset(w http.ResponseWriter, r *http.Request) {
	var req resetReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	if err := h.Auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.Me(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) setRole(w http.ResponseWriter, r *http.Request) {
	var req roleReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	u, err := h.Auth.SetRole(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, r, h.Service, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
