package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSandbox(t *testing.T) {
	ctx := context.Background()
	var g Gateway = Sandbox{}

	ch, err := g.Charge(ctx, ChargeRequest{AmountCents: 500, Token: "tok_visa"})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if !strings.HasPrefix(ch.ID, "SBX-") {
		t.Fatalf("charge id %q", ch.ID)
	}
	if err := g.Refund(ctx, ch.ID, 500); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := g.Charge(ctx, ChargeRequest{AmountCents: 500, Token: "tok_declined"}); !errors.Is(err, ErrDeclined) {
		t.Fatalf("want ErrDeclined, got %v", err)
	}
	if _, err := g.Charge(ctx, ChargeRequest{AmountCents: 0, Token: "tok_visa"}); err == nil {
		t.Fatal("zero amount should fail")
	}
}

func TestHTTPGatewayCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Idempotency-Key") != "order-9" {
			t.Errorf("idempotency key %q", r.Header.Get("Idempotency-Key"))
		}
		var req ChargeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Token == "tok_declined" {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":"card_declined"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(Charge{ID: "ch_1", Status: "succeeded"})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key-1")
	ch, err := g.Charge(context.Background(), ChargeRequest{Reference: "order-9", AmountCents: 100, Token: "tok_ok"})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if ch.ID != "ch_1" {
		t.Fatalf("id %q", ch.ID)
	}

	_, err = g.Charge(context.Background(), ChargeRequest{Reference: "order-9", AmountCents: 100, Token: "tok_declined"})
	if !errors.Is(err, ErrDeclined) || !strings.Contains(err.Error(), "card_declined") {
		t.Fatalf("want decline with reason, got %v", err)
	}

	bad := NewHTTPGateway(srv.URL, "wrong")
	if _, err := bad.Charge(context.Background(), ChargeRequest{Reference: "order-9", AmountCents: 100}); err == nil || errors.Is(err, ErrDeclined) {
		t.Fatalf("want non-decline error, got %v", err)
	}
}

func TestHTTPGatewayRefund(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/refunds" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	if err := NewHTTPGateway(srv.URL, "k").Refund(context.Background(), "ch_7", 250); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got["charge_id"] != "ch_7" || got["amount_cents"] != float64(250) {
		t.Fatalf("body %v", got)
	}
}
