package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrDeclined = errors.New("payment declined")

type ChargeRequest struct {
	Reference   string `json:"reference"` // idempotency reference sent to the provider
	CustomerID  string `json:"customer_id"`
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
	Token       string `json:"token"` // tokenised card from the client SDK
}

type Charge struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Gateway is the provider-agnostic payment port.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
	Refund(ctx context.Context, chargeID string, amountCents int) error
}

// Sandbox approves every charge except the test token "tok_declined".
type Sandbox struct{}

func (Sandbox) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0")
	}
	if req.Token == "" || req.Token == "tok_declined" {
		return nil, ErrDeclined
	}
	return &Charge{
		ID:     "SBX-" + strings.ToUpper(uuid.NewString()[:8]),
		Status: "succeeded",
	}, nil
}

func (Sandbox) Refund(ctx context.Context, chargeID string, amountCents int) error {
	if !strings.HasPrefix(chargeID, "SBX-") {
		return fmt.Errorf("unknown sandbox charge %q", chargeID)
	}
	return nil
}
