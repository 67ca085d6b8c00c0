package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGateway talks JSON to a hosted payment provider.
type HTTPGateway struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{BaseURL: baseURL, APIKey: apiKey, Client: &http.Client{Timeout: 10 * time.Second}}
}

type providerError struct {
	Error string `json:"error"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	var out Charge
	if err := g.post(ctx, "/charges", req.Reference, req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("payment provider returned no charge id")
	}
	return &out, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, chargeID string, amountCents int) error {
	body := map[string]any{"charge_id": chargeID, "amount_cents": amountCents}
	return g.post(ctx, "/refunds", "refund-"+chargeID, body, nil)
}

func (g *HTTPGateway) post(ctx context.Context, path, idemKey string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		var pe providerError
		_ = json.Unmarshal(raw, &pe)
		if pe.Error != "" {
			return fmt.Errorf("%w: %s", ErrDeclined, pe.Error)
		}
		return ErrDeclined
	case resp.StatusCode >= 300:
		return fmt.Errorf("payment provider %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("payment provider %s: decode: %w", path, err)
	}
	return nil
}
