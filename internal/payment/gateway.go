package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
)

// Gateway endpoints. The sandbox/production flag selects both the API base
// and the user-facing redirect base.
const (
	productionAPIBase = "https://api.zarinpal.com/pg/v4/payment"
	sandboxAPIBase    = "https://sandbox.zarinpal.com/pg/v4/payment"

	productionStartPayBase = "https://www.zarinpal.com/pg/StartPay"
	sandboxStartPayBase    = "https://sandbox.zarinpal.com/pg/StartPay"
)

// GatewayError reports a non-success gateway response; status and body are
// kept for diagnostics.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway request failed: status=%d body=%q", e.Status, e.Body)
}

// Gateway is the HTTP client for the external payment gateway. All calls run
// through a circuit breaker so a flapping gateway fails fast instead of
// pinning request handlers on timeouts.
type Gateway struct {
	merchantID   string
	client       *http.Client
	breaker      *gobreaker.CircuitBreaker
	apiBase      string
	startPayBase string
}

// NewGateway creates a gateway client in sandbox or production mode.
func NewGateway(merchantID string, sandbox bool, client *http.Client) *Gateway {
	apiBase, startPayBase := productionAPIBase, productionStartPayBase
	if sandbox {
		apiBase, startPayBase = sandboxAPIBase, sandboxStartPayBase
	}
	return &Gateway{
		merchantID: merchantID,
		client:     client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "payment_gateway",
		}),
		apiBase:      apiBase,
		startPayBase: startPayBase,
	}
}

// RedirectURL builds the user-facing redirect for an authority.
func (g *Gateway) RedirectURL(authority string) string {
	return g.startPayBase + "/" + authority
}

type requestPayload struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url"`
	Description string            `json:"description"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type verifyPayload struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
	Currency   string `json:"currency"`
}

// gatewayResult is the `data` object of a gateway response.
type gatewayResult struct {
	Code      int    `json:"code"`
	Authority string `json:"authority"`
	RefID     int64  `json:"ref_id"`
	CardPan   string `json:"card_pan"`
}

type gatewayResponse struct {
	Data gatewayResult
	Raw  json.RawMessage
}

// gatewayEnvelope is the outer response shape. On success `data` is an
// object; on a business-level failure the gateway still answers 200 but with
// an empty `data` array and the code moved into an `errors` object.
type gatewayEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Request asks the gateway for a payment authority.
func (g *Gateway) Request(ctx context.Context, amount int64, callbackURL, description, currency string, metadata map[string]string) (*gatewayResponse, error) {
	return g.post(ctx, g.apiBase+"/request.json", requestPayload{
		MerchantID:  g.merchantID,
		Amount:      amount,
		CallbackURL: callbackURL,
		Description: description,
		Currency:    currency,
		Metadata:    metadata,
	})
}

// Verify confirms settlement for an authority. It must be called with the
// same amount and currency convention used at request time.
func (g *Gateway) Verify(ctx context.Context, authority string, amount int64, currency string) (*gatewayResponse, error) {
	return g.post(ctx, g.apiBase+"/verify.json", verifyPayload{
		MerchantID: g.merchantID,
		Amount:     amount,
		Authority:  authority,
		Currency:   currency,
	})
}

func (g *Gateway) post(ctx context.Context, u string, payload any) (*gatewayResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	res, err := g.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build gateway request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, &GatewayError{Status: 0, Body: err.Error()}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
		if err != nil {
			return nil, &GatewayError{Status: resp.StatusCode, Body: "unreadable response body"}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &GatewayError{Status: resp.StatusCode, Body: string(raw)}
		}

		var envelope gatewayEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, &GatewayError{Status: resp.StatusCode, Body: string(raw)}
		}

		out := &gatewayResponse{Raw: raw}
		if data := bytes.TrimSpace(envelope.Data); len(data) > 0 && data[0] == '{' {
			if err := json.Unmarshal(data, &out.Data); err != nil {
				return nil, &GatewayError{Status: resp.StatusCode, Body: string(raw)}
			}
		} else {
			out.Data.Code = envelope.Errors.Code
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*gatewayResponse), nil
}
