package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type chargeBody struct {
	OrderReference string          `json:"order_reference"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         string          `json:"method"`
}

type chargeResponse struct {
	Reference string         `json:"reference"`
	Status    ProviderStatus `json:"status"`
}

type refundBody struct {
	Amount decimal.Decimal `json:"amount"`
}

// HTTPGateway talks JSON to a remote payment provider.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (g *HTTPGateway) Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body := chargeBody{
		OrderReference: req.OrderID.String(),
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         req.Method,
	}
	var resp chargeResponse
	if err := g.do(ctx, http.MethodPost, "/v1/charges", body, &resp); err != nil {
		return nil, err
	}
	if resp.Reference == "" || !resp.Status.Valid() {
		return nil, fmt.Errorf("%w: malformed charge response", ErrProviderRejected)
	}
	return &ChargeResult{Reference: resp.Reference, Status: resp.Status}, nil
}

func (g *HTTPGateway) Status(ctx context.Context, reference string) (ProviderStatus, error) {
	var resp chargeResponse
	if err := g.do(ctx, http.MethodGet, "/v1/charges/"+url.PathEscape(reference), nil, &resp); err != nil {
		return "", err
	}
	if !resp.Status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrProviderRejected, resp.Status)
	}
	return resp.Status, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal) error {
	return g.do(ctx, http.MethodPost, "/v1/charges/"+url.PathEscape(reference)+"/refunds", refundBody{Amount: amount}, nil)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal provider request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrUnknownCharge, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", ErrProviderRejected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrProviderRejected, err)
	}
	return nil
}
