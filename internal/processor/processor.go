// Package processor is the outbound HTTP client for the two payment
// processors named in spec.md section 6: dispatch (POST {url}/payments)
// and the health probe (GET {url}/payments/service-health) that the
// health refresher drives through the Prober interface it defines.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
	"github.com/rinha-intermediary/payment-intermediary/internal/health"
	"github.com/rinha-intermediary/payment-intermediary/internal/signing"
)

// Client dispatches payments to, and probes the health of, the default
// and fallback processors.
type Client struct {
	httpClient *http.Client
	urls       map[domain.Processor]string
	signer     *signing.Signer
}

// New constructs a Client. timeout bounds both dispatch and probe calls
// (spec.md's HTTP_TIMEOUT). signer may be nil, in which case outbound
// dispatch requests are sent unsigned.
func New(timeout time.Duration, defaultURL, fallbackURL string, signer *signing.Signer) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		urls: map[domain.Processor]string{
			domain.Default:  defaultURL,
			domain.Fallback: fallbackURL,
		},
		signer: signer,
	}
}

type dispatchRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
	RequestedAt   string  `json:"requestedAt"`
}

// Dispatch POSTs the payment to the processor's /payments endpoint.
// Success is any 2xx status; anything else, including a timeout or
// connection error, is reported as an error (spec.md section 4.4, step
// 4: "Success := 2xx response").
func (c *Client) Dispatch(ctx context.Context, p domain.Processor, msg domain.PaymentMessage) error {
	url, ok := c.urls[p]
	if !ok || url == "" {
		return fmt.Errorf("processor: no URL configured for %q", p)
	}

	body, err := json.Marshal(dispatchRequest{
		CorrelationID: msg.CorrelationID.String(),
		Amount:        msg.Amount(),
		RequestedAt:   msg.RequestedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("processor: marshal dispatch body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/payments", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("processor: build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.signer != nil {
		sig, err := c.signer.Sign(p, body)
		if err != nil {
			return fmt.Errorf("processor: sign dispatch request: %w", err)
		}
		req.Header.Set(signing.HeaderName, sig)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("processor: dispatch to %s: %w", p, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("processor: dispatch to %s: status %d", p, resp.StatusCode)
	}
	return nil
}

type healthResponse struct {
	Failing         bool  `json:"failing"`
	MinResponseTime int64 `json:"minResponseTime"`
}

// Probe implements health.Prober by calling the processor's
// /payments/service-health endpoint. A network error or non-2xx is
// reported as an error; the caller (the health refresher) is
// responsible for translating that into a failing=true verdict with the
// configured sentinel response time.
func (c *Client) Probe(ctx context.Context, p domain.Processor) (bool, time.Duration, error) {
	url, ok := c.urls[p]
	if !ok || url == "" {
		return false, 0, fmt.Errorf("processor: no URL configured for %q", p)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/payments/service-health", nil)
	if err != nil {
		return false, 0, fmt.Errorf("processor: build probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("processor: probe %s: %w", p, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, 0, fmt.Errorf("processor: probe %s: status %d", p, resp.StatusCode)
	}

	var parsed healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, 0, fmt.Errorf("processor: probe %s: decode response: %w", p, err)
	}
	return parsed.Failing, time.Duration(parsed.MinResponseTime) * time.Millisecond, nil
}

var _ health.Prober = (*Client)(nil)
