package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quayside/vendorq/internal/domain"
	"github.com/quayside/vendorq/internal/tracing"
)

// AsyncClient calls a vendor that only acknowledges the request; the real
// result arrives later on the webhook URL we hand it.
type AsyncClient struct {
	url        string
	webhookURL string
	httpClient *http.Client
}

func NewAsyncClient(url, webhookURL string, httpClient *http.Client) *AsyncClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AsyncClient{url: url, webhookURL: webhookURL, httpClient: httpClient}
}

func (c *AsyncClient) Tag() domain.Vendor { return domain.VendorAsync }

func (c *AsyncClient) Dispatch(ctx context.Context, payload map[string]any, correlationID string) (*Outcome, error) {
	body, err := json.Marshal(map[string]any{
		"request_id":  correlationID,
		"data":        payload,
		"webhook_url": c.webhookURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal async request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build async request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", correlationID)
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, &CallError{Vendor: string(domain.VendorAsync), Err: doErr}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CallError{Vendor: string(domain.VendorAsync), HTTPStatus: resp.StatusCode}
	}

	// The body is just an ack; nothing in it feeds the job result.
	return &Outcome{Accepted: true}, nil
}
