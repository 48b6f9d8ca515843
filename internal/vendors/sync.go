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

// SyncClient calls a vendor that processes the request in-band and returns
// the result in the response body.
type SyncClient struct {
	url        string
	httpClient *http.Client
}

func NewSyncClient(url string, httpClient *http.Client) *SyncClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SyncClient{url: url, httpClient: httpClient}
}

func (c *SyncClient) Tag() domain.Vendor { return domain.VendorSync }

func (c *SyncClient) Dispatch(ctx context.Context, payload map[string]any, correlationID string) (*Outcome, error) {
	body, err := json.Marshal(map[string]any{
		"request_id": correlationID,
		"data":       payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", correlationID)
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, &CallError{Vendor: string(domain.VendorSync), Err: doErr}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CallError{Vendor: string(domain.VendorSync), HTTPStatus: resp.StatusCode}
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode sync response: %w", err)
	}
	return &Outcome{Data: data}, nil
}
