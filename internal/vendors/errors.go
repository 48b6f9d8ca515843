package vendors

import (
	"fmt"
	"strings"
)

// CallError wraps a failed vendor call with enough detail to classify it for
// metrics and retry logging. HTTPStatus is zero when the request never got a
// response.
type CallError struct {
	Vendor     string
	HTTPStatus int
	Err        error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vendor %s: %v", e.Vendor, e.Err)
	}
	return fmt.Sprintf("vendor %s: http %d", e.Vendor, e.HTTPStatus)
}

func (e *CallError) Unwrap() error { return e.Err }

// Reason buckets the failure for the dispatch outcome metric.
func (e *CallError) Reason() string {
	if e.Err != nil {
		errLower := strings.ToLower(e.Err.Error())
		if strings.Contains(errLower, "timeout") || strings.Contains(errLower, "deadline exceeded") {
			return "timeout"
		}
		if strings.Contains(errLower, "connection refused") {
			return "connection_refused"
		}
		if strings.Contains(errLower, "no such host") || strings.Contains(errLower, "dns") {
			return "dns_error"
		}
		return "network"
	}
	if e.HTTPStatus >= 500 {
		return "http_5xx"
	}
	if e.HTTPStatus == 429 {
		return "http_429"
	}
	if e.HTTPStatus >= 400 {
		return "http_4xx"
	}
	return "other"
}
