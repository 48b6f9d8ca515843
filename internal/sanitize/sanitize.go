// Package sanitize cleans vendor results before they are persisted as a job
// result: PII redaction, string trimming, per-vendor normalization, and a
// processing metadata stamp.
package sanitize

import (
	"strings"
	"time"

	"github.com/quayside/vendorq/internal/domain"
)

// Field name substrings whose values are redacted regardless of nesting.
var sensitiveFields = []string{
	"ssn", "social_security_number", "credit_card", "password",
	"secret", "private_key", "api_key", "token",
}

const redacted = "[REDACTED]"

// Process returns a cleaned copy of data. The input is never mutated.
func Process(data map[string]any, vendor domain.Vendor) map[string]any {
	out, _ := clean("", data).(map[string]any)
	if out == nil {
		out = make(map[string]any)
	}

	switch vendor {
	case domain.VendorSync:
		out["source"] = "sync_vendor"
		out["responseTime"] = "immediate"
	case domain.VendorAsync:
		out["source"] = "async_vendor"
		out["responseTime"] = "delayed"
	}

	out["_metadata"] = map[string]any{
		"processedAt": time.Now().UTC().Format(time.RFC3339),
		"vendorType":  string(vendor),
		"version":     "1.0",
	}
	return out
}

func clean(key string, value any) any {
	if isSensitive(key) {
		return redacted
	}
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = clean(k, item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = clean("", item)
		}
		return out
	case string:
		return strings.TrimSpace(v)
	default:
		return v
	}
}

func isSensitive(key string) bool {
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	for _, f := range sensitiveFields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}
