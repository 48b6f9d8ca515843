package sanitize

import (
	"testing"
	"time"

	"github.com/quayside/vendorq/internal/domain"
)

func TestProcessRedactsSensitiveFields(t *testing.T) {
	in := map[string]any{
		"name":        "  Alice  ",
		"ssn":         "123-45-6789",
		"api_key":     "abc123",
		"customerSSN": "987-65-4321",
		"nested": map[string]any{
			"password": "hunter2",
			"note":     "keep",
		},
		"items": []any{
			map[string]any{"credit_card": "4111", "label": " x "},
		},
	}

	out := Process(in, domain.VendorSync)

	if out["ssn"] != "[REDACTED]" {
		t.Errorf("ssn = %v, want [REDACTED]", out["ssn"])
	}
	if out["api_key"] != "[REDACTED]" {
		t.Errorf("api_key = %v, want [REDACTED]", out["api_key"])
	}
	// Matching is substring-based and case-insensitive.
	if out["customerSSN"] != "[REDACTED]" {
		t.Errorf("customerSSN = %v, want [REDACTED]", out["customerSSN"])
	}
	nested := out["nested"].(map[string]any)
	if nested["password"] != "[REDACTED]" {
		t.Errorf("nested password = %v, want [REDACTED]", nested["password"])
	}
	if nested["note"] != "keep" {
		t.Errorf("nested note = %v", nested["note"])
	}
	item := out["items"].([]any)[0].(map[string]any)
	if item["credit_card"] != "[REDACTED]" {
		t.Errorf("item credit_card = %v, want [REDACTED]", item["credit_card"])
	}
	if item["label"] != "x" {
		t.Errorf("item label = %q, want trimmed", item["label"])
	}
	if out["name"] != "Alice" {
		t.Errorf("name = %q, want trimmed", out["name"])
	}
}

func TestProcessNormalizes(t *testing.T) {
	syncOut := Process(map[string]any{"v": 1}, domain.VendorSync)
	if syncOut["source"] != "sync_vendor" || syncOut["responseTime"] != "immediate" {
		t.Errorf("sync normalization = %v / %v", syncOut["source"], syncOut["responseTime"])
	}

	asyncOut := Process(map[string]any{"v": 1}, domain.VendorAsync)
	if asyncOut["source"] != "async_vendor" || asyncOut["responseTime"] != "delayed" {
		t.Errorf("async normalization = %v / %v", asyncOut["source"], asyncOut["responseTime"])
	}
}

func TestProcessMetadata(t *testing.T) {
	out := Process(map[string]any{}, domain.VendorAsync)

	meta, ok := out["_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("_metadata missing: %v", out)
	}
	if meta["vendorType"] != "async" {
		t.Errorf("vendorType = %v", meta["vendorType"])
	}
	if meta["version"] != "1.0" {
		t.Errorf("version = %v", meta["version"])
	}
	if _, err := time.Parse(time.RFC3339, meta["processedAt"].(string)); err != nil {
		t.Errorf("processedAt not RFC3339: %v", meta["processedAt"])
	}
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	in := map[string]any{"password": "hunter2", "name": " pad "}
	Process(in, domain.VendorSync)

	if in["password"] != "hunter2" {
		t.Errorf("input mutated: password = %v", in["password"])
	}
	if in["name"] != " pad " {
		t.Errorf("input mutated: name = %q", in["name"])
	}
}

func TestProcessNilInput(t *testing.T) {
	out := Process(nil, domain.VendorSync)
	if out == nil {
		t.Fatal("Process(nil) returned nil")
	}
	if out["source"] != "sync_vendor" {
		t.Errorf("source = %v", out["source"])
	}
}
