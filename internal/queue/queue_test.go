package queue

import (
	"testing"

	"github.com/quayside/vendorq/internal/dispatch"
)

var _ Queue = (*Redis)(nil)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name     string
		priority dispatch.Priority
		want     string
	}{
		{"high priority maps to high band", dispatch.PriorityHigh, highKey},
		{"low priority maps to low band", dispatch.PriorityLow, lowKey},
		{"unknown priority falls back to low band", dispatch.Priority(99), lowKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keyFor(tt.priority); got != tt.want {
				t.Errorf("keyFor(%d) = %q, want %q", tt.priority, got, tt.want)
			}
		})
	}
}
