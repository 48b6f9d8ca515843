package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustRegister() panicked: %v", r)
		}
	}()

	MustRegister(reg)

	// Record some values so metrics appear in Gather()
	RecordJobCreated("sync")
	RecordDispatch("sync", "complete")
	RecordRetry("timeout")
	RecordWebhook("async", "duplicate")
	ObserveVendorCall("sync", 100*time.Millisecond)
	ObserveRateLimitWait("async", 5*time.Millisecond)
	UpdateQueueDepth("high", 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	want := map[string]bool{
		"vendorq_jobs_created_total":     false,
		"vendorq_dispatches_total":       false,
		"vendorq_retries_total":          false,
		"vendorq_webhooks_total":         false,
		"vendorq_vendor_call_seconds":    false,
		"vendorq_rate_limit_wait_seconds": false,
		"vendorq_queue_depth":            false,
	}
	for _, mf := range families {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %q not gathered after registration", name)
		}
	}
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)

	before := testutil.ToFloat64(DispatchesTotal.WithLabelValues("async", "retried"))
	RecordDispatch("async", "retried")
	RecordDispatch("async", "retried")
	after := testutil.ToFloat64(DispatchesTotal.WithLabelValues("async", "retried"))

	if after-before != 2 {
		t.Errorf("DispatchesTotal delta = %v, want 2", after-before)
	}

	UpdateQueueDepth("delayed", 7)
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("delayed")); got != 7 {
		t.Errorf("QueueDepth = %v, want 7", got)
	}
}
