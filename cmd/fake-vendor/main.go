// fake-vendor is a test double for local runs: /sync answers with a result
// inline, /async acknowledges and later posts the result to the webhook URL
// carried in the request. FAIL_FIRST_N makes the first N requests return 500
// to exercise the retry path.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

var (
	mu         sync.Mutex
	failFirstN = 0
	reqCount   = 0

	webhookDelay = 2 * time.Second
	failWebhooks = false
)

func main() {
	if v := os.Getenv("FAIL_FIRST_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			failFirstN = n
		}
	}
	if v := os.Getenv("WEBHOOK_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			webhookDelay = d
		}
	}
	// Report failure via webhook instead of a result
	failWebhooks = os.Getenv("FAIL_WEBHOOKS") == "true"

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
	mux.HandleFunc("/sync", handleSync)
	mux.HandleFunc("/async", handleAsync)

	addr := os.Getenv("FAKE_VENDOR_ADDR")
	if addr == "" {
		addr = ":8091"
	}
	log.Printf("fake-vendor listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

type vendorRequest struct {
	RequestID  string         `json:"request_id"`
	Data       map[string]any `json:"data"`
	WebhookURL string         `json:"webhook_url"`
}

func shouldFail() bool {
	mu.Lock()
	defer mu.Unlock()
	reqCount++
	return reqCount <= failFirstN
}

func handleSync(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if shouldFail() {
		log.Printf("FAILING sync request %s", req.RequestID)
		http.Error(w, "temporary failure", http.StatusInternalServerError)
		return
	}

	log.Printf("sync OK %s", req.RequestID)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"echo":        req.Data,
		"processed":   true,
		"vendor_note": fmt.Sprintf("sync result for %s", req.RequestID),
	})
}

func handleAsync(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.WebhookURL == "" {
		http.Error(w, "webhook_url is required", http.StatusBadRequest)
		return
	}

	if shouldFail() {
		log.Printf("FAILING async request %s", req.RequestID)
		http.Error(w, "temporary failure", http.StatusInternalServerError)
		return
	}

	log.Printf("async accepted %s, webhook in %s", req.RequestID, webhookDelay)
	go deliverWebhook(req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"accepted": true})
}

func deliverWebhook(req vendorRequest) {
	time.Sleep(webhookDelay)

	callback := map[string]any{
		"job_id": req.RequestID,
		"status": "complete",
		"data": map[string]any{
			"echo":        req.Data,
			"processed":   true,
			"vendor_note": fmt.Sprintf("async result for %s", req.RequestID),
		},
	}
	if failWebhooks {
		callback = map[string]any{
			"job_id": req.RequestID,
			"status": "failed",
			"error":  "simulated vendor failure",
		}
	}

	body, _ := json.Marshal(callback)
	resp, err := http.Post(req.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("webhook delivery for %s failed: %v", req.RequestID, err)
		return
	}
	defer resp.Body.Close()
	log.Printf("webhook delivered for %s: %d", req.RequestID, resp.StatusCode)
}
