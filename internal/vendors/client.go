package vendors

import (
	"context"
	"sync"

	"github.com/quayside/vendorq/internal/domain"
)

// Outcome is the result of one dispatch attempt. Sync vendors return Data
// inline; async vendors return Accepted=true with no data, and resolve later
// via webhook.
type Outcome struct {
	Data     map[string]any
	Accepted bool
}

// Client dispatches a job payload to one external vendor.
type Client interface {
	Tag() domain.Vendor
	Dispatch(ctx context.Context, payload map[string]any, correlationID string) (*Outcome, error)
}

// Registry maps vendor tags to clients. Registration happens at startup but
// lookups come from many worker goroutines, hence the RWMutex.
type Registry struct {
	mu      sync.RWMutex
	clients map[domain.Vendor]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[domain.Vendor]Client)}
}

func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Tag()] = c
}

func (r *Registry) Get(vendor domain.Vendor) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[vendor]
	if !ok {
		return nil, domain.ErrUnknownVendor
	}
	return c, nil
}
