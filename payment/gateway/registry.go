package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Config holds the explicit configuration the registry is constructed with
// for one gateway. There is no dynamic reloading; the registry is populated
// once at process start and looked up by string key thereafter.
type Config struct {
	// ID is the stable gateway identifier, e.g. "opencommerce.payments.dummy"
	ID string `json:"id" valid:"required"`
	// Name is the human readable gateway name
	Name string `json:"name" valid:"required"`
	// Active gates whether the gateway can be resolved at all
	Active bool `json:"active"`
	// SupportedCurrencies limits the gateway to checkouts in these currencies;
	// empty means any currency
	SupportedCurrencies []string `json:"supportedCurrencies"`
	// Channels limits the gateway to the named sales channels; empty means any
	Channels []string `json:"channels"`
}

type entry struct {
	cfg Config
	gw  Gateway
}

// Registry resolves a gateway identifier to a configured adapter, scoped by
// currency and channel support. Lookups after construction are read-only and
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty gateway registry
func NewRegistry() *Registry {
	return &Registry{
		entries: map[string]entry{},
	}
}

// Register adds a gateway under its configured identifier
func (r *Registry) Register(cfg Config, gw Gateway) error {
	if cfg.ID == "" {
		return fmt.Errorf("gateway: cannot register adapter without an id")
	}
	if gw == nil {
		return fmt.Errorf("gateway: cannot register nil adapter for %s", cfg.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[cfg.ID]; exists {
		return fmt.Errorf("gateway: %s already registered", cfg.ID)
	}
	r.entries[cfg.ID] = entry{cfg: cfg, gw: gw}
	return nil
}

// Resolve returns the adapter for id if it is active and supports the given
// currency and channel. A missing or unsupported gateway returns (nil, false)
// rather than an error; it is not a failed transaction.
func (r *Registry) Resolve(id, currency, channel string) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok || !e.cfg.Active {
		return nil, false
	}
	if !matches(e.cfg.SupportedCurrencies, currency) {
		return nil, false
	}
	if !matches(e.cfg.Channels, channel) {
		return nil, false
	}
	return e.gw, true
}

// Get returns the adapter for id if it is active, ignoring currency/channel scoping
func (r *Registry) Get(id string) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok || !e.cfg.Active {
		return nil, false
	}
	return e.gw, true
}

// List returns the configurations of all active gateways supporting the given
// currency, ordered by identifier.
func (r *Registry) List(currency string) []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Config
	for _, e := range r.entries {
		if !e.cfg.Active {
			continue
		}
		if !matches(e.cfg.SupportedCurrencies, currency) {
			continue
		}
		out = append(out, e.cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matches(scope []string, v string) bool {
	if len(scope) == 0 || v == "" {
		return true
	}
	for _, s := range scope {
		if s == v {
			return true
		}
	}
	return false
}
