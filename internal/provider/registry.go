package provider

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry manages all registered payment/messaging providers, keyed by
// provider name as it appears in the webhook URL.
type Registry struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[a.Name()] = a
	log.Info().
		Str("provider", a.Name()).
		Str("algorithm", string(a.Profile().Algorithm)).
		Int("rate_limit_per_min", a.Profile().RateLimitPerMin).
		Msg("registered provider")
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	if !ok {
		return nil, &Error{
			Code:    ErrCodeNotRegistered,
			Message: fmt.Sprintf("provider %s not registered", name),
		}
	}
	return a, nil
}

// List returns the names of all registered providers.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for n := range r.adapters {
		names = append(names, n)
	}
	return names
}
