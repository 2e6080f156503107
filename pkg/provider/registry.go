package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/logger"
)

// Registry caches validated provider instances keyed by (name, credential
// fingerprint). At most one validated instance exists per distinct key while
// cached; an instance that fails validation is never cached or returned.
type Registry struct {
	factory   *Factory
	instances map[string]Provider
	logger    logger.Logger
	mu        sync.RWMutex
}

// NewRegistry creates a registry over the given factory.
func NewRegistry(factory *Factory, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Discard
	}
	return &Registry{
		factory:   factory,
		instances: make(map[string]Provider),
		logger:    log,
	}
}

// GetProvider returns the cached validated instance for (name, creds) or
// constructs and validates a fresh one. Validation failure is a
// configuration error: fail fast, never retried, nothing cached.
func (r *Registry) GetProvider(ctx context.Context, name string, creds Credentials, useCache bool) (Provider, error) {
	key := Fingerprint(name, creds)

	if useCache {
		r.mu.RLock()
		instance, ok := r.instances[key]
		r.mu.RUnlock()
		if ok {
			return instance, nil
		}
	}

	instance, err := r.factory.Create(name, creds)
	if err != nil {
		return nil, err
	}

	if err := instance.Validate(ctx); err != nil {
		r.logger.Error("Provider validation failed", "provider", name, "error", err)
		if errors.IsConfiguration(err) {
			return nil, err
		}
		return nil, errors.Newf(errors.ErrProviderValidationFailed,
			"provider %q failed validation: %v", name, err).
			WithProvider(name).WithCause(err)
	}

	if useCache {
		r.mu.Lock()
		// Another caller may have raced the construction; keep the first
		// cached instance so the at-most-one invariant holds.
		if existing, ok := r.instances[key]; ok {
			r.mu.Unlock()
			return existing, nil
		}
		r.instances[key] = instance
		r.mu.Unlock()
		r.logger.Info("Provider instance cached", "provider", name, "key", key)
	}

	return instance, nil
}

// ClearCache evicts cached instances. With an empty name every instance is
// evicted; otherwise only keys prefixed by the name (used for credential
// rotation of a single provider).
func (r *Registry) ClearCache(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		r.instances = make(map[string]Provider)
		r.logger.Info("Provider cache cleared")
		return
	}

	prefix := name + ":"
	for key := range r.instances {
		if strings.HasPrefix(key, prefix) {
			delete(r.instances, key)
		}
	}
	r.logger.Info("Provider cache cleared", "provider", name)
}

// ListProviders returns the names registered with the underlying factory.
func (r *Registry) ListProviders() []string {
	return r.factory.Available()
}

// CachedCount returns the number of cached validated instances.
func (r *Registry) CachedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Health re-validates every cached instance and reports per-key results.
func (r *Registry) Health(ctx context.Context) map[string]error {
	r.mu.RLock()
	instances := make(map[string]Provider, len(r.instances))
	for key, instance := range r.instances {
		instances[key] = instance
	}
	r.mu.RUnlock()

	health := make(map[string]error, len(instances))
	for key, instance := range instances {
		health[key] = instance.Validate(ctx)
	}
	return health
}
