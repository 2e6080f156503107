package provider

import (
	"context"
	"sort"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/logger"
)

// TenantConfig is one tenant-scoped provider configuration row.
type TenantConfig struct {
	Provider    string
	Priority    int
	Enabled     bool
	Credentials Credentials
}

// TenantConfigStore is the port to the external tenant-scoped datastore for
// provider configuration lookups.
type TenantConfigStore interface {
	// ProviderConfigs returns the tenant's configurations for a channel.
	ProviderConfigs(ctx context.Context, tenantID string, ch channel.Channel) ([]TenantConfig, error)
}

// Selector resolves (channel, tenant, optional explicit provider) to a
// concrete validated provider instance.
type Selector struct {
	registry *Registry
	configs  TenantConfigStore
	logger   logger.Logger
}

// NewSelector creates a selector over the registry and tenant config store.
func NewSelector(registry *Registry, configs TenantConfigStore, log logger.Logger) *Selector {
	if log == nil {
		log = logger.Discard
	}
	return &Selector{
		registry: registry,
		configs:  configs,
		logger:   log,
	}
}

// Select resolves a validated provider. When requested is non-empty and
// matches an enabled configuration for the channel, that provider is used;
// otherwise the enabled configuration with the lowest priority value wins.
// Configurations that fail validation are skipped in priority order. If none
// qualifies the result is a configuration error, which is non-retryable.
func (s *Selector) Select(ctx context.Context, ch channel.Channel, tenantID, requested string) (Provider, error) {
	configs, err := s.configs.ProviderConfigs(ctx, tenantID, ch)
	if err != nil {
		return nil, errors.Newf(errors.ErrNoProviderConfigured,
			"loading provider configs for tenant %q channel %q: %v", tenantID, ch, err).
			WithTenant(tenantID).WithCause(err)
	}

	candidates := make([]TenantConfig, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled || cfg.Credentials == nil || !cfg.Credentials.IsEnabled() {
			continue
		}
		if requested != "" && cfg.Provider != requested {
			continue
		}
		candidates = append(candidates, cfg)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	var lastErr error
	for _, cfg := range candidates {
		instance, err := s.registry.GetProvider(ctx, cfg.Provider, cfg.Credentials, true)
		if err != nil {
			s.logger.Warn("Skipping provider that failed validation",
				"provider", cfg.Provider, "tenant", tenantID, "channel", ch.String(), "error", err)
			lastErr = err
			continue
		}
		return instance, nil
	}

	selErr := errors.Newf(errors.ErrNoProviderConfigured,
		"no enabled validated provider for tenant %q on channel %q", tenantID, ch).
		WithTenant(tenantID)
	if lastErr != nil {
		selErr = selErr.WithCause(lastErr)
	}
	return nil, selErr
}
