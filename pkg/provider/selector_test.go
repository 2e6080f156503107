package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
)

// staticConfigStore serves a fixed config list for every tenant/channel.
type staticConfigStore struct {
	configs []TenantConfig
	err     error
}

func (s staticConfigStore) ProviderConfigs(ctx context.Context, tenantID string, ch channel.Channel) ([]TenantConfig, error) {
	return s.configs, s.err
}

func newSelectorFixture(store TenantConfigStore, providers map[string]*fakeProvider) *Selector {
	f := NewFactory(nil, nil)
	for name, fp := range providers {
		f.Register(name, fakeConstructor(fp))
	}
	return NewSelector(NewRegistry(f, nil), store, nil)
}

func TestSelectorPicksLowestPriority(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	backup := &fakeProvider{name: "backup"}
	s := newSelectorFixture(staticConfigStore{configs: []TenantConfig{
		{Provider: "backup", Priority: 2, Enabled: true, Credentials: fakeCredentials{Token: "b", Enabled: true}},
		{Provider: "primary", Priority: 1, Enabled: true, Credentials: fakeCredentials{Token: "a", Enabled: true}},
	}}, map[string]*fakeProvider{"primary": primary, "backup": backup})

	p, err := s.Select(context.Background(), channel.Email, "tenant-1", "")
	require.NoError(t, err)
	assert.Equal(t, "primary", p.Name())
}

func TestSelectorHonorsExplicitOverride(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	backup := &fakeProvider{name: "backup"}
	s := newSelectorFixture(staticConfigStore{configs: []TenantConfig{
		{Provider: "primary", Priority: 1, Enabled: true, Credentials: fakeCredentials{Token: "a", Enabled: true}},
		{Provider: "backup", Priority: 2, Enabled: true, Credentials: fakeCredentials{Token: "b", Enabled: true}},
	}}, map[string]*fakeProvider{"primary": primary, "backup": backup})

	p, err := s.Select(context.Background(), channel.Email, "tenant-1", "backup")
	require.NoError(t, err)
	assert.Equal(t, "backup", p.Name())
}

func TestSelectorSkipsDisabledConfigs(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	backup := &fakeProvider{name: "backup"}
	s := newSelectorFixture(staticConfigStore{configs: []TenantConfig{
		{Provider: "primary", Priority: 1, Enabled: false, Credentials: fakeCredentials{Token: "a", Enabled: true}},
		{Provider: "backup", Priority: 2, Enabled: true, Credentials: fakeCredentials{Token: "b", Enabled: true}},
	}}, map[string]*fakeProvider{"primary": primary, "backup": backup})

	p, err := s.Select(context.Background(), channel.Email, "tenant-1", "")
	require.NoError(t, err)
	assert.Equal(t, "backup", p.Name())
}

func TestSelectorSkipsDisabledCredentials(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	backup := &fakeProvider{name: "backup"}
	s := newSelectorFixture(staticConfigStore{configs: []TenantConfig{
		{Provider: "primary", Priority: 1, Enabled: true, Credentials: fakeCredentials{Token: "a", Enabled: false}},
		{Provider: "backup", Priority: 2, Enabled: true, Credentials: fakeCredentials{Token: "b", Enabled: true}},
	}}, map[string]*fakeProvider{"primary": primary, "backup": backup})

	p, err := s.Select(context.Background(), channel.Email, "tenant-1", "")
	require.NoError(t, err)
	assert.Equal(t, "backup", p.Name())
}

func TestSelectorFallsThroughFailedValidation(t *testing.T) {
	primary := &fakeProvider{
		name:        "primary",
		validateErr: errors.New(errors.ErrSendFailed, "endpoint down"),
	}
	backup := &fakeProvider{name: "backup"}
	s := newSelectorFixture(staticConfigStore{configs: []TenantConfig{
		{Provider: "primary", Priority: 1, Enabled: true, Credentials: fakeCredentials{Token: "a", Enabled: true}},
		{Provider: "backup", Priority: 2, Enabled: true, Credentials: fakeCredentials{Token: "b", Enabled: true}},
	}}, map[string]*fakeProvider{"primary": primary, "backup": backup})

	p, err := s.Select(context.Background(), channel.Email, "tenant-1", "")
	require.NoError(t, err)
	assert.Equal(t, "backup", p.Name())
}

func TestSelectorNoCandidates(t *testing.T) {
	s := newSelectorFixture(staticConfigStore{}, nil)

	_, err := s.Select(context.Background(), channel.Email, "tenant-1", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNoProviderConfigured, errors.CodeOf(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestSelectorOverrideNotConfigured(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	s := newSelectorFixture(staticConfigStore{configs: []TenantConfig{
		{Provider: "primary", Priority: 1, Enabled: true, Credentials: fakeCredentials{Token: "a", Enabled: true}},
	}}, map[string]*fakeProvider{"primary": primary})

	_, err := s.Select(context.Background(), channel.Email, "tenant-1", "missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNoProviderConfigured, errors.CodeOf(err))
}

func TestSelectorConfigStoreError(t *testing.T) {
	s := newSelectorFixture(staticConfigStore{err: context.DeadlineExceeded}, nil)

	_, err := s.Select(context.Background(), channel.Email, "tenant-1", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNoProviderConfigured, errors.CodeOf(err))
}
