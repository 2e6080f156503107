package provider

import (
	"context"
	"sync/atomic"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
)

// fakeCredentials is a minimal credential variant for wiring tests.
type fakeCredentials struct {
	Token   string `json:"token"`
	Enabled bool   `json:"enabled"`
}

func (c fakeCredentials) ProviderType() string { return "fake" }
func (c fakeCredentials) Channel() channel.Channel { return channel.Email }
func (c fakeCredentials) IsEnabled() bool { return c.Enabled }
func (c fakeCredentials) Validate() error {
	if c.Token == "" {
		return errors.New(errors.ErrMissingCredentials, `missing required credential field "token"`)
	}
	return nil
}

// fakeProvider counts validations and sends; validateErr makes Validate fail.
type fakeProvider struct {
	name        string
	validateErr error
	validations int32
	sends       int32
	sessions    SessionManager
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Channel() channel.Channel { return channel.Email }

func (p *fakeProvider) Send(ctx context.Context, req *DeliveryRequest) *DeliveryResult {
	atomic.AddInt32(&p.sends, 1)
	return Succeed("fake-1")
}

func (p *fakeProvider) Validate(ctx context.Context) error {
	atomic.AddInt32(&p.validations, 1)
	return p.validateErr
}

func (p *fakeProvider) RequiredCredentials() []string { return []string{"token"} }
func (p *fakeProvider) Metadata() Metadata { return Metadata{DisplayName: "Fake"} }

func (p *fakeProvider) SetSessionManager(sm SessionManager) { p.sessions = sm }

// fakeSessionManager satisfies SessionManager for injection tests.
type fakeSessionManager struct{}

func (fakeSessionManager) Session(ctx context.Context, creds Credentials) (Session, error) {
	return nil, errors.New(errors.ErrNotConnected, "no session in tests")
}

func (fakeSessionManager) Release(key string) error { return nil }

func fakeConstructor(p *fakeProvider) Constructor {
	return func(creds Credentials) (Provider, error) {
		if err := creds.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	}
}
