package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-io/relaycore/pkg/errors"
)

func TestFactoryCreateUnknownProvider(t *testing.T) {
	f := NewFactory(nil, nil)
	f.Register("sendgrid", fakeConstructor(&fakeProvider{name: "sendgrid"}))
	f.Register("twilio", fakeConstructor(&fakeProvider{name: "twilio"}))

	_, err := f.Create("mailgun", fakeCredentials{Token: "t", Enabled: true})
	require.Error(t, err)
	assert.Equal(t, errors.ErrProviderNotRegistered, errors.CodeOf(err))
	// The failure names what is actually registered.
	assert.Contains(t, err.Error(), "sendgrid")
	assert.Contains(t, err.Error(), "twilio")
	assert.False(t, errors.IsRetryable(err))
}

func TestFactoryCreate(t *testing.T) {
	f := NewFactory(nil, nil)
	fp := &fakeProvider{name: "fake"}
	f.Register("fake", fakeConstructor(fp))

	p, err := f.Create("fake", fakeCredentials{Token: "t", Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, "fake", p.Name())
}

func TestFactoryCreateRejectsBadCredentials(t *testing.T) {
	f := NewFactory(nil, nil)
	f.Register("fake", fakeConstructor(&fakeProvider{name: "fake"}))

	_, err := f.Create("fake", fakeCredentials{Enabled: true})
	require.Error(t, err)
	assert.Equal(t, errors.ErrMissingCredentials, errors.CodeOf(err))
}

func TestFactoryRegisterOverwrites(t *testing.T) {
	f := NewFactory(nil, nil)
	first := &fakeProvider{name: "first"}
	second := &fakeProvider{name: "second"}

	f.Register("fake", fakeConstructor(first))
	f.Register("fake", fakeConstructor(second))

	p, err := f.Create("fake", fakeCredentials{Token: "t", Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, "second", p.Name())
}

func TestFactoryInjectsSessionManager(t *testing.T) {
	sm := fakeSessionManager{}
	f := NewFactory(sm, nil)
	fp := &fakeProvider{name: "fake"}
	f.Register("fake", fakeConstructor(fp))

	_, err := f.Create("fake", fakeCredentials{Token: "t", Enabled: true})
	require.NoError(t, err)
	assert.NotNil(t, fp.sessions)
}

func TestFactoryNilSessionManagerSkipsInjection(t *testing.T) {
	f := NewFactory(nil, nil)
	fp := &fakeProvider{name: "fake"}
	f.Register("fake", fakeConstructor(fp))

	_, err := f.Create("fake", fakeCredentials{Token: "t", Enabled: true})
	require.NoError(t, err)
	assert.Nil(t, fp.sessions)
}

func TestFactoryAvailableSorted(t *testing.T) {
	f := NewFactory(nil, nil)
	f.Register("twilio", fakeConstructor(&fakeProvider{name: "twilio"}))
	f.Register("fcm", fakeConstructor(&fakeProvider{name: "fcm"}))
	f.Register("sendgrid", fakeConstructor(&fakeProvider{name: "sendgrid"}))

	assert.Equal(t, []string{"fcm", "sendgrid", "twilio"}, f.Available())
}
