package provider

import (
	"sort"
	"strings"
	"sync"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/logger"
)

// Constructor builds a provider instance from its credentials. Constructors
// reject credentials of the wrong variant with a configuration error.
type Constructor func(creds Credentials) (Provider, error)

// Factory holds the name→constructor dispatch table and performs
// capability-based post-construction wiring.
type Factory struct {
	constructors map[string]Constructor
	sessions     SessionManager
	logger       logger.Logger
	mu           sync.RWMutex
}

// NewFactory creates a factory. The session manager may be nil when no
// stateful channel is configured; session-aware providers then fail
// validation rather than construction.
func NewFactory(sessions SessionManager, log logger.Logger) *Factory {
	if log == nil {
		log = logger.Discard
	}
	return &Factory{
		constructors: make(map[string]Constructor),
		sessions:     sessions,
		logger:       log,
	}
}

// Register stores a constructor under name. Re-registering overwrites the
// previous constructor with a warning; it is not an error so built-ins can be
// replaced in tests and by embedders.
func (f *Factory) Register(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.constructors[name]; exists {
		f.logger.Warn("Overwriting registered provider constructor", "provider", name)
	}
	f.constructors[name] = ctor
}

// Create constructs a provider instance for name from creds. Unknown names
// fail with a configuration error listing the currently registered names.
// After construction the factory probes the SessionAware capability and
// injects the shared session manager through its setter.
func (f *Factory) Create(name string, creds Credentials) (Provider, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[name]
	f.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrProviderNotRegistered,
			"provider %q is not registered (available: %s)", name, strings.Join(f.Available(), ", ")).
			WithProvider(name)
	}

	instance, err := ctor(creds)
	if err != nil {
		return nil, err
	}

	if aware, ok := instance.(SessionAware); ok && f.sessions != nil {
		aware.SetSessionManager(f.sessions)
		f.logger.Debug("Injected session manager", "provider", name)
	}

	return instance, nil
}

// Available returns the sorted list of registered provider names.
func (f *Factory) Available() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
