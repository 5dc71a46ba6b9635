package runtime

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Settings carries the tunables every executor backend receives.
type Settings struct {
	Logger zerolog.Logger
	// SpawnDelay and MaxSpawnRetries keep the backend's defaults when nil.
	// A zero value is applied as is.
	SpawnDelay      *time.Duration
	MaxSpawnRetries *int
	DrainTimeout    time.Duration
}

// Factory constructs an executor.
type Factory func(Settings) Executor

// ErrUnknownExecutor is returned by New for a name nothing registered.
var ErrUnknownExecutor = errors.New("unknown executor")

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
)

// Register installs factory under name, replacing any earlier registration.
// Backends call it from init.
func Register(name string, factory Factory) {
	if name == "" || factory == nil {
		panic("runtime.Register: name and factory are required")
	}
	registryMu.Lock()
	factories[name] = factory
	registryMu.Unlock()
}

// Names lists the registered executor names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the executor registered under name.
func New(name string, settings Settings) (Executor, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %s)", ErrUnknownExecutor, name, strings.Join(Names(), ", "))
	}
	return factory(settings), nil
}
