package output

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/junsooki/LaserField/internal/config"
)

// Factory creates an output. The common parameters are filled by flag
// parsing before Initialize and must be treated as read-only.
type Factory func(common *config.Common, log *zap.Logger) Output

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register makes a backend available under name. Backend packages call it
// from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Available returns the registered names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the backend registered under name. A nil log discards the
// backend's diagnostics.
func New(name string, common *config.Common, log *zap.Logger) (Output, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknown, name, Available())
	}
	if log == nil {
		log = zap.NewNop()
	}
	return factory(common, log.With(zap.String("output", name))), nil
}
