package templating

import (
	"fmt"
	"sort"
	"sync"
)

// Extension contributes helpers and globals to an Environment.
type Extension interface {
	Name() string
	Register(env *Environment) error
}

// ExtensionFunc adapts a plain function into an Extension.
type ExtensionFunc struct {
	ExtensionName string
	Fn            func(env *Environment) error
}

func (e ExtensionFunc) Name() string { return e.ExtensionName }

func (e ExtensionFunc) Register(env *Environment) error { return e.Fn(env) }

var (
	registryMu sync.RWMutex
	registry   = map[string]Extension{}
)

// RegisterExtension makes ext available to manifests under ext.Name().
// Registering the same name twice panics.
func RegisterExtension(ext Extension) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := ext.Name()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("templating: extension %q registered twice", name))
	}
	registry[name] = ext
}

func lookupExtension(name string) (Extension, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ext, ok := registry[name]
	return ext, ok
}

// Extensions lists registered extension names in sorted order.
func Extensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
