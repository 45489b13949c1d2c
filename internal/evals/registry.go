package evals

import (
	"bytes"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rubriq/appraise/internal/domain"
)

// Factory builds an algorithm from its raw YAML parameters. The params
// node holds the run config's algorithm.params subtree; a nil or empty
// node keeps every default.
type Factory func(params *yaml.Node, deps Dependencies) (Algorithm, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
)

// Register installs a factory under an evaluation name, replacing any
// existing registration. The built-in algorithms register themselves
// from init, so importing this package is enough to use them.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// New constructs the algorithm registered under name from its YAML
// parameters. Unknown names report the registered alternatives since
// the name is user-supplied configuration.
func New(name string, params *yaml.Node, deps Dependencies) (Algorithm, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, domain.NewConfigError(
			"unknown evaluation algorithm %q, available algorithms: %v", name, Names())
	}
	return factory(params, deps)
}

// Names returns the registered evaluation names in sorted order.
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

// decodeParams strictly decodes an algorithm's YAML parameters into
// out, leaving out untouched when the node is nil or empty. Unknown
// fields are rejected so misspelled parameters fail the run instead of
// silently keeping defaults.
func decodeParams(params *yaml.Node, out any) error {
	if params == nil || params.IsZero() {
		return nil
	}

	raw, err := yaml.Marshal(params)
	if err != nil {
		return domain.NewInternalError("algorithm params re-encode failed: %v", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return domain.NewConfigError("algorithm params decode failed: %v", err)
	}
	return nil
}
