package pricing

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed tables/*.yaml
var builtin embed.FS

// Registry manages pricing providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Names must be unique.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return p, nil
}

// List returns registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindProviderForModel searches all providers for one that prices model.
func (r *Registry) FindProviderForModel(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.SupportsModel(model) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no provider found for model %q", model)
}

// Cost prices a call in budget units. An empty provider name searches all
// providers for the model.
func (r *Registry) Cost(provider, model string, inputTokens, outputTokens int64) (float64, error) {
	var (
		p   Provider
		err error
	)
	if provider == "" {
		p, err = r.FindProviderForModel(model)
	} else {
		p, err = r.Get(provider)
	}
	if err != nil {
		return 0, err
	}

	in, err := p.PricePerToken(model, TokenInput)
	if err != nil {
		return 0, err
	}
	out, err := p.PricePerToken(model, TokenOutput)
	if err != nil {
		return 0, err
	}
	return float64(inputTokens)*in + float64(outputTokens)*out, nil
}

// NewDefaultRegistry loads the built-in tables, then every *.yaml file in
// dir. A table in dir replaces the built-in table of the same provider.
// dir may be empty.
func NewDefaultRegistry(dir string) (*Registry, error) {
	tables := make(map[string]*Table)

	entries, err := builtin.ReadDir("tables")
	if err != nil {
		return nil, fmt.Errorf("read builtin pricing: %w", err)
	}
	for _, e := range entries {
		data, err := builtin.ReadFile("tables/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read builtin pricing %s: %w", e.Name(), err)
		}
		t, err := ParseTable(data)
		if err != nil {
			return nil, fmt.Errorf("builtin pricing %s: %w", e.Name(), err)
		}
		tables[t.Provider] = t
	}

	if dir != "" {
		files, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read pricing dir %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
				continue
			}
			t, err := LoadTable(filepath.Join(dir, f.Name()))
			if err != nil {
				return nil, err
			}
			tables[t.Provider] = t
		}
	}

	r := NewRegistry()
	for _, t := range tables {
		if err := r.Register(NewTableProvider(t)); err != nil {
			return nil, err
		}
	}
	return r, nil
}
