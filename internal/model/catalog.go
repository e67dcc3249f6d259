package model

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an adapter on first use.
type Factory func() (Adapter, error)

// Catalog maps model names to adapters. Construction is lazy and cached:
// a model is built once, on the first session that asks for it, and shared
// by every later session.
type Catalog struct {
	mu        sync.Mutex
	factories map[string]Factory
	loaded    map[string]Adapter
	infos     map[string]Info
}

func NewCatalog() *Catalog {
	return &Catalog{
		factories: make(map[string]Factory),
		loaded:    make(map[string]Adapter),
		infos:     make(map[string]Info),
	}
}

// Register adds a model under info.ID. Registering the same id twice
// replaces the earlier entry.
func (c *Catalog) Register(info Info, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[info.ID] = factory
	c.infos[info.ID] = info
	delete(c.loaded, info.ID)
}

// Get returns the adapter for name, constructing it on first use.
func (c *Catalog) Get(name string) (Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.loaded[name]; ok {
		return a, nil
	}
	factory, ok := c.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	a, err := factory()
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", name, err)
	}
	c.loaded[name] = a
	return a, nil
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.factories[name]
	return ok
}

// List returns the registered models, default model first, then by id.
func (c *Catalog) List() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]Info, 0, len(c.infos))
	for _, info := range c.infos {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Default != infos[j].Default {
			return infos[i].Default
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}
