// Package suites names the test groups phaserun can run.
//
// A Catalog maps names to factories creating a fresh test group value for
// every run, so runs of the same group never share state.
package suites

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Factory creates a test group value.
type Factory func() any

// Catalog holds named test group factories. It is safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds a named test group. Names must be unique.
func (c *Catalog) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("test group name cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("test group %q has no factory", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.factories[name]; ok {
		return fmt.Errorf("test group %q registered twice", name)
	}
	c.factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (c *Catalog) MustRegister(name string, f Factory) {
	if err := c.Register(name, f); err != nil {
		panic(err)
	}
}

// Names returns the registered names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.factories))
}

// Available returns the registered names as a set.
func (c *Catalog) Available() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.factories))
	for name := range c.factories {
		out[name] = true
	}
	return out
}

// New creates a fresh value of the named test group.
func (c *Catalog) New(name string) (any, error) {
	c.mu.RLock()
	f, ok := c.factories[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown test group %q", name)
	}
	return f(), nil
}

// Groups creates fresh values of the named test groups, in order. With no
// names, every registered group is created in name order.
func (c *Catalog) Groups(names ...string) ([]any, error) {
	if len(names) == 0 {
		names = c.Names()
	}
	groups := make([]any, 0, len(names))
	for _, name := range names {
		g, err := c.New(name)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}
