package role

import (
	"fmt"
	"sync"
)

// Catalog manages the known role categories
type Catalog struct {
	mu          sync.RWMutex
	definitions map[Category]Definition
	order       []Category
}

// NewCatalog creates a catalog holding the given definitions
func NewCatalog(defs ...Definition) *Catalog {
	c := &Catalog{
		definitions: make(map[Category]Definition),
	}
	for _, def := range defs {
		c.Register(def)
	}
	return c
}

// Register adds or replaces a category definition
func (c *Catalog) Register(def Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.definitions[def.Category]; !ok {
		c.order = append(c.order, def.Category)
	}
	c.definitions[def.Category] = def
}

// Get retrieves a definition by category
func (c *Catalog) Get(category Category) (Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.definitions[category]
	if !ok {
		return Definition{}, fmt.Errorf("unknown role category: %s", category)
	}
	return def, nil
}

// Has reports whether the category is registered
func (c *Catalog) Has(category Category) bool {
	_, err := c.Get(category)
	return err == nil
}

// List returns all definitions in registration order
func (c *Catalog) List() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]Definition, 0, len(c.order))
	for _, category := range c.order {
		defs = append(defs, c.definitions[category])
	}
	return defs
}
