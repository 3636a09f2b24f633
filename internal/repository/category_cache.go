package repository

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// CategoryCache maps lower-cased category names to global category ids. Only
// hits are stored and entries are never invalidated, since the global
// vocabulary is seeded once and not edited at runtime.
type CategoryCache struct {
	mu  sync.RWMutex
	ids map[string]uuid.UUID
}

func NewCategoryCache() *CategoryCache {
	return &CategoryCache{ids: make(map[string]uuid.UUID)}
}

func (c *CategoryCache) Get(name string) (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[cacheKey(name)]
	return id, ok
}

func (c *CategoryCache) Put(name string, id uuid.UUID) {
	c.mu.Lock()
	c.ids[cacheKey(name)] = id
	c.mu.Unlock()
}

func (c *CategoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Reset drops every entry.
func (c *CategoryCache) Reset() {
	c.mu.Lock()
	c.ids = make(map[string]uuid.UUID)
	c.mu.Unlock()
}

func cacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
