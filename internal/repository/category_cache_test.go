package repository

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCategoryCacheKeysAreCaseAndSpaceInsensitive(t *testing.T) {
	c := NewCategoryCache()
	id := uuid.New()

	c.Put("  Groceries ", id)

	got, ok := c.Get("GROCERIES")
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = c.Get("Grocery")
	assert.False(t, ok)
}

func TestCategoryCacheReset(t *testing.T) {
	c := NewCategoryCache()
	c.Put("Dining", uuid.New())
	c.Put("Travel", uuid.New())
	assert.Equal(t, 2, c.Len())

	c.Reset()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("dining")
	assert.False(t, ok)
}

func TestCategoryCacheConcurrentUse(t *testing.T) {
	c := NewCategoryCache()
	id := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put("Health", id)
			c.Get("health")
		}()
	}
	wg.Wait()

	got, ok := c.Get("HEALTH")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
