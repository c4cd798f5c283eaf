package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceGenerator_DefaultPrefix(t *testing.T) {
	g := NewSequenceGenerator("")
	assert.Equal(t, "new-1", g.Generate())
	assert.Equal(t, "new-2", g.Generate())
}

func TestSequenceGenerator_CustomPrefix(t *testing.T) {
	g := NewSequenceGenerator("draft-")
	assert.Equal(t, "draft-1", g.Generate())
}

func TestSequenceGenerator_ConcurrentUnique(t *testing.T) {
	g := NewSequenceGenerator("")
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
}
