package testutil

import "sync"

// FixedKeys hands out predetermined record keys in order, so generated keys
// in golden output stay stable. Safe for concurrent use.
type FixedKeys struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

// NewFixedKeys creates a generator returning keys in order.
func NewFixedKeys(keys ...string) *FixedKeys {
	return &FixedKeys{keys: keys}
}

// Generate returns the next key. It panics once the keys are exhausted: a
// test normalized more keyless records than it declared.
func (g *FixedKeys) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.keys) {
		panic("testutil: fixed keys exhausted")
	}
	k := g.keys[g.idx]
	g.idx++
	return k
}

// Remaining reports how many keys are left.
func (g *FixedKeys) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys) - g.idx
}
