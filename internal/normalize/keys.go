package normalize

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// KeyGenerator produces table keys for records without a primary key.
type KeyGenerator interface {
	Generate() string
}

// UUIDKeys generates time-sortable UUIDv7 keys. Stateless and safe for
// concurrent use.
type UUIDKeys struct{}

// Generate returns a hyphenated UUIDv7.
func (UUIDKeys) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceKeys generates prefix1, prefix2, ... in order. Safe for
// concurrent use.
type SequenceKeys struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceKeys creates a sequence starting at prefix1.
func NewSequenceKeys(prefix string) *SequenceKeys {
	return &SequenceKeys{prefix: prefix}
}

// Generate returns the next key in the sequence.
func (g *SequenceKeys) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}
