package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns the same artifact ID every time.
//
// Golden snapshots that mention artifact IDs stay byte-identical across
// runs.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed ID generator. If id is empty,
// Generate returns "artifact-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "artifact-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
//
// Implements executor.IDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequentialIDGenerator returns prefix-1, prefix-2, ... so tests can count
// compilations by looking at the IDs handed out.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialIDGenerator creates a generator whose first ID is prefix-1.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Issued returns how many IDs have been generated.
func (g *SequentialIDGenerator) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}
