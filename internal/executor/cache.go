package executor

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/roach88/fuseq/internal/backend"
	"github.com/roach88/fuseq/internal/equiv"
	"github.com/roach88/fuseq/internal/expr"
)

// Artifact is a compiled plan. It is created once per cache key and never
// modified afterwards.
type Artifact struct {
	// ID names the artifact in logs and traces.
	ID string

	// Key is the parameterized plan the artifact was compiled from.
	Key equiv.Key

	// Code is the fused loop handed to the backend.
	Code expr.Expr

	callable *backend.Callable
}

// ParamTypes returns the declared types of the artifact's parameters, in
// argument order.
func (a *Artifact) ParamTypes() []expr.Type { return a.callable.ParamTypes() }

// ResultType returns the type of the aggregate value.
func (a *Artifact) ResultType() expr.Type { return a.callable.ResultType() }

// Invoke runs the compiled loop with positional arguments.
func (a *Artifact) Invoke(args ...any) (any, error) {
	return a.callable.Invoke(args...)
}

// Cache stores compiled artifacts by parameterized plan.
//
// GetOrAdd returns the artifact for key, calling compile on a miss. hit is
// true when no compilation was needed. Implementations must be safe for
// concurrent use; concurrent misses on the same key may each call compile,
// but must all return the same artifact.
type Cache interface {
	GetOrAdd(key equiv.Key, compile func() (*Artifact, error)) (a *Artifact, hit bool, err error)
	Len() int
}

// MapCache is the default Cache. Keys are bucketed by structural hash in a
// concurrent map; each bucket holds the artifacts whose keys share that
// hash and is searched with the alpha-equivalence comparer. Lookups on
// different buckets never contend.
type MapCache struct {
	m *xsync.Map[uint64, *bucket]
}

// bucket holds the artifacts whose keys hash alike.
type bucket struct {
	mu      sync.RWMutex
	entries []*Artifact // GUARDED_BY(mu)
}

// NewMapCache returns an empty cache.
func NewMapCache() *MapCache {
	return &MapCache{m: xsync.NewMap[uint64, *bucket]()}
}

// GetOrAdd implements Cache. compile runs without any lock held.
func (c *MapCache) GetOrAdd(key equiv.Key, compile func() (*Artifact, error)) (*Artifact, bool, error) {
	b, _ := c.m.LoadOrCompute(key.Hash(), func() (*bucket, bool) {
		return &bucket{}, false
	})

	b.mu.RLock()
	found := b.find(key)
	b.mu.RUnlock()
	if found != nil {
		return found, true, nil
	}

	a, err := compile()
	if err != nil {
		return nil, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// Another caller may have compiled the same key meanwhile; keep the
	// first artifact so every caller sees one.
	if found := b.find(key); found != nil {
		return found, false, nil
	}
	b.entries = append(b.entries, a)
	return a, false, nil
}

// Len implements Cache.
func (c *MapCache) Len() int {
	n := 0
	c.m.Range(func(_ uint64, b *bucket) bool {
		b.mu.RLock()
		n += len(b.entries)
		b.mu.RUnlock()
		return true
	})
	return n
}

func (b *bucket) find(key equiv.Key) *Artifact {
	for _, a := range b.entries {
		if a.Key.Equal(key) {
			return a
		}
	}
	return nil
}

// NoopCache never stores anything, so every lookup compiles.
type NoopCache struct{}

// GetOrAdd implements Cache.
func (NoopCache) GetOrAdd(_ equiv.Key, compile func() (*Artifact, error)) (*Artifact, bool, error) {
	a, err := compile()
	return a, false, err
}

// Len implements Cache.
func (NoopCache) Len() int { return 0 }
