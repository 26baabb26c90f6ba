package executor

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/fuseq/internal/equiv"
	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/plan"
)

func keyFor(name string) equiv.Key {
	p := expr.NewParam(name, expr.ArrayOf(expr.IntType))
	return equiv.Key{Plan: &plan.Source{Ref: p, Elem: expr.IntType}, Params: []*expr.Param{p}}
}

func otherKey() equiv.Key {
	p := expr.NewParam("p0", expr.ArrayOf(expr.FloatType))
	return equiv.Key{Plan: &plan.Source{Ref: p, Elem: expr.FloatType}, Params: []*expr.Param{p}}
}

func TestMapCacheGetOrAdd(t *testing.T) {
	c := NewMapCache()
	compiles := 0
	compile := func(k equiv.Key, id string) func() (*Artifact, error) {
		return func() (*Artifact, error) {
			compiles++
			return &Artifact{ID: id, Key: k}, nil
		}
	}

	a, hit, err := c.GetOrAdd(keyFor("p0"), compile(keyFor("p0"), "first"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "first", a.ID)

	b, hit, err := c.GetOrAdd(keyFor("renamed"), compile(keyFor("renamed"), "second"))
	require.NoError(t, err)
	assert.True(t, hit, "alpha-equivalent keys share an artifact")
	assert.Same(t, a, b)

	d, hit, err := c.GetOrAdd(otherKey(), compile(otherKey(), "third"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "third", d.ID)

	assert.Equal(t, 2, compiles)
	assert.Equal(t, 2, c.Len())
}

func TestMapCacheDoesNotStoreFailures(t *testing.T) {
	c := NewMapCache()
	boom := errors.New("boom")
	_, _, err := c.GetOrAdd(keyFor("p0"), func() (*Artifact, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestMapCacheConcurrentMissesConverge(t *testing.T) {
	c := NewMapCache()
	var compiles atomic.Int64
	start := make(chan struct{})

	const workers = 32
	got := make([]*Artifact, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			<-start
			k := keyFor("p0")
			a, _, err := c.GetOrAdd(k, func() (*Artifact, error) {
				compiles.Add(1)
				return &Artifact{ID: "a", Key: k}, nil
			})
			got[w] = a
			return err
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, c.Len())
	assert.GreaterOrEqual(t, compiles.Load(), int64(1))
	for _, a := range got {
		assert.Same(t, got[0], a)
	}
}

func TestNoopCache(t *testing.T) {
	var c NoopCache
	n := 0
	for i := 0; i < 3; i++ {
		_, hit, err := c.GetOrAdd(keyFor("p0"), func() (*Artifact, error) { n++; return &Artifact{}, nil })
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, c.Len())
}
