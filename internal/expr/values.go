package expr

import (
	"fmt"
	"iter"
	"sort"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Env is a captured environment: a set of named variables shared by the
// lambdas of a pipeline. Identity is the pointer, so two lambdas reading the
// same field of the same Env read the same variable.
//
// Fields can be reassigned between executions. A compiled pipeline never
// sees the Env itself once its members have been hoisted into context
// parameters; it sees the values read at extraction time.
type Env struct {
	mu     sync.RWMutex
	name   string
	fields map[string]any
}

// NewEnv returns an empty environment. The name only appears in diagnostics.
func NewEnv(name string) *Env {
	return &Env{name: name, fields: make(map[string]any)}
}

// Name returns the diagnostic name of the environment.
func (e *Env) Name() string { return e.name }

// Set assigns a field and returns the environment for chaining.
func (e *Env) Set(field string, v any) *Env {
	if i, ok := v.(int); ok {
		v = int64(i)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fields[NormalizeField(field)] = v
	return e
}

// Lookup reads a field.
func (e *Env) Lookup(field string) (any, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.fields[NormalizeField(field)]
	if !ok {
		return nil, fmt.Errorf("env %s: no field %q", e.name, field)
	}
	return v, nil
}

// Fields returns the field names in sorted order.
func (e *Env) Fields() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.fields))
	for k := range e.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NormalizeField returns the NFC form of a field name, so that a field
// spelled with combining characters and one spelled with precomposed
// characters name the same variable.
func NormalizeField(field string) string {
	return norm.NFC.String(field)
}

// Sequence is a one-shot source of elements iterated through a Cursor.
type Sequence struct {
	elem Type
	all  iter.Seq[any]
}

// NewSequence wraps an iterator. elem is the static element type.
func NewSequence(elem Type, all iter.Seq[any]) *Sequence {
	return &Sequence{elem: elem, all: all}
}

// SliceSequence returns a sequence over vals that does not expose them as
// an indexable array.
func SliceSequence(elem Type, vals []any) *Sequence {
	return NewSequence(elem, func(yield func(any) bool) {
		for _, v := range vals {
			if !yield(v) {
				return
			}
		}
	})
}

// Elem returns the static element type.
func (s *Sequence) Elem() Type { return s.elem }

// All returns the underlying iterator.
func (s *Sequence) All() iter.Seq[any] { return s.all }

// Open starts a pull-style iteration.
func (s *Sequence) Open() *Cursor {
	next, stop := iter.Pull(s.all)
	return &Cursor{next: next, stop: stop}
}

// Cursor is an open iteration over a Sequence.
type Cursor struct {
	next    func() (any, bool)
	stop    func()
	current any
	closed  bool
}

// Next advances the cursor. It returns false once the sequence is exhausted.
func (c *Cursor) Next() bool {
	if c.closed {
		return false
	}
	v, ok := c.next()
	if !ok {
		return false
	}
	c.current = v
	return true
}

// Current returns the element of the last successful Next.
func (c *Cursor) Current() any { return c.current }

// Close stops the underlying iterator. Close is idempotent.
func (c *Cursor) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.stop()
}

// Ints converts Go ints to an int array value.
func Ints(vs ...int) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = int64(v)
	}
	return out
}

// Range returns the int array [start, start+count).
func Range(start, count int) []any {
	out := make([]any, count)
	for i := range out {
		out[i] = int64(start + i)
	}
	return out
}
