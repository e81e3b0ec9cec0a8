// Package views derives the projections the UI reads from the sync state,
// the selected date and the selected ride.
//
// Projections form a pull-based memoized graph. Sources hold inputs;
// derived values recompute lazily when an input version changes. Every read
// and write holds the graph lock, so a reader never observes a mix of old
// and new inputs.
package views

import (
	"sync"
)

// Graph owns a set of sources and derived values.
type Graph struct {
	mu    sync.Mutex
	clock uint64

	subMu  sync.Mutex
	nextID int
	subs   map[int]func()
}

func NewGraph() *Graph {
	return &Graph{subs: make(map[int]func())}
}

// Subscribe registers fn to run after every committed change. fn runs
// outside the graph lock and may read values. The returned func removes it.
func (g *Graph) Subscribe(fn func()) (cancel func()) {
	g.subMu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	g.subMu.Unlock()

	return func() {
		g.subMu.Lock()
		delete(g.subs, id)
		g.subMu.Unlock()
	}
}

func (g *Graph) notify() {
	g.subMu.Lock()
	fns := make([]func(), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (g *Graph) tick() uint64 {
	g.clock++
	return g.clock
}

// Version returns a counter that increases with every committed change.
func (g *Graph) Version() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clock
}

// Tx is an open write against the graph.
type Tx struct {
	g       *Graph
	changed bool
}

// Update applies several source writes atomically. Readers observe either
// none or all of them.
func (g *Graph) Update(fn func(tx *Tx)) {
	tx := &Tx{g: g}
	g.mu.Lock()
	fn(tx)
	g.mu.Unlock()
	if tx.changed {
		g.notify()
	}
}

// Put writes v to s within tx.
func Put[T any](tx *Tx, s *Source[T], v T) {
	s.value = v
	s.version = tx.g.tick()
	tx.changed = true
}

// Snap is a consistent read view of the graph.
type Snap struct{ g *Graph }

// Read runs fn with the graph locked. All values read through the Snap
// belong to the same input combination.
func (g *Graph) Read(fn func(s Snap)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(Snap{g: g})
}

// Get reads v within a Snap.
func Get[T any](_ Snap, v Value[T]) T {
	return v.getLocked()
}

// Value is a readable node of the graph.
type Value[T any] interface {
	Get() T
	getLocked() T
	versionLocked() uint64
}

type node interface {
	versionLocked() uint64
}

// Source is a writable input.
type Source[T any] struct {
	g       *Graph
	value   T
	version uint64
}

func NewSource[T any](g *Graph, initial T) *Source[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &Source[T]{g: g, value: initial, version: g.tick()}
}

func (s *Source[T]) Get() T {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	return s.value
}

func (s *Source[T]) Set(v T) {
	s.g.Update(func(tx *Tx) { Put(tx, s, v) })
}

// Modify replaces the value with fn applied to the current one.
func (s *Source[T]) Modify(fn func(T) T) {
	s.g.Update(func(tx *Tx) { Put(tx, s, fn(s.value)) })
}

func (s *Source[T]) getLocked() T          { return s.value }
func (s *Source[T]) versionLocked() uint64 { return s.version }

// Derived is a memoized function of other values.
type Derived[T any] struct {
	g       *Graph
	inputs  []node
	seen    []uint64
	compute func() T

	value   T
	version uint64
	valid   bool
}

func newDerived[T any](g *Graph, compute func() T, inputs ...node) *Derived[T] {
	return &Derived[T]{
		g:       g,
		inputs:  inputs,
		seen:    make([]uint64, len(inputs)),
		compute: compute,
	}
}

// Derive1 returns a value computed from a.
func Derive1[A, T any](g *Graph, a Value[A], fn func(A) T) *Derived[T] {
	return newDerived(g, func() T { return fn(a.getLocked()) }, a)
}

func Derive2[A, B, T any](g *Graph, a Value[A], b Value[B], fn func(A, B) T) *Derived[T] {
	return newDerived(g, func() T { return fn(a.getLocked(), b.getLocked()) }, a, b)
}

func Derive3[A, B, C, T any](g *Graph, a Value[A], b Value[B], c Value[C], fn func(A, B, C) T) *Derived[T] {
	return newDerived(g, func() T { return fn(a.getLocked(), b.getLocked(), c.getLocked()) }, a, b, c)
}

func (d *Derived[T]) Get() T {
	d.g.mu.Lock()
	defer d.g.mu.Unlock()
	return d.getLocked()
}

func (d *Derived[T]) getLocked() T {
	d.refreshLocked()
	return d.value
}

func (d *Derived[T]) versionLocked() uint64 {
	d.refreshLocked()
	return d.version
}

func (d *Derived[T]) refreshLocked() {
	stale := !d.valid
	for i, in := range d.inputs {
		if v := in.versionLocked(); v != d.seen[i] {
			d.seen[i] = v
			stale = true
		}
	}
	if !stale {
		return
	}
	d.value = d.compute()
	d.version++
	d.valid = true
}
