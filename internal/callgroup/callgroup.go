// Package callgroup collapses concurrent calls by key.
//
// While a call for a key is in flight, later callers for the same key do
// not start a new one: they wait for the running call and receive its
// result. Once it returns the key is forgotten, so the next call runs
// again. Serve mode uses it to merge a manual rotation request with a
// scheduled one that is already running.
package callgroup

import "sync"

// Result is the outcome of a call. Shared is true for callers that joined
// a call started by someone else.
type Result[V any] struct {
	Val    V
	Err    error
	Shared bool
}

// Group collapses concurrent calls by key. The zero value is ready to use.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// DoChan runs fn unless a call for key is in flight, in which case the
// channel receives the result of that call. The channel receives exactly
// one value and is never closed.
func (g *Group[K, V]) DoChan(key K, fn func() (V, error)) <-chan Result[V] {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*call[V])
	}
	c, shared := g.calls[key]
	if !shared {
		c = &call[V]{done: make(chan struct{})}
		g.calls[key] = c
	}
	g.mu.Unlock()

	if !shared {
		go func() {
			c.val, c.err = fn()
			g.mu.Lock()
			delete(g.calls, key)
			g.mu.Unlock()
			close(c.done)
		}()
	}

	ch := make(chan Result[V], 1)
	go func() {
		<-c.done
		ch <- Result[V]{Val: c.val, Err: c.err, Shared: shared}
	}()
	return ch
}

// Do is the blocking form of DoChan.
func (g *Group[K, V]) Do(key K, fn func() (V, error)) (V, bool, error) {
	r := <-g.DoChan(key, fn)
	return r.Val, r.Shared, r.Err
}

// InFlight reports whether a call for key is running.
func (g *Group[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.calls[key]
	return ok
}
