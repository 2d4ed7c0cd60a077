// Package pending tracks callers waiting for a correlated reply.
//
// Each waiter is keyed by id and carries a deadline. A waiter completes on the
// first of: Resolve, Reject, its deadline elapsing, or RejectAll. Completion
// removes the waiter and stops its timer, so later calls for the same id are
// no-ops.
package pending

import (
	"context"
	"sync"
	"time"

	"pairlink/internal/errs"
)

// Result is what a waiter receives.
type Result[T any] struct {
	Value T
	Err   error
}

type waiter[T any] struct {
	ch    chan Result[T]
	timer *time.Timer
}

// Registry maps ids to waiters.
type Registry[T any] struct {
	what      string
	mu        sync.Mutex
	waiters   map[string]*waiter[T]
	onTimeout func(id string)
}

// New returns an empty Registry. what names the awaited reply in timeout errors.
func New[T any](what string) *Registry[T] {
	return &Registry[T]{what: what, waiters: make(map[string]*waiter[T])}
}

// OnTimeout installs a hook run after a waiter's deadline elapses.
func (r *Registry[T]) OnTimeout(fn func(id string)) {
	r.mu.Lock()
	r.onTimeout = fn
	r.mu.Unlock()
}

// Register adds a waiter for id that times out after timeout.
func (r *Registry[T]) Register(id string, timeout time.Duration) (<-chan Result[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.waiters[id]; ok {
		return nil, errs.Newf(errs.CodeAlreadyExists, "%s %q already pending", r.what, id)
	}
	w := &waiter[T]{ch: make(chan Result[T], 1)}
	w.timer = time.AfterFunc(timeout, func() { r.expire(id, w) })
	r.waiters[id] = w
	return w.ch, nil
}

// Resolve completes the waiter for id with v. It reports whether a waiter existed.
func (r *Registry[T]) Resolve(id string, v T) bool {
	return r.complete(id, Result[T]{Value: v})
}

// Reject completes the waiter for id with err. It reports whether a waiter existed.
func (r *Registry[T]) Reject(id string, err error) bool {
	return r.complete(id, Result[T]{Err: err})
}

// RejectAll completes every outstanding waiter with err.
func (r *Registry[T]) RejectAll(err error) {
	r.mu.Lock()
	ws := r.waiters
	r.waiters = make(map[string]*waiter[T])
	r.mu.Unlock()

	for _, w := range ws {
		w.timer.Stop()
		w.ch <- Result[T]{Err: err}
	}
}

// RejectMatching completes every waiter whose id satisfies match.
func (r *Registry[T]) RejectMatching(match func(id string) bool, err error) int {
	r.mu.Lock()
	var ws []*waiter[T]
	for id, w := range r.waiters {
		if match(id) {
			ws = append(ws, w)
			delete(r.waiters, id)
		}
	}
	r.mu.Unlock()

	for _, w := range ws {
		w.timer.Stop()
		w.ch <- Result[T]{Err: err}
	}
	return len(ws)
}

// Has reports whether a waiter for id is outstanding.
func (r *Registry[T]) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.waiters[id]
	return ok
}

// Len returns the number of outstanding waiters.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

func (r *Registry[T]) complete(id string, res Result[T]) bool {
	r.mu.Lock()
	w, ok := r.waiters[id]
	if ok {
		delete(r.waiters, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	w.timer.Stop()
	w.ch <- res
	return true
}

func (r *Registry[T]) expire(id string, w *waiter[T]) {
	r.mu.Lock()
	cur, ok := r.waiters[id]
	if !ok || cur != w {
		r.mu.Unlock()
		return
	}
	delete(r.waiters, id)
	hook := r.onTimeout
	r.mu.Unlock()

	w.ch <- Result[T]{Err: errs.Timeout(r.what)}
	if hook != nil {
		hook(id)
	}
}

// Wait blocks until ch delivers or ctx is done.
func Wait[T any](ctx context.Context, ch <-chan Result[T]) (T, error) {
	select {
	case res := <-ch:
		return res.Value, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
