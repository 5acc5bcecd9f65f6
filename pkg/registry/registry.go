// Package registry holds observers under a per-observer lifetime policy.
//
// A Registry keeps each registration either strongly (the registry co-owns the
// value and keeps it alive) or weakly (the registry never keeps the value
// alive). Weak registrations whose target has been garbage collected are
// skipped on iteration and reclaimed lazily; no event is raised when that
// happens.
package registry

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unsafe"
	"weak"
)

// StoragePolicy controls whether the registry keeps an observer alive.
type StoragePolicy int

const (
	// Weak holds a non-owning reference. The registration silently expires
	// once every other owner has released the observer.
	Weak StoragePolicy = iota
	// Strong makes the registry a co-owner of the observer.
	Strong
)

func (p StoragePolicy) String() string {
	switch p {
	case Weak:
		return "weak"
	case Strong:
		return "strong"
	default:
		return fmt.Sprintf("StoragePolicy(%d)", int(p))
	}
}

// ParseStoragePolicy parses "weak" or "strong", ignoring case.
func ParseStoragePolicy(s string) (StoragePolicy, error) {
	switch strings.ToLower(s) {
	case "weak":
		return Weak, nil
	case "strong":
		return Strong, nil
	default:
		return Weak, fmt.Errorf("unknown storage policy %q", s)
	}
}

// entry is either an owning reference or a weak pointer plus the dynamic
// pointer type needed to rebuild the value.
type entry[T any] struct {
	strong  T
	isWeak  bool
	weakPtr weak.Pointer[byte]
	typ     reflect.Type
}

func (e *entry[T]) resolve() (T, bool) {
	if !e.isWeak {
		return e.strong, true
	}
	var zero T
	p := e.weakPtr.Value()
	if p == nil {
		return zero, false
	}
	v, ok := reflect.NewAt(e.typ.Elem(), unsafe.Pointer(p)).Interface().(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Registry is a registration-ordered set of observers. The zero value is
// ready to use. It is safe for concurrent use.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries []entry[T]
}

// New creates an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Add registers v under policy. Adding the same value twice creates two
// independent registrations.
//
// Only non-nil pointers to non-zero-sized values can be tracked weakly; any
// other value is held strongly regardless of policy. Register observers by
// pointer when they need to be removed later: a non-comparable value, such as
// a struct holding a slice or map, can never be matched by Remove.
func (r *Registry[T]) Add(v T, policy StoragePolicy) {
	e := entry[T]{strong: v}
	if policy == Weak {
		if wp, typ, ok := makeWeak(v); ok {
			e = entry[T]{isWeak: true, weakPtr: wp, typ: typ}
		}
	}
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// CanHoldWeakly reports whether v would be tracked weakly under Weak.
func CanHoldWeakly(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Type().Elem().Size() > 0
}

func makeWeak(v any) (weak.Pointer[byte], reflect.Type, bool) {
	if !CanHoldWeakly(v) {
		return weak.Pointer[byte]{}, nil, false
	}
	rv := reflect.ValueOf(v)
	return weak.Make((*byte)(rv.UnsafePointer())), rv.Type(), true
}

// Remove drops every registration bound to v and reports how many were
// dropped. Pointers match by identity, other comparable values by equality.
// Non-comparable values never match, so removing one always returns 0 and
// leaves its registrations in place. Removing an unknown value is a no-op.
// Expired weak registrations are reclaimed as a side effect.
func (r *Registry[T]) Remove(v T) int {
	target := any(v)
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.entries)
	r.entries = slices.DeleteFunc(r.entries, func(e entry[T]) bool {
		cur, ok := e.resolve()
		if !ok {
			return true
		}
		return sameInstance(any(cur), target)
	})
	return before - len(r.entries)
}

func sameInstance(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || tb == nil || ta != tb {
		return false
	}
	if ta.Kind() == reflect.Pointer {
		return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
	}
	if !ta.Comparable() {
		return false
	}
	return a == b
}

// Live returns the currently live observers in registration order. The
// sequence is lazy: each weak registration is resolved only when reached.
// Every iteration works on a fresh copy of the registrations, so concurrent
// Add and Remove calls never disturb an iteration in progress.
func (r *Registry[T]) Live() iter.Seq[T] {
	return func(yield func(T) bool) {
		r.mu.RLock()
		entries := slices.Clone(r.entries)
		r.mu.RUnlock()
		for i := range entries {
			v, ok := entries[i].resolve()
			if !ok {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Snapshot materializes the live observers and reclaims expired weak
// registrations.
func (r *Registry[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := make([]T, 0, len(r.entries))
	kept := r.entries[:0]
	for _, e := range r.entries {
		v, ok := e.resolve()
		if !ok {
			continue
		}
		kept = append(kept, e)
		live = append(live, v)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	return live
}

// Prune reclaims expired weak registrations and returns how many were dropped.
func (r *Registry[T]) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.entries)
	r.entries = slices.DeleteFunc(r.entries, func(e entry[T]) bool {
		_, ok := e.resolve()
		return !ok
	})
	return before - len(r.entries)
}

// Len returns the number of registrations, including expired weak ones that
// have not been reclaimed yet.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear drops every registration.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
