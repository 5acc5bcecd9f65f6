package registry

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observer interface {
	Name() string
}

type tracked struct {
	name  string
	calls *atomic.Int32
}

func (p *tracked) Name() string {
	if p.calls != nil {
		p.calls.Add(1)
	}
	return p.name
}

type valueObserver struct{ name string }

func (v valueObserver) Name() string { return v.name }

func names(seq func(func(observer) bool)) []string {
	var out []string
	for o := range seq {
		out = append(out, o.Name())
	}
	return out
}

// addDropped registers a tracked that nothing else references.
//
//go:noinline
func addDropped(reg *Registry[observer], name string, policy StoragePolicy, calls *atomic.Int32) {
	reg.Add(&tracked{name: name, calls: calls}, policy)
}

func collect() {
	runtime.GC()
	runtime.GC()
}

func TestRegistry_LiveInRegistrationOrder(t *testing.T) {
	reg := New[observer]()
	a, b, c := &tracked{name: "a"}, &tracked{name: "b"}, &tracked{name: "c"}
	reg.Add(a, Strong)
	reg.Add(b, Weak)
	reg.Add(c, Strong)

	assert.Equal(t, []string{"a", "b", "c"}, names(reg.Live()))
	// Restartable: a second pass yields the same sequence.
	assert.Equal(t, []string{"a", "b", "c"}, names(reg.Live()))
	runtime.KeepAlive(b)
}

func TestRegistry_DuplicateAddCreatesTwoRegistrations(t *testing.T) {
	reg := New[observer]()
	p := &tracked{name: "dup"}
	reg.Add(p, Strong)
	reg.Add(p, Weak)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"dup", "dup"}, names(reg.Live()))
}

func TestRegistry_WeakEntryExpiresAfterRelease(t *testing.T) {
	reg := New[observer]()
	var calls atomic.Int32
	keep := &tracked{name: "kept"}
	reg.Add(keep, Weak)
	addDropped(reg, "dropped", Weak, &calls)

	collect()

	assert.Equal(t, []string{"kept"}, names(reg.Live()))
	assert.Zero(t, calls.Load(), "expired observer must not be invoked")
	assert.Equal(t, 2, reg.Len(), "Live does not reclaim slots")

	snap := reg.Snapshot()
	require.Len(t, snap, 1)
	assert.Same(t, keep, snap[0])
	assert.Equal(t, 1, reg.Len(), "Snapshot reclaims expired slots")
}

func TestRegistry_StrongEntrySurvivesRelease(t *testing.T) {
	reg := New[observer]()
	var calls atomic.Int32
	addDropped(reg, "owned", Strong, &calls)

	collect()

	assert.Equal(t, []string{"owned"}, names(reg.Live()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistry_Remove(t *testing.T) {
	reg := New[observer]()
	a, b := &tracked{name: "a"}, &tracked{name: "b"}
	reg.Add(a, Weak)
	reg.Add(b, Strong)
	reg.Add(a, Strong)

	assert.Equal(t, 2, reg.Remove(a))
	assert.Equal(t, []string{"b"}, names(reg.Live()))

	// Unknown instance with an equal name is a different instance.
	assert.Zero(t, reg.Remove(&tracked{name: "b"}))
	assert.Equal(t, 1, reg.Len())
	runtime.KeepAlive(a)
}

func TestRegistry_RemoveValueObserver(t *testing.T) {
	reg := New[observer]()
	reg.Add(valueObserver{name: "v"}, Weak)
	reg.Add(valueObserver{name: "w"}, Strong)

	// Values cannot be weakly tracked, so they stay alive.
	collect()
	assert.Equal(t, []string{"v", "w"}, names(reg.Live()))

	assert.Equal(t, 1, reg.Remove(valueObserver{name: "v"}))
	assert.Equal(t, []string{"w"}, names(reg.Live()))
}

type taggedObserver struct {
	name string
	tags []string
}

func (o taggedObserver) Name() string { return o.name }

func TestRegistry_RemoveNonComparableValueIsNoMatch(t *testing.T) {
	reg := New[observer]()
	o := taggedObserver{name: "t", tags: []string{"x"}}
	reg.Add(o, Strong)

	assert.Zero(t, reg.Remove(o))
	assert.Equal(t, []string{"t"}, names(reg.Live()))

	// The same observer registered by pointer is removable.
	p := &taggedObserver{name: "p"}
	reg.Add(p, Strong)
	assert.Equal(t, 1, reg.Remove(p))
	assert.Equal(t, []string{"t"}, names(reg.Live()))
}

func TestRegistry_Prune(t *testing.T) {
	reg := New[observer]()
	addDropped(reg, "x", Weak, nil)
	addDropped(reg, "y", Weak, nil)
	collect()

	assert.Equal(t, 2, reg.Prune())
	assert.Zero(t, reg.Len())
}

func TestRegistry_LiveIsUnaffectedByConcurrentMutation(t *testing.T) {
	reg := New[observer]()
	a, b := &tracked{name: "a"}, &tracked{name: "b"}
	reg.Add(a, Strong)
	reg.Add(b, Strong)

	var seen []string
	for o := range reg.Live() {
		seen = append(seen, o.Name())
		reg.Remove(b)
		reg.Add(&tracked{name: "late"}, Strong)
	}
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, []string{"a", "late", "late"}, names(reg.Live()))
}

func TestRegistry_EarlyBreak(t *testing.T) {
	reg := New[observer]()
	for _, n := range []string{"a", "b", "c"} {
		reg.Add(&tracked{name: n}, Strong)
	}
	var got []string
	for o := range reg.Live() {
		got = append(got, o.Name())
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRegistry_ConcurrentAddRemoveSnapshot(t *testing.T) {
	reg := New[observer]()
	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers * 2)
	for w := range workers {
		go func() {
			defer wg.Done()
			for i := range 200 {
				p := &tracked{name: "p"}
				policy := Strong
				if (w+i)%2 == 0 {
					policy = Weak
				}
				reg.Add(p, policy)
				if i%3 == 0 {
					reg.Remove(p)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range 200 {
				_ = reg.Snapshot()
				_ = slices.Collect(reg.Live())
				_ = reg.Len()
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, len(reg.Snapshot()), workers*200)
}

func TestParseStoragePolicy(t *testing.T) {
	p, err := ParseStoragePolicy("STRONG")
	require.NoError(t, err)
	assert.Equal(t, Strong, p)

	p, err = ParseStoragePolicy("weak")
	require.NoError(t, err)
	assert.Equal(t, Weak, p)

	_, err = ParseStoragePolicy("sticky")
	assert.Error(t, err)
	assert.Equal(t, "strong", Strong.String())
}

func TestCanHoldWeakly(t *testing.T) {
	assert.True(t, CanHoldWeakly(&tracked{}))
	assert.False(t, CanHoldWeakly(valueObserver{}))
	assert.False(t, CanHoldWeakly((*tracked)(nil)))
	assert.False(t, CanHoldWeakly(&struct{}{}))
	assert.False(t, CanHoldWeakly(nil))
}
