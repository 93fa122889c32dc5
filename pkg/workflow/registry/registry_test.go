package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()
	assert.Equal(t, 0, r.Len())

	r.Register("one", 1)
	r.Register("two", 2)
	r.Register("two", 22)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get("two")
	assert.True(t, ok)
	assert.Equal(t, 22, v)

	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Equal(t, 0, v)

	assert.True(t, r.Has("one"))
	assert.ElementsMatch(t, []string{"one", "two"}, r.Keys())
	assert.Equal(t, 2, r.Len())
}

func TestDelete(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)

	r.Delete("a")
	r.Delete("missing")

	assert.False(t, r.Has("a"))
	assert.Equal(t, 0, r.Len())
}

func TestDeleteIf(t *testing.T) {
	r := New[string, int]()
	r.Register("busy", 1)
	r.Register("idle", 0)

	isIdle := func(v int) bool { return v == 0 }

	assert.False(t, r.DeleteIf("busy", isIdle))
	assert.True(t, r.DeleteIf("idle", isIdle))
	assert.False(t, r.DeleteIf("missing", isIdle))

	assert.Equal(t, []string{"busy"}, r.Keys())
}

func TestAll(t *testing.T) {
	r := New[string, int]()
	for i := range 5 {
		r.Register(fmt.Sprintf("k%d", i), i)
	}

	sum := 0
	for _, v := range r.All() {
		sum += v
	}
	assert.Equal(t, 10, sum)

	t.Run("early stop", func(t *testing.T) {
		count := 0
		for range r.All() {
			count++
			if count == 2 {
				break
			}
		}
		assert.Equal(t, 2, count)
	})

	t.Run("mutation during iteration", func(t *testing.T) {
		for k := range r.All() {
			r.Delete(k)
		}
		assert.Equal(t, 0, r.Len())
	})
}

func TestGetOrCreate(t *testing.T) {
	r := New[string, *int]()
	calls := 0
	factory := func() *int {
		calls++
		v := 42
		return &v
	}

	first := r.GetOrCreate("k", factory)
	second := r.GetOrCreate("k", factory)

	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestConcurrentGetOrCreate(t *testing.T) {
	r := New[string, *sync.Mutex]()
	var created atomic.Int32

	var wg sync.WaitGroup
	results := make([]*sync.Mutex, 100)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("conv-1", func() *sync.Mutex {
				created.Add(1)
				return &sync.Mutex{}
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	for _, m := range results {
		assert.Same(t, results[0], m)
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	r := New[int, int]()

	var wg sync.WaitGroup
	for g := range 10 {
		wg.Add(2)
		go func(g int) {
			defer wg.Done()
			for i := range 100 {
				r.Register(g*100+i, i)
			}
		}(g)
		go func(g int) {
			defer wg.Done()
			for i := range 100 {
				r.Get(g*100 + i)
				r.Len()
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 1000, r.Len())
}
