// Copyright 2025 The Tables Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tables

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func (t *CountTable[K]) toBuiltinMap() map[K]int {
	r := make(map[K]int)
	t.All(func(k K, n int) bool {
		r[k] = n
		return true
	})
	return r
}

func TestCountBasic(t *testing.T) {
	test := func(t *testing.T, m *CountTable[string]) {
		require.Equal(t, 0, m.Len())
		require.Zero(t, m.Get("a"))
		require.False(t, m.Has("a"))

		// Increments with deltas summing to S yield a count of S.
		m.Inc("a", 1)
		m.Inc("a", 4)
		m.Inc("b", 2)
		m.Inc("a", 5)
		require.Equal(t, 10, m.Get("a"))
		require.Equal(t, 2, m.Get("b"))
		require.Equal(t, 2, m.Len())
		require.True(t, m.Has("a"))
	}

	t.Run("normal", func(t *testing.T) {
		test(t, NewCount[string](0))
	})

	t.Run("degenerate", func(t *testing.T) {
		test(t, NewCount[string](0,
			WithHash[string](func(key *string, seed uintptr) uintptr {
				return 0
			})))
	})
}

func TestCountKeys(t *testing.T) {
	m := CountKeys([]string{"a", "b", "a", "c", "a", "b"})
	require.Equal(t, nextPowerOfTwo(6+10), m.capacity())
	require.Equal(t, 3, m.Len())
	require.Equal(t, 3, m.Get("a"))
	require.Equal(t, 2, m.Get("b"))
	require.Equal(t, 1, m.Get("c"))
	require.Zero(t, m.Get("d"))
}

func TestCountGrowth(t *testing.T) {
	m := NewCount[int](4)
	for i := 0; i < 1000; i++ {
		m.Inc(i%250, 1)
	}
	require.Equal(t, 250, m.Len())
	for i := 0; i < 250; i++ {
		require.Equal(t, 4, m.Get(i))
	}
}

func TestCountExtremal(t *testing.T) {
	m := NewCount[string](0)
	m.Inc("a", 1)
	m.Inc("b", 5)
	m.Inc("c", 3)

	k, n := m.Largest()
	require.Equal(t, "b", k)
	require.Equal(t, 5, n)

	k, n = m.Smallest()
	require.Equal(t, "a", k)
	require.Equal(t, 1, n)
}

func TestCountExtremalEmpty(t *testing.T) {
	m := NewCount[string](0)
	require.Panics(t, func() { m.Smallest() })
	require.Panics(t, func() { m.Largest() })
}

func TestCountIncNonPositive(t *testing.T) {
	m := NewCount[string](0)
	m.Inc("a", 3)
	// Driving a count to zero or below would make the entry look empty.
	require.Panics(t, func() { m.Inc("a", -3) })
	require.Panics(t, func() { m.Inc("a", -10) })
	require.Panics(t, func() { m.Inc("b", 0) })
	require.Panics(t, func() { m.Inc("b", -1) })
	// A negative delta that keeps the count positive is fine.
	m.Inc("a", -2)
	require.Equal(t, 1, m.Get("a"))
}

func TestCountGetMut(t *testing.T) {
	m := NewCount[string](0)
	m.Inc("a", 1)

	p, err := m.GetMut("a")
	require.NoError(t, err)
	*p += 9
	require.Equal(t, 10, m.Get("a"))

	_, err = m.GetMut("b")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestCountMerge(t *testing.T) {
	a := CountKeys([]string{"a", "a", "b"})
	b := CountKeys([]string{"b", "c"})
	a.Merge(b)
	require.Equal(t, map[string]int{"a": 2, "b": 2, "c": 1}, a.toBuiltinMap())
	// The merged-from table is unchanged.
	require.Equal(t, map[string]int{"b": 1, "c": 1}, b.toBuiltinMap())
}

func TestCountSortDescending(t *testing.T) {
	m := NewCount[int](0)
	for i := 1; i <= 100; i++ {
		m.Inc(i, rand.Intn(1000)+1)
	}
	expected := m.toBuiltinMap()

	m.SortDescending()

	// Iteration now yields counts in non-increasing order, with no entry
	// lost or duplicated.
	var counts []int
	got := make(map[int]int)
	m.All(func(k, n int) bool {
		counts = append(counts, n)
		got[k] = n
		return true
	})
	require.Equal(t, expected, got)
	for i := 1; i < len(counts); i++ {
		require.GreaterOrEqual(t, counts[i-1], counts[i])
	}

	// The sort is destructive: mutation is forbidden afterwards.
	require.Panics(t, func() { m.Inc(1, 1) })
	require.Panics(t, func() { m.GetMut(1) })
}

func TestCountString(t *testing.T) {
	m := NewCount[string](0)
	require.Equal(t, "{}", m.String())
	m.Inc("x", 1)
	require.Equal(t, "{x: 1}", m.String())
}

func TestCountRandom(t *testing.T) {
	m := NewCount[int](0)
	e := make(map[int]int)
	for i := 0; i < 10000; i++ {
		k, n := rand.Intn(1000), rand.Intn(50)+1
		m.Inc(k, n)
		e[k] += n
	}
	require.Equal(t, len(e), m.Len())
	require.Equal(t, e, m.toBuiltinMap())
	for k, n := range e {
		require.Equal(t, n, m.Get(k), "key %d", k)
	}
}

func TestCountStringRender(t *testing.T) {
	// Rendering goes through the same "{k: v}" form as the other table
	// kinds; after a sort it follows the sorted order.
	m := NewCount[string](0)
	m.Inc("a", 1)
	m.Inc("b", 5)
	m.Inc("c", 3)
	m.SortDescending()
	require.Equal(t, "{b: 5, c: 3, a: 1}", m.String())
	_ = fmt.Sprint(m) // Stringer
}
