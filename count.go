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
	"strings"
)

// countSlot holds a key and its count. A count of zero doubles as the empty
// sentinel: a count table has no tombstones and no delete operation, and a
// live entry's count is always positive.
type countSlot[K comparable] struct {
	key   K
	count int
}

type countSlots[K comparable] []countSlot[K]

func (s countSlots[K]) length() int { return len(s) }

func (s countSlots[K]) stateAt(i int) slotState {
	if s[i].count != 0 {
		return slotFilled
	}
	return slotEmpty
}

func (s countSlots[K]) keyAt(i int) K { return s[i].key }

// CountTable is a map from keys to positive integer counts. It shares the
// open-addressing engine of Table but has no delete operation: entries only
// ever accumulate.
//
// A CountTable is NOT goroutine-safe.
type CountTable[K comparable] struct {
	hasher  hasher[K]
	data    countSlots[K]
	counter int
	// sorted is set by SortDescending, after which the backing array no
	// longer satisfies the probe invariant and mutation is forbidden.
	sorted bool
}

// NewCount constructs a CountTable with the specified initial capacity,
// which must be a power of two. If initialCapacity is 0 the default of 64
// is used.
func NewCount[K comparable](initialCapacity int, opts ...option[K]) *CountTable[K] {
	t := &CountTable[K]{hasher: makeHasher[K]()}
	for _, op := range opts {
		op.apply(&t.hasher)
	}
	t.data = make(countSlots[K], normCapacity(initialCapacity))
	return t
}

// CountKeys builds a CountTable counting the number of occurrences of each
// key in keys.
func CountKeys[K comparable](keys []K, opts ...option[K]) *CountTable[K] {
	t := NewCount[K](nextPowerOfTwo(len(keys)+10), opts...)
	for i := range keys {
		t.Inc(keys[i], 1)
	}
	return t
}

// Len returns the number of distinct keys in the table.
func (t *CountTable[K]) Len() int {
	return t.counter
}

func (t *CountTable[K]) capacity() int {
	return len(t.data)
}

// Get retrieves the count for key, returning 0 if key is not present.
func (t *CountTable[K]) Get(key K) int {
	if i := rawGet(t.data, t.hasher.hashKey(&key), key); i >= 0 {
		return t.data[i].count
	}
	return 0
}

// GetMut returns a pointer to the count stored for key, allowing in-place
// mutation. It returns an error wrapping ErrKeyNotFound if key is absent.
// The caller must keep the count positive.
func (t *CountTable[K]) GetMut(key K) (*int, error) {
	if t.sorted {
		panic("tables: GetMut on a sorted CountTable")
	}
	if i := rawGet(t.data, t.hasher.hashKey(&key), key); i >= 0 {
		return &t.data[i].count, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
}

// Has reports whether key is present in the table.
func (t *CountTable[K]) Has(key K) bool {
	return rawGet(t.data, t.hasher.hashKey(&key), key) >= 0
}

// Inc adds delta to the count stored for key, inserting the key if it is
// absent. The resulting count must be positive: a delta that would drive a
// count to zero or below is a contract violation and panics, since a zero
// count is indistinguishable from an empty slot.
func (t *CountTable[K]) Inc(key K, delta int) {
	if t.sorted {
		panic("tables: Inc on a sorted CountTable")
	}
	h := t.hasher.hashKey(&key)
	if i := rawGet(t.data, h, key); i >= 0 {
		n := t.data[i].count + delta
		if n <= 0 {
			panic(fmt.Sprintf("tables: Inc(%v, %d) would make the count %d", key, delta, n))
		}
		t.data[i].count = n
		return
	}
	if delta <= 0 {
		panic(fmt.Sprintf("tables: Inc(%v, %d) would make the count %d", key, delta, delta))
	}
	t.maybeEnlarge()
	i := findEmpty[K](t.data, h)
	t.data[i] = countSlot[K]{key: key, count: delta}
	t.counter++
	t.checkInvariants()
}

// Merge adds every count of s into t.
func (t *CountTable[K]) Merge(s *CountTable[K]) {
	s.All(func(k K, n int) bool {
		t.Inc(k, n)
		return true
	})
}

// Smallest returns the (key, count) pair with the smallest count. Ties are
// broken arbitrarily. It is a contract violation to call Smallest on an
// empty table.
func (t *CountTable[K]) Smallest() (key K, count int) {
	if t.counter == 0 {
		panic("tables: Smallest on an empty CountTable")
	}
	for i := range t.data {
		if t.data[i].count == 0 {
			continue
		}
		if count == 0 || t.data[i].count < count {
			key, count = t.data[i].key, t.data[i].count
		}
	}
	return key, count
}

// Largest returns the (key, count) pair with the largest count. Ties are
// broken arbitrarily. It is a contract violation to call Largest on an
// empty table.
func (t *CountTable[K]) Largest() (key K, count int) {
	if t.counter == 0 {
		panic("tables: Largest on an empty CountTable")
	}
	for i := range t.data {
		if t.data[i].count == 0 {
			continue
		}
		if t.data[i].count > count {
			key, count = t.data[i].key, t.data[i].count
		}
	}
	return key, count
}

// SortDescending reorders the backing array in place so that iteration
// yields entries by descending count (ties in unspecified order), using a
// shell sort over the physical slots.
//
// SortDescending is destructive: the hash layout is not preserved, so after
// it returns only All, Keys via All, String, Len, Smallest and Largest are
// valid. Inc and GetMut panic on a sorted table.
func (t *CountTable[K]) SortDescending() {
	t.sorted = true
	h := 1
	for 3*h+1 < len(t.data) {
		h = 3*h + 1
	}
	for ; h > 0; h /= 3 {
		for i := h; i < len(t.data); i++ {
			for j := i; j >= h && t.data[j-h].count <= t.data[j].count; j -= h {
				t.data[j-h], t.data[j] = t.data[j], t.data[j-h]
			}
		}
	}
}

// All calls yield sequentially for each key and count in the table. The
// order is unspecified, except after SortDescending when it is descending
// by count. If yield returns false, iteration stops. The table must not be
// mutated during iteration.
func (t *CountTable[K]) All(yield func(key K, count int) bool) {
	for i := range t.data {
		if t.data[i].count != 0 {
			if !yield(t.data[i].key, t.data[i].count) {
				return
			}
		}
	}
}

// String renders the table as "{k1: n1, k2: n2}" in iteration order, or
// "{}" when empty.
func (t *CountTable[K]) String() string {
	return renderPairs(func(yield func(k, v any) bool) {
		t.All(func(k K, n int) bool { return yield(k, n) })
	})
}

func (t *CountTable[K]) maybeEnlarge() {
	for mustRehash(len(t.data), t.counter) {
		t.enlarge()
	}
}

func (t *CountTable[K]) enlarge() {
	old := t.data
	t.data = make(countSlots[K], 2*len(old))
	for i := range old {
		if old[i].count == 0 {
			continue
		}
		j := findEmpty[K](t.data, t.hasher.hashKey(&old[i].key))
		t.data[j] = old[i]
	}
}

func (t *CountTable[K]) checkInvariants() {
	if invariants {
		var filled int
		for i := range t.data {
			if t.data[i].count == 0 {
				continue
			}
			filled++
			if t.data[i].count < 0 {
				panic(fmt.Sprintf("invariant failed: slot(%d): %v has negative count %d",
					i, t.data[i].key, t.data[i].count))
			}
			if j := rawGet(t.data, t.hasher.hashKey(&t.data[i].key), t.data[i].key); j < 0 {
				panic(fmt.Sprintf("invariant failed: slot(%d): %v not found\n%s",
					i, t.data[i].key, t.debugString()))
			}
		}
		if filled != t.counter {
			panic(fmt.Sprintf("invariant failed: found %d filled slots, but counter is %d\n%s",
				filled, t.counter, t.debugString()))
		}
	}
}

func (t *CountTable[K]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  counter=%d\n", len(t.data), t.counter)
	for i := range t.data {
		if t.data[i].count == 0 {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		} else {
			fmt.Fprintf(&buf, "  %4d: %v (%d)\n", i, t.data[i].key, t.data[i].count)
		}
	}
	return buf.String()
}
