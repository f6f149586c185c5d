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

// orderedSlot extends the basic slot with a next index threading an
// intrusive singly-linked list through the backing array in insertion
// order. A next of -1 marks the end of the chain.
type orderedSlot[K comparable, V any] struct {
	key   K
	value V
	next  int
	state slotState
}

type orderedSlots[K comparable, V any] []orderedSlot[K, V]

func (s orderedSlots[K, V]) length() int             { return len(s) }
func (s orderedSlots[K, V]) stateAt(i int) slotState { return s[i].state }
func (s orderedSlots[K, V]) keyAt(i int) K           { return s[i].key }

// OrderedTable is a map from keys to values that remembers the order in
// which keys were first inserted. Hash lookup works exactly as in Table;
// the insertion order is tracked by a singly-linked list threaded through
// the slots of the backing array, so it survives growth at no extra
// allocation.
//
// Deleted entries stay on the chain as tombstones until the next growth or
// Sort; iteration skips them.
//
// An OrderedTable is NOT goroutine-safe.
type OrderedTable[K comparable, V any] struct {
	hasher  hasher[K]
	data    orderedSlots[K, V]
	counter int
	head    int
	tail    int
}

// NewOrdered constructs an OrderedTable with the specified initial
// capacity, which must be a power of two. If initialCapacity is 0 the
// default of 64 is used.
func NewOrdered[K comparable, V any](initialCapacity int, opts ...option[K]) *OrderedTable[K, V] {
	t := &OrderedTable[K, V]{hasher: makeHasher[K](), head: -1, tail: -1}
	for _, op := range opts {
		op.apply(&t.hasher)
	}
	t.data = make(orderedSlots[K, V], normCapacity(initialCapacity))
	return t
}

// OrderedFromPairs builds an OrderedTable from a sequence of key/value
// pairs, preserving the order of first insertion. Later pairs with a
// duplicate key overwrite the value without moving the key.
func OrderedFromPairs[K comparable, V any](pairs []Pair[K, V], opts ...option[K]) *OrderedTable[K, V] {
	t := NewOrdered[K, V](nextPowerOfTwo(len(pairs)+10), opts...)
	for _, p := range pairs {
		t.Put(p.Key, p.Value)
	}
	return t
}

// Len returns the number of entries in the table.
func (t *OrderedTable[K, V]) Len() int {
	return t.counter
}

func (t *OrderedTable[K, V]) capacity() int {
	return len(t.data)
}

// Get retrieves the value for key, returning the zero value of V if key is
// not present.
func (t *OrderedTable[K, V]) Get(key K) V {
	if i := rawGet(t.data, t.hasher.hashKey(&key), key); i >= 0 {
		return t.data[i].value
	}
	var zero V
	return zero
}

// GetMut returns a pointer to the value stored for key, allowing in-place
// mutation. It returns an error wrapping ErrKeyNotFound if key is absent.
// The pointer is invalidated by any subsequent insertion into the table.
func (t *OrderedTable[K, V]) GetMut(key K) (*V, error) {
	if i := rawGet(t.data, t.hasher.hashKey(&key), key); i >= 0 {
		return &t.data[i].value, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
}

// Has reports whether key is present in the table.
func (t *OrderedTable[K, V]) Has(key K) bool {
	return rawGet(t.data, t.hasher.hashKey(&key), key) >= 0
}

// Put inserts an entry into the table, overwriting the existing value if an
// entry with the same key already exists. Overwriting does not move the key
// in the insertion order.
func (t *OrderedTable[K, V]) Put(key K, value V) {
	h := t.hasher.hashKey(&key)
	if i := rawGet(t.data, h, key); i >= 0 {
		t.data[i].value = value
		return
	}
	t.maybeEnlarge()
	t.insertRaw(h, key, value)
	t.counter++
	t.checkInvariants()
}

// Add inserts an entry without checking whether the key is already present.
// See Table.Add for the duplicate-key caveats; the duplicate occupies its
// own position in the insertion order.
func (t *OrderedTable[K, V]) Add(key K, value V) {
	t.maybeEnlarge()
	t.insertRaw(t.hasher.hashKey(&key), key, value)
	t.counter++
	t.checkInvariants()
}

// Delete deletes the entry corresponding to key from the table. It is a
// noop to delete a non-existent key. The slot becomes a tombstone but stays
// linked on the chain (iteration skips it); the next growth or Sort drops
// it.
func (t *OrderedTable[K, V]) Delete(key K) {
	if i := rawGet(t.data, t.hasher.hashKey(&key), key); i >= 0 {
		t.data[i].state = slotDeleted
		t.counter--
		t.checkInvariants()
	}
}

// All calls yield sequentially for each key and value present in the table,
// in insertion order (or, after Sort, in sorted order followed by any
// subsequently inserted keys). If yield returns false, iteration stops. The
// table must not be mutated during iteration.
func (t *OrderedTable[K, V]) All(yield func(key K, value V) bool) {
	for i := t.head; i >= 0; i = t.data[i].next {
		if t.data[i].state == slotFilled {
			if !yield(t.data[i].key, t.data[i].value) {
				return
			}
		}
	}
}

// Keys returns the keys of the table in iteration order.
func (t *OrderedTable[K, V]) Keys() []K {
	keys := make([]K, 0, t.counter)
	t.All(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Values returns the values of the table in iteration order.
func (t *OrderedTable[K, V]) Values() []V {
	vals := make([]V, 0, t.counter)
	t.All(func(_ K, v V) bool {
		vals = append(vals, v)
		return true
	})
	return vals
}

// String renders the table as "{k1: v1, k2: v2}" in iteration order, or
// "{}" when empty.
func (t *OrderedTable[K, V]) String() string {
	return renderPairs(func(yield func(k, v any) bool) {
		t.All(func(k K, v V) bool { return yield(k, v) })
	})
}

// insertRaw fills the first empty slot on key's probe sequence and appends
// it to the tail of the insertion-order chain.
func (t *OrderedTable[K, V]) insertRaw(h uintptr, key K, value V) {
	i := findEmpty[K](t.data, h)
	t.data[i] = orderedSlot[K, V]{key: key, value: value, next: -1, state: slotFilled}
	if t.tail >= 0 {
		t.data[t.tail].next = i
	} else {
		t.head = i
	}
	t.tail = i
}

func (t *OrderedTable[K, V]) maybeEnlarge() {
	for mustRehash(len(t.data), t.counter) {
		t.enlarge()
	}
}

// enlarge reallocates the backing array at twice the capacity and rebuilds
// both the hash layout and the chain by walking the old chain in its
// existing order, which preserves relative insertion order. Tombstones are
// dropped.
func (t *OrderedTable[K, V]) enlarge() {
	old := t.data
	oldHead := t.head
	t.data = make(orderedSlots[K, V], 2*len(old))
	t.head, t.tail = -1, -1
	for i := oldHead; i >= 0; {
		next := old[i].next
		if old[i].state == slotFilled {
			t.insertRaw(t.hasher.hashKey(&old[i].key), old[i].key, old[i].value)
		}
		i = next
	}
}

// Sort reorders the insertion-order chain so that iteration yields pairs in
// non-decreasing order under cmp, which must return a negative number when
// a orders before b, zero when they are equivalent, and a positive number
// otherwise. The sort is stable and operates purely on the next links;
// slot payloads never move, so lookups remain valid.
//
// Sort is destructive with respect to insertion order: the chronological
// order is not recoverable afterwards, and subsequent inserts append after
// the sorted ends (iteration then yields "sorted order, then insertion
// order").
func (t *OrderedTable[K, V]) Sort(cmp func(a, b Pair[K, V]) int) {
	// Drop tombstones from the chain first so the comparator only ever sees
	// live pairs.
	head, tail := -1, -1
	for i := t.head; i >= 0; {
		next := t.data[i].next
		if t.data[i].state == slotFilled {
			if tail >= 0 {
				t.data[tail].next = i
			} else {
				head = i
			}
			tail = i
		}
		i = next
	}
	if tail >= 0 {
		t.data[tail].next = -1
	}

	// Bottom-up merge sort over the next links: merge adjacent runs of
	// length insize, doubling insize each pass until a pass performs at most
	// one merge.
	list := head
	insize := 1
	for {
		p := list
		list, tail = -1, -1
		nmerges := 0
		for p >= 0 {
			nmerges++
			q := p
			psize := 0
			for i := 0; i < insize; i++ {
				psize++
				q = t.data[q].next
				if q < 0 {
					break
				}
			}
			qsize := insize
			for psize > 0 || (qsize > 0 && q >= 0) {
				var e int
				switch {
				case psize == 0:
					e, q = q, t.data[q].next
					qsize--
				case qsize == 0 || q < 0:
					e, p = p, t.data[p].next
					psize--
				case cmp(Pair[K, V]{t.data[p].key, t.data[p].value},
					Pair[K, V]{t.data[q].key, t.data[q].value}) <= 0:
					e, p = p, t.data[p].next
					psize--
				default:
					e, q = q, t.data[q].next
					qsize--
				}
				if tail >= 0 {
					t.data[tail].next = e
				} else {
					list = e
				}
				tail = e
			}
			p = q
		}
		if tail >= 0 {
			t.data[tail].next = -1
		}
		if nmerges <= 1 {
			break
		}
		insize *= 2
	}
	t.head, t.tail = list, tail
	t.checkInvariants()
}

// OrderedEqual reports whether two ordered tables hold equal pairs in the
// same iteration order. Unlike Equal for the unordered table, the order is
// part of an OrderedTable's observable state and so participates in the
// comparison.
func OrderedEqual[K, V comparable](a, b *OrderedTable[K, V]) bool {
	if a.counter != b.counter {
		return false
	}
	i, j := a.head, b.head
	for {
		for i >= 0 && a.data[i].state != slotFilled {
			i = a.data[i].next
		}
		for j >= 0 && b.data[j].state != slotFilled {
			j = b.data[j].next
		}
		if i < 0 || j < 0 {
			return i < 0 && j < 0
		}
		if a.data[i].key != b.data[j].key || a.data[i].value != b.data[j].value {
			return false
		}
		i, j = a.data[i].next, b.data[j].next
	}
}

func (t *OrderedTable[K, V]) checkInvariants() {
	if invariants {
		// Every filled slot must be reachable both by probing and by
		// walking the chain.
		var filled int
		for i := range t.data {
			if t.data[i].state != slotFilled {
				continue
			}
			filled++
			if j := rawGet(t.data, t.hasher.hashKey(&t.data[i].key), t.data[i].key); j < 0 {
				panic(fmt.Sprintf("invariant failed: slot(%d): %v not found\n%s",
					i, t.data[i].key, t.debugString()))
			}
		}
		if filled != t.counter {
			panic(fmt.Sprintf("invariant failed: found %d filled slots, but counter is %d\n%s",
				filled, t.counter, t.debugString()))
		}
		var chained int
		for i := t.head; i >= 0; i = t.data[i].next {
			if t.data[i].state == slotFilled {
				chained++
			}
			if t.data[i].next < 0 && i != t.tail {
				panic(fmt.Sprintf("invariant failed: chain ends at %d but tail is %d\n%s",
					i, t.tail, t.debugString()))
			}
		}
		if chained != t.counter {
			panic(fmt.Sprintf("invariant failed: chain holds %d live slots, but counter is %d\n%s",
				chained, t.counter, t.debugString()))
		}
	}
}

func (t *OrderedTable[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  counter=%d  head=%d  tail=%d\n",
		len(t.data), t.counter, t.head, t.tail)
	for i := range t.data {
		switch t.data[i].state {
		case slotEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case slotDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted [next=%d]\n", i, t.data[i].next)
		default:
			fmt.Fprintf(&buf, "  %4d: %v [next=%d]\n", i, t.data[i].key, t.data[i].next)
		}
	}
	return buf.String()
}
