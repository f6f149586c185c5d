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

// Package tables provides three related associative containers built on one
// shared open-addressing engine:
//
//   - Table[K,V]: an unordered map from keys to values.
//   - OrderedTable[K,V]: a map that additionally remembers insertion order
//     and supports a stable in-place sort.
//   - CountTable[K]: a map from keys to positive integer counts with
//     extremal queries and a destructive frequency sort.
//
// All three use open addressing rather than chaining to handle collisions.
// The backing array always has power-of-two capacity so the probe index can
// be masked with a bitwise AND. Collisions are resolved by walking the probe
// sequence h' = (5*h + 1) mod capacity until an empty slot (miss) or a
// filled slot with an equal key (hit) is found. Deletion uses tombstones:
// deleted slots are skipped during probing but do not terminate it.
//
// A table grows by reallocating a backing array of twice the capacity and
// re-inserting every live entry. Growth triggers before an insertion when
// the load factor would exceed 2/3 or when fewer than 4 free slots remain,
// which bounds worst-case probe length.
//
// By default a table uses the same hash function as Go's builtin map[K]V,
// though a different hash function can be specified using the WithHash
// option.
//
// None of the table types is goroutine-safe: the contract is exclusive
// mutable access, serialized by the caller. A *Table (or *OrderedTable,
// *CountTable) is itself the shared handle to the underlying storage; there
// is no separate reference-counted variant.
package tables

import (
	"errors"
	"fmt"
	"strings"
)

// defaultInitialSize is the capacity used when a constructor is given an
// initial capacity of zero.
const defaultInitialSize = 64

// ErrKeyNotFound is returned by the mutable-reference accessors (GetMut)
// when the key is absent. The plain Get accessors substitute the value
// type's zero value instead of erroring.
var ErrKeyNotFound = errors.New("tables: key not found")

// Each slot in a table is in one of three states. A filled slot's key is
// unique within the table, except transiently after Add which intentionally
// permits duplicates.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotFilled
	slotDeleted
)

// Pair is a key/value pair, used to construct tables and by the ordered
// table's sort comparator.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// slotArray is the read surface of a backing array that the shared probe
// routines need. Each table kind's slot layout differs (the ordered table
// threads a next index through its slots, the count table stores a bare
// count), but probing only ever inspects state and key.
type slotArray[K comparable] interface {
	length() int
	stateAt(i int) slotState
	keyAt(i int) K
}

// nextTry advances the probe sequence. The recurrence h' = 5*h + 1 visits
// every index of a power-of-two array exactly once before repeating.
func nextTry(h, mask uintptr) uintptr {
	return (5*h + 1) & mask
}

// mustRehash reports whether an array of the given length needs to grow
// before another entry is inserted: the load factor would exceed 2/3, or
// fewer than 4 free slots would remain.
func mustRehash(length, counter int) bool {
	return length*2 < counter*3 || length-counter < 4
}

// rawGet returns the index of key in a, or -1 if it is not present. The
// probe walks until an empty slot (miss) or a filled slot with an equal key
// (hit); deleted slots are skipped but do not terminate the probe.
func rawGet[K comparable, A slotArray[K]](a A, h uintptr, key K) int {
	mask := uintptr(a.length() - 1)
	for i := h & mask; ; i = nextTry(i, mask) {
		switch a.stateAt(int(i)) {
		case slotEmpty:
			return -1
		case slotFilled:
			if a.keyAt(int(i)) == key {
				return int(i)
			}
		}
	}
}

// findEmpty returns the index of the first empty slot on key's probe
// sequence. Deleted slots are walked past, never reused: fresh inserts and
// rehashes only ever fill empty slots. The growth policy guarantees an
// empty slot exists.
func findEmpty[K comparable, A slotArray[K]](a A, h uintptr) int {
	mask := uintptr(a.length() - 1)
	i := h & mask
	for a.stateAt(int(i)) != slotEmpty {
		i = nextTry(i, mask)
	}
	return int(i)
}

// normCapacity validates a constructor's initialCapacity argument. Zero
// selects the default. A non-power-of-two capacity is a caller contract
// violation.
func normCapacity(initialCapacity int) int {
	if initialCapacity == 0 {
		return defaultInitialSize
	}
	if !isPowerOfTwo(initialCapacity) {
		panic(fmt.Sprintf("tables: initial capacity %d is not a power of two", initialCapacity))
	}
	return initialCapacity
}

// renderPairs builds the textual "{k1: v1, k2: v2}" form shared by all
// table kinds. An empty table renders as "{}".
func renderPairs(pairs func(yield func(k, v any) bool)) string {
	var buf strings.Builder
	buf.WriteByte('{')
	first := true
	pairs(func(k, v any) bool {
		if !first {
			buf.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&buf, "%v: %v", k, v)
		return true
	})
	buf.WriteByte('}')
	return buf.String()
}

type slot[K comparable, V any] struct {
	key   K
	value V
	state slotState
}

type slots[K comparable, V any] []slot[K, V]

func (s slots[K, V]) length() int             { return len(s) }
func (s slots[K, V]) stateAt(i int) slotState { return s[i].state }
func (s slots[K, V]) keyAt(i int) K           { return s[i].key }

// Table is an unordered map from keys to values with Put, Get, Delete, and
// All operations. Iteration order is unspecified (it is the physical slot
// order, which insertion history scatters).
//
// A Table is NOT goroutine-safe.
type Table[K comparable, V any] struct {
	hasher  hasher[K]
	data    slots[K, V]
	counter int
}

// New constructs a Table with the specified initial capacity, which must be
// a power of two. If initialCapacity is 0 the default of 64 is used.
func New[K comparable, V any](initialCapacity int, opts ...option[K]) *Table[K, V] {
	t := &Table[K, V]{hasher: makeHasher[K]()}
	for _, op := range opts {
		op.apply(&t.hasher)
	}
	t.data = make(slots[K, V], normCapacity(initialCapacity))
	return t
}

// FromPairs builds a Table from a sequence of key/value pairs. Later pairs
// with a duplicate key overwrite earlier ones.
func FromPairs[K comparable, V any](pairs []Pair[K, V], opts ...option[K]) *Table[K, V] {
	t := New[K, V](nextPowerOfTwo(len(pairs)+10), opts...)
	for _, p := range pairs {
		t.Put(p.Key, p.Value)
	}
	return t
}

// Len returns the number of entries in the table.
func (t *Table[K, V]) Len() int {
	return t.counter
}

// capacity returns the length of the backing array.
func (t *Table[K, V]) capacity() int {
	return len(t.data)
}

// Get retrieves the value for key, returning the zero value of V if key is
// not present. Use GetMut or Has to distinguish a stored zero value from an
// absent key.
func (t *Table[K, V]) Get(key K) V {
	if i := rawGet(t.data, t.hasher.hashKey(&key), key); i >= 0 {
		return t.data[i].value
	}
	var zero V
	return zero
}

// GetMut returns a pointer to the value stored for key, allowing in-place
// mutation. It returns an error wrapping ErrKeyNotFound if key is absent.
// The pointer is invalidated by any subsequent insertion into the table.
func (t *Table[K, V]) GetMut(key K) (*V, error) {
	if i := rawGet(t.data, t.hasher.hashKey(&key), key); i >= 0 {
		return &t.data[i].value, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
}

// Has reports whether key is present in the table.
func (t *Table[K, V]) Has(key K) bool {
	return rawGet(t.data, t.hasher.hashKey(&key), key) >= 0
}

// Put inserts an entry into the table, overwriting the existing value if an
// entry with the same key already exists.
func (t *Table[K, V]) Put(key K, value V) {
	h := t.hasher.hashKey(&key)
	if i := rawGet(t.data, h, key); i >= 0 {
		t.data[i].value = value
		return
	}
	t.maybeEnlarge()
	i := findEmpty[K](t.data, h)
	t.data[i] = slot[K, V]{key: key, value: value, state: slotFilled}
	t.counter++
	t.checkInvariants()
}

// Add inserts an entry without checking whether the key is already present,
// so the table may afterwards hold several slots with equal keys. A
// subsequent Get or Delete finds whichever duplicate its probe sequence
// reaches first; which one that is depends on the hash seed and is
// otherwise unspecified.
func (t *Table[K, V]) Add(key K, value V) {
	t.maybeEnlarge()
	i := findEmpty[K](t.data, t.hasher.hashKey(&key))
	t.data[i] = slot[K, V]{key: key, value: value, state: slotFilled}
	t.counter++
	t.checkInvariants()
}

// Delete deletes the entry corresponding to key from the table. It is a
// noop to delete a non-existent key. The slot is marked as a tombstone;
// the key and value payloads are left in place.
func (t *Table[K, V]) Delete(key K) {
	if i := rawGet(t.data, t.hasher.hashKey(&key), key); i >= 0 {
		t.data[i].state = slotDeleted
		t.counter--
		t.checkInvariants()
	}
}

// All calls yield sequentially for each key and value present in the table,
// in unspecified order. If yield returns false, iteration stops. The table
// must not be mutated during iteration.
func (t *Table[K, V]) All(yield func(key K, value V) bool) {
	for i := range t.data {
		if t.data[i].state == slotFilled {
			if !yield(t.data[i].key, t.data[i].value) {
				return
			}
		}
	}
}

// String renders the table as "{k1: v1, k2: v2}" in iteration order, or
// "{}" when empty.
func (t *Table[K, V]) String() string {
	return renderPairs(func(yield func(k, v any) bool) {
		t.All(func(k K, v V) bool { return yield(k, v) })
	})
}

func (t *Table[K, V]) maybeEnlarge() {
	for mustRehash(len(t.data), t.counter) {
		t.enlarge()
	}
}

// enlarge reallocates the backing array at twice the capacity and re-inserts
// every filled slot. Tombstones are dropped. Growth is a single pass, never
// incremental: no operation observes a partially grown table.
func (t *Table[K, V]) enlarge() {
	old := t.data
	t.data = make(slots[K, V], 2*len(old))
	for i := range old {
		if old[i].state != slotFilled {
			continue
		}
		j := findEmpty[K](t.data, t.hasher.hashKey(&old[i].key))
		t.data[j] = slot[K, V]{key: old[i].key, value: old[i].value, state: slotFilled}
	}
}

// Equal reports whether two tables hold the same set of keys with equal
// values. The comparison is order-independent: insertion history can
// scatter equal logical tables across different physical layouts, so the
// live counts are compared and then every entry of a is looked up in b.
func Equal[K, V comparable](a, b *Table[K, V]) bool {
	if a.counter != b.counter {
		return false
	}
	eq := true
	a.All(func(k K, v V) bool {
		i := rawGet(b.data, b.hasher.hashKey(&k), k)
		if i < 0 || b.data[i].value != v {
			eq = false
		}
		return eq
	})
	return eq
}

func (t *Table[K, V]) checkInvariants() {
	if invariants {
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
		if !isPowerOfTwo(len(t.data)) {
			panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two", len(t.data)))
		}
		if t.counter >= len(t.data) {
			panic(fmt.Sprintf("invariant failed: counter %d >= capacity %d", t.counter, len(t.data)))
		}
	}
}

func (t *Table[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  counter=%d\n", len(t.data), t.counter)
	for i := range t.data {
		switch t.data[i].state {
		case slotEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case slotDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		default:
			fmt.Fprintf(&buf, "  %4d: %v [h=%07x]\n",
				i, t.data[i].key, t.hasher.hashKey(&t.data[i].key))
		}
	}
	return buf.String()
}
