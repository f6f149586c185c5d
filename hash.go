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
	"math/bits"
	"unsafe"
)

// hashFn is the signature of the hash function used to hash keys: a pointer
// to the key and a seed.
type hashFn func(unsafe.Pointer, uintptr) uintptr

// hasher wraps the hash function and per-table seed shared by all table
// kinds. The default hash function is extracted from the Go runtime's
// implementation of map[K]struct{} by reaching into the internals of the
// type. (This might break in a future version of Go, but is likely fixable
// unless the Go runtime does something drastic).
type hasher[K comparable] struct {
	hash hashFn
	seed uintptr
}

func makeHasher[K comparable]() hasher[K] {
	h, seed := getRuntimeHasher[K]()
	return hasher[K]{hash: h, seed: seed}
}

func (h hasher[K]) hashKey(key *K) uintptr {
	return h.hash(noescape(unsafe.Pointer(key)), h.seed)
}

// mapiface mirrors the layout of a non-empty interface holding a runtime
// map. See go/src/runtime/type.go and go/src/runtime/map.go.
type mapiface struct {
	typ *maptype
	val *hmap
}

type maptype struct {
	typ    _type
	key    *_type
	elem   *_type
	bucket *_type
	// function for hashing keys (ptr to key, seed) -> hash
	hasher     func(unsafe.Pointer, uintptr) uintptr
	keysize    uint8
	elemsize   uint8
	bucketsize uint16
	flags      uint32
}

type hmap struct {
	count     int
	flags     uint8
	B         uint8
	noverflow uint16
	// hash seed
	hash0      uint32
	buckets    unsafe.Pointer
	oldbuckets unsafe.Pointer
	nevacuate  uintptr
	extra      unsafe.Pointer
}

type (
	tflag   uint8
	nameOff int32
	typeOff int32
)

type _type struct {
	size       uintptr
	ptrdata    uintptr
	hash       uint32
	tflag      tflag
	align      uint8
	fieldAlign uint8
	kind       uint8
	equal      func(unsafe.Pointer, unsafe.Pointer) bool
	gcdata     *byte
	str        nameOff
	ptrToThis  typeOff
}

func getRuntimeHasher[K comparable]() (h hashFn, seed uintptr) {
	a := any(make(map[K]struct{}))
	i := (*mapiface)(unsafe.Pointer(&a))
	h, seed = i.typ.hasher, uintptr(i.val.hash0)
	return h, seed
}

// noescape hides a pointer from escape analysis. noescape is the identity
// function but escape analysis doesn't think the output depends on the
// input. noescape is inlined and currently compiles down to zero
// instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}

// nextPowerOfTwo returns the smallest power of two >= n. Used to size a
// table from an element count.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
