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

import "unsafe"

// option provides an interface to do work on a table's hasher while the
// table is being created. The same options are accepted by New, NewOrdered,
// and NewCount.
type option[K comparable] interface {
	apply(h *hasher[K])
}

type hashOption[K comparable] struct {
	hash func(key *K, seed uintptr) uintptr
}

func (op hashOption[K]) apply(h *hasher[K]) {
	h.hash = *(*hashFn)(noescape(unsafe.Pointer(&op.hash)))
}

// WithHash is an option to specify the hash function to use for a table.
// The supplied function must be consistent with equality: a == b implies
// hash(a, seed) == hash(b, seed).
func WithHash[K comparable](hash func(key *K, seed uintptr) uintptr) option[K] {
	return hashOption[K]{hash}
}

type seedOption[K comparable] struct {
	seed uintptr
}

func (op seedOption[K]) apply(h *hasher[K]) {
	h.seed = op.seed
}

// WithSeed is an option to specify the hash seed for a table, which makes
// slot placement reproducible across runs. Useful for tests.
func WithSeed[K comparable](seed uintptr) option[K] {
	return seedOption[K]{seed}
}
