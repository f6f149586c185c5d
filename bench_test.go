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
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

var benchSizes = []int{16, 1024, 65536}

func benchSizesRun(b *testing.B, f func(b *testing.B, n int)) {
	for _, n := range benchSizes {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			perfbench.Open(b)
			f(b, n)
		})
	}
}

func BenchmarkTableGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		benchSizesRun(b, func(b *testing.B, n int) {
			m := make(map[int64]int64, n)
			for i := 0; i < n; i++ {
				m[int64(i)] = int64(i)
			}
			b.ResetTimer()
			var sink int64
			for i := 0; i < b.N; i++ {
				sink += m[int64(i%n)]
			}
			_ = sink
		})
	})
	b.Run("impl=table", func(b *testing.B) {
		benchSizesRun(b, func(b *testing.B, n int) {
			m := New[int64, int64](0)
			for i := 0; i < n; i++ {
				m.Put(int64(i), int64(i))
			}
			b.ResetTimer()
			var sink int64
			for i := 0; i < b.N; i++ {
				sink += m.Get(int64(i % n))
			}
			_ = sink
		})
	})
}

func BenchmarkTablePutGrow(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		benchSizesRun(b, func(b *testing.B, n int) {
			for i := 0; i < b.N; i++ {
				m := make(map[int64]int64)
				for j := 0; j < n; j++ {
					m[int64(j)] = int64(j)
				}
			}
		})
	})
	b.Run("impl=table", func(b *testing.B) {
		benchSizesRun(b, func(b *testing.B, n int) {
			for i := 0; i < b.N; i++ {
				m := New[int64, int64](0)
				for j := 0; j < n; j++ {
					m.Put(int64(j), int64(j))
				}
			}
		})
	})
}

func BenchmarkTablePutDelete(b *testing.B) {
	benchSizesRun(b, func(b *testing.B, n int) {
		m := New[int64, int64](0)
		for i := 0; i < n; i++ {
			m.Put(int64(i), int64(i))
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			k := int64(n + i)
			m.Put(k, k)
			m.Delete(k)
		}
	})
}

func BenchmarkOrderedIter(b *testing.B) {
	benchSizesRun(b, func(b *testing.B, n int) {
		m := NewOrdered[int64, int64](0)
		for i := 0; i < n; i++ {
			m.Put(int64(i), int64(i))
		}
		b.ResetTimer()
		var sink int64
		for i := 0; i < b.N; i++ {
			m.All(func(_, v int64) bool {
				sink += v
				return true
			})
		}
		_ = sink
	})
}

func BenchmarkOrderedSort(b *testing.B) {
	benchSizesRun(b, func(b *testing.B, n int) {
		src := NewOrdered[int64, int64](0)
		for i := 0; i < n; i++ {
			k := int64((i * 2654435761) % n)
			src.Put(k, k)
		}
		cmp := func(a, c Pair[int64, int64]) int {
			switch {
			case a.Key < c.Key:
				return -1
			case a.Key > c.Key:
				return 1
			}
			return 0
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			b.StopTimer()
			m := NewOrdered[int64, int64](0)
			src.All(func(k, v int64) bool {
				m.Put(k, v)
				return true
			})
			b.StartTimer()
			m.Sort(cmp)
		}
	})
}

func BenchmarkCountInc(b *testing.B) {
	benchSizesRun(b, func(b *testing.B, n int) {
		m := NewCount[int64](0)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			m.Inc(int64(i%n), 1)
		}
	})
}
