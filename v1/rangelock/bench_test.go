package rangelock

import (
	"sync/atomic"
	"testing"
)

// benchmarkLockUnlock measures a full acquire/release cycle over a range
// covering the given number of regions.
func benchmarkLockUnlock(b *testing.B, regions uint64) {
	l, err := New(1024)
	if err != nil {
		b.Fatalf("new: %v", err)
	}
	length := regions * 1024
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := l.Lock(0, length); err != nil {
			b.Fatalf("lock: %v", err)
		}
		if err := l.Unlock(0, length); err != nil {
			b.Fatalf("unlock: %v", err)
		}
	}
}

func BenchmarkLockUnlockOneRegion(b *testing.B) {
	benchmarkLockUnlock(b, 1)
}

func BenchmarkLockUnlockEightRegions(b *testing.B) {
	benchmarkLockUnlock(b, 8)
}

func BenchmarkTryLockUncontended(b *testing.B) {
	l, err := New(1024)
	if err != nil {
		b.Fatalf("new: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ok, err := l.TryLock(0, 4096)
		if err != nil || !ok {
			b.Fatalf("trylock: ok %v err %v", ok, err)
		}
		if err := l.Unlock(0, 4096); err != nil {
			b.Fatalf("unlock: %v", err)
		}
	}
}

func BenchmarkLockUnlockParallelDisjoint(b *testing.B) {
	l, err := New(1024)
	if err != nil {
		b.Fatalf("new: %v", err)
	}
	var next atomic.Uint64
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		offset := next.Add(1) * 1024
		for pb.Next() {
			if err := l.Lock(offset, 1024); err != nil {
				b.Errorf("lock: %v", err)
				return
			}
			if err := l.Unlock(offset, 1024); err != nil {
				b.Errorf("unlock: %v", err)
				return
			}
		}
	})
}
