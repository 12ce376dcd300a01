package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mirkobrombin/go-rangelock/v1/rangelock"
)

var (
	concurrency = flag.Int("c", 50, "Concurrency")
	requests    = flag.Int("n", 100000, "Requests per scenario")
	regionSize  = flag.Uint64("region-size", 1024, "Region size in bytes (power of two)")
	regions     = flag.Int("regions", 1024, "Address space size in regions")
)

func main() {
	flag.Parse()

	fmt.Printf("| %-20s | %-10s | %-12s | %-12s |\n", "Scenario", "Ops/sec", "Avg Latency", "P99 Latency")
	fmt.Println("|:---|:---|:---|:---|")

	runBenchmark("exclusive-disjoint", func(l *rangelock.RangeLock, r *rand.Rand, worker int) error {
		offset := uint64(worker%*regions) * *regionSize
		if err := l.Lock(offset, *regionSize); err != nil {
			return err
		}
		return l.Unlock(offset, *regionSize)
	})
	runBenchmark("exclusive-random", func(l *rangelock.RangeLock, r *rand.Rand, worker int) error {
		offset := uint64(r.Intn(*regions-4)) * *regionSize
		length := uint64(r.Intn(4)+1) * *regionSize
		if err := l.Lock(offset, length); err != nil {
			return err
		}
		return l.Unlock(offset, length)
	})
	runBenchmark("shared-hotspot", func(l *rangelock.RangeLock, r *rand.Rand, worker int) error {
		if err := l.LockShared(0, *regionSize); err != nil {
			return err
		}
		return l.UnlockShared(0, *regionSize)
	})
	runBenchmark("trylock-random", func(l *rangelock.RangeLock, r *rand.Rand, worker int) error {
		offset := uint64(r.Intn(*regions-4)) * *regionSize
		length := uint64(r.Intn(4)+1) * *regionSize
		ok, err := l.TryLock(offset, length)
		if err != nil {
			return err
		}
		if ok {
			return l.Unlock(offset, length)
		}
		return nil
	})
}

func runBenchmark(name string, op func(*rangelock.RangeLock, *rand.Rand, int) error) {
	l, err := rangelock.New(*regionSize)
	if err != nil {
		log.Fatal(err)
	}

	perWorker := *requests / *concurrency
	latencies := make([][]time.Duration, *concurrency)
	var failed atomic.Uint64

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(worker)))
			lats := make([]time.Duration, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				t0 := time.Now()
				if err := op(l, r, worker); err != nil {
					failed.Add(1)
					continue
				}
				lats = append(lats, time.Since(t0))
			}
			latencies[worker] = lats
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	if n := failed.Load(); n > 0 {
		log.Fatalf("%s: %d operations failed", name, n)
	}

	var all []time.Duration
	for _, lats := range latencies {
		all = append(all, lats...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	var sum time.Duration
	for _, d := range all {
		sum += d
	}
	avg := sum / time.Duration(len(all))
	p99 := all[len(all)*99/100]
	opsPerSec := float64(len(all)) / elapsed.Seconds()

	fmt.Printf("| %-20s | %-10.0f | %-12v | %-12v |\n", name, opsPerSec, avg, p99)
}
