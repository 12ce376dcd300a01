package main

import (
	"flag"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-rangelock/v1/rangelock"
)

var (
	workers    = flag.Int("workers", 8, "Number of concurrent goroutines")
	duration   = flag.Duration("duration", 30*time.Second, "Duration of the stress run")
	regionSize = flag.Uint64("region-size", 1024, "Region size in bytes (power of two)")
	slots      = flag.Int("slots", 256, "Number of counter slots, one per region")
	maxWidth   = flag.Int("max-width", 8, "Maximum regions covered by one request")
	tryRatio   = flag.Float64("try-ratio", 0.3, "Fraction of requests using TryLock")
)

func main() {
	flag.Parse()

	go func() {
		log.Println("Starting pprof on :6060")
		log.Println(http.ListenAndServe("localhost:6060", nil))
	}()

	l, err := rangelock.New(*regionSize)
	if err != nil {
		log.Fatal(err)
	}

	counters := make([]uint64, *slots)
	var expected, ops, tryFailures atomic.Uint64

	log.Printf("Stressing %d slots with %d workers for %v", *slots, *workers, *duration)
	deadline := time.Now().Add(*duration)

	g := new(errgroup.Group)
	for w := 0; w < *workers; w++ {
		seed := int64(w)
		g.Go(func() error {
			r := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				width := uint64(r.Intn(*maxWidth) + 1)
				start := uint64(r.Intn(*slots - *maxWidth))
				offset := start * *regionSize
				length := width * *regionSize

				if r.Float64() < *tryRatio {
					ok, err := l.TryLock(offset, length)
					if err != nil {
						return err
					}
					if !ok {
						tryFailures.Add(1)
						continue
					}
				} else if err := l.Lock(offset, length); err != nil {
					return err
				}

				for s := start; s < start+width; s++ {
					counters[s]++
				}
				expected.Add(width)
				ops.Add(1)

				if err := l.Unlock(offset, length); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("worker failed: %v", err)
	}

	var total uint64
	for _, c := range counters {
		total += c
	}
	log.Printf("%d ops, %d try failures", ops.Load(), tryFailures.Load())
	if total != expected.Load() {
		log.Fatalf("LOST UPDATES: counted %d, expected %d", total, expected.Load())
	}
	log.Printf("OK: %d increments, no lost updates", total)
}
