package rangelock

import (
	"fmt"

	"github.com/mirkobrombin/go-rangelock/v1/metrics"
)

// acquireRegion returns the region for id, creating it if absent, with its
// reference count incremented. The table guard is held only for the map
// access, never across a blocking acquisition of the region's own lock.
func (l *RangeLock) acquireRegion(id uint64) *region {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.regions[id]
	if !ok {
		r = &region{}
		l.regions[id] = r
		metrics.RegionGauge.Inc()
		if l.regionGauge != nil {
			l.regionGauge.Inc()
		}
	}
	r.refcount++
	return r
}

// heldRegion returns the region for id, which must already be referenced.
// A missing entry or a zero reference count means an unlock without a
// matching lock, or a lost reference inside the table itself.
func (l *RangeLock) heldRegion(id uint64) *region {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.regions[id]
	if !ok || r.refcount == 0 {
		panic(fmt.Sprintf("rangelock: region %d has no active reference", id))
	}
	return r
}

// releaseRegion drops one reference to id, erasing the region when the last
// reference goes away. Must be called exactly once per prior acquireRegion.
func (l *RangeLock) releaseRegion(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.regions[id]
	if !ok {
		panic(fmt.Sprintf("rangelock: region %d released but not in table", id))
	}
	r.refcount--
	if r.refcount == 0 {
		delete(l.regions, id)
		metrics.RegionGauge.Dec()
		if l.regionGauge != nil {
			l.regionGauge.Dec()
		}
	}
}

// activeRegions reports the current table population.
func (l *RangeLock) activeRegions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.regions)
}
