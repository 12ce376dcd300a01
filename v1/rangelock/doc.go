// Package rangelock provides byte-range locking over a shared resource such
// as a buffer, a file or an address space. The resource is virtually divided
// into fixed-size regions, each protected by its own reader-writer lock, so
// ranges that touch different regions can be held concurrently. Regions are
// created on demand and reference counted, which keeps memory proportional to
// the ranges currently in use rather than to the size of the resource.
//
// A request may span several regions; deadlock between overlapping requests
// is avoided by always acquiring regions in ascending id order. Region size
// is the true granularity of contention: a request is expanded outward to
// region boundaries, so locking a single byte locks the whole covering
// region. No fairness is guaranteed among waiters beyond what sync.RWMutex
// provides.
package rangelock
