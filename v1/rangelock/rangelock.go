package rangelock

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirkobrombin/go-rangelock/v1/metrics"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-rangelock/v1/rangelock")

// ErrRegionSize is returned by the constructors when the region size is zero
// or not a power of two.
var ErrRegionSize = errors.New("rangelock: region size must be a power of two greater than zero")

// ErrInvalidRange is returned when a range has zero length or its end does
// not fit in a uint64.
var ErrInvalidRange = errors.New("rangelock: invalid range")

// region is the lock state for one fixed-size slice of the resource. A
// region exists in the table iff its refcount is greater than zero; the
// refcount is mutated only under the table guard.
type region struct {
	refcount uint64
	mu       sync.RWMutex
}

// RangeLock controls access to byte ranges of a shared resource.
//
// A RangeLock must not be copied after first use. Blocking acquisitions wait
// indefinitely; there is no timeout or cancellation, use TryLock or
// TryLockShared to give up on contention instead. Calls are not reentrant: a
// goroutine that already holds a range must not issue a blocking acquisition
// for an overlapping range.
type RangeLock struct {
	regionSize uint64

	mu      sync.Mutex
	regions map[uint64]*region

	exclusiveOnly bool
	traceEnabled  bool

	acquireCounter prometheus.Counter
	tryFailCounter prometheus.Counter
	regionGauge    prometheus.Gauge
	waitHist       prometheus.Histogram
}

// Option configures a RangeLock.
type Option func(*RangeLock)

// WithMetrics enables Prometheus metrics collection using the provided registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(l *RangeLock) {
		l.acquireCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rangelock_acquisitions_total",
			Help: "Total number of successful range acquisitions",
		})
		l.tryFailCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rangelock_try_lock_failures_total",
			Help: "Total number of try-lock attempts that failed on contention",
		})
		l.regionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rangelock_active_regions",
			Help: "Current number of live regions in this instance",
		})
		l.waitHist = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rangelock_acquire_latency_seconds",
			Help:    "Latency of blocking range acquisitions",
			Buckets: prometheus.DefBuckets,
		})
		reg.MustRegister(l.acquireCounter, l.tryFailCounter, l.regionGauge, l.waitHist)
	}
}

// WithTracing enables OpenTelemetry spans around the scoped helpers.
func WithTracing() Option {
	return func(l *RangeLock) {
		l.traceEnabled = true
	}
}

// WithExclusiveOnly makes every shared-mode call delegate to its exclusive
// counterpart. This mirrors environments without a native reader-writer
// primitive: the API surface is unchanged, but concurrent readers serialize.
func WithExclusiveOnly() Option {
	return func(l *RangeLock) {
		l.exclusiveOnly = true
	}
}

// New returns a RangeLock whose regions each cover regionSize bytes.
// regionSize must be a power of two greater than zero.
func New(regionSize uint64, opts ...Option) (*RangeLock, error) {
	if regionSize == 0 || regionSize&(regionSize-1) != 0 {
		return nil, ErrRegionSize
	}
	l := &RangeLock{
		regionSize: regionSize,
		regions:    make(map[uint64]*region),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// minRegionExp floors the derived region size at 1 KiB so tiny resources do
// not get byte-sized regions.
const minRegionExp = 10

// NewForResource returns a RangeLock with a region size derived from the
// size of the resource to protect, for example the size of a file. The
// region count grows roughly with the square root of the resource size, so
// very large resources do not churn the region table, and the region size is
// never below 1024 bytes.
func NewForResource(resourceSize uint64, opts ...Option) (*RangeLock, error) {
	exp := uint64(minRegionExp)
	if resourceSize > 1 {
		if e := uint64(math.Ceil(math.Log2(float64(resourceSize)) * 0.5)); e > exp {
			exp = e
		}
	}
	return New(uint64(1)<<exp, opts...)
}

// RegionSize returns the number of bytes each region covers.
func (l *RangeLock) RegionSize() uint64 { return l.regionSize }

// Lock acquires the range [offset, offset+length) for exclusive ownership,
// blocking until every covered region is available.
func (l *RangeLock) Lock(offset, length uint64) error {
	return l.lock(offset, length, false)
}

// LockShared acquires the range [offset, offset+length) for shared
// ownership. Under WithExclusiveOnly it behaves exactly like Lock.
func (l *RangeLock) LockShared(offset, length uint64) error {
	return l.lock(offset, length, l.shared())
}

// TryLock attempts to acquire the range [offset, offset+length) for
// exclusive ownership without blocking. It either acquires every covered
// region and returns true, or acquires nothing and returns false; a false
// return leaves no trace in the region table.
func (l *RangeLock) TryLock(offset, length uint64) (bool, error) {
	return l.tryLock(offset, length, false)
}

// TryLockShared is the shared-mode TryLock. Under WithExclusiveOnly it
// behaves exactly like TryLock.
func (l *RangeLock) TryLockShared(offset, length uint64) (bool, error) {
	return l.tryLock(offset, length, l.shared())
}

// Unlock releases the range [offset, offset+length) from exclusive
// ownership. The range must be exactly the one passed to the matching Lock
// or successful TryLock; unlocking a range that was never locked panics.
func (l *RangeLock) Unlock(offset, length uint64) error {
	return l.unlock(offset, length, false)
}

// UnlockShared releases the range [offset, offset+length) from shared
// ownership. Under WithExclusiveOnly it behaves exactly like Unlock.
func (l *RangeLock) UnlockShared(offset, length uint64) error {
	return l.unlock(offset, length, l.shared())
}

// WithLock runs fn with the range [offset, offset+length) held for exclusive
// ownership. The range is released on every exit path, including an error
// return or a panic from fn. The context is recorded on the trace span and
// checked once before acquiring; the blocking acquisition itself is not
// cancellable.
func (l *RangeLock) WithLock(ctx context.Context, offset, length uint64, fn func() error) error {
	return l.withLock(ctx, offset, length, fn, false)
}

// WithLockShared is the shared-mode WithLock. Under WithExclusiveOnly it
// behaves exactly like WithLock.
func (l *RangeLock) WithLockShared(ctx context.Context, offset, length uint64, fn func() error) error {
	return l.withLock(ctx, offset, length, fn, l.shared())
}

// shared reports whether shared-mode calls really use shared acquisition.
func (l *RangeLock) shared() bool { return !l.exclusiveOnly }

func (l *RangeLock) lock(offset, length uint64, shared bool) error {
	s, err := l.span(offset, length)
	if err != nil {
		return err
	}
	l.lockSpan(s, shared)
	return nil
}

// lockSpan blocks on each region of s in ascending id order. The ascending
// order is the deadlock-avoidance invariant: overlapping requests acquire
// their common regions in the same relative order, so no wait cycle can form.
func (l *RangeLock) lockSpan(s regionSpan, shared bool) {
	var start time.Time
	if l.waitHist != nil {
		start = time.Now()
	}
	for id := s.first; id < s.end; id++ {
		r := l.acquireRegion(id)
		if shared {
			r.mu.RLock()
		} else {
			r.mu.Lock()
		}
	}
	if l.waitHist != nil {
		l.waitHist.Observe(time.Since(start).Seconds())
	}
	metrics.LockCounter.Inc()
	if l.acquireCounter != nil {
		l.acquireCounter.Inc()
	}
}

func (l *RangeLock) tryLock(offset, length uint64, shared bool) (bool, error) {
	s, err := l.span(offset, length)
	if err != nil {
		return false, err
	}
	return l.tryLockSpan(s, shared), nil
}

func (l *RangeLock) tryLockSpan(s regionSpan, shared bool) bool {
	for id := s.first; id < s.end; id++ {
		r := l.acquireRegion(id)
		var ok bool
		if shared {
			ok = r.mu.TryRLock()
		} else {
			ok = r.mu.TryLock()
		}
		if ok {
			continue
		}
		// Back out everything this attempt touched: the table reference
		// taken for the contended region, then the lock and reference of
		// each region acquired before it.
		l.releaseRegion(id)
		for prev := s.first; prev < id; prev++ {
			r := l.heldRegion(prev)
			if shared {
				r.mu.RUnlock()
			} else {
				r.mu.Unlock()
			}
			l.releaseRegion(prev)
		}
		metrics.TryFailCounter.Inc()
		if l.tryFailCounter != nil {
			l.tryFailCounter.Inc()
		}
		return false
	}
	metrics.LockCounter.Inc()
	if l.acquireCounter != nil {
		l.acquireCounter.Inc()
	}
	return true
}

func (l *RangeLock) unlock(offset, length uint64, shared bool) error {
	s, err := l.span(offset, length)
	if err != nil {
		return err
	}
	l.unlockSpan(s, shared)
	return nil
}

func (l *RangeLock) unlockSpan(s regionSpan, shared bool) {
	for id := s.first; id < s.end; id++ {
		r := l.heldRegion(id)
		if shared {
			r.mu.RUnlock()
		} else {
			r.mu.Unlock()
		}
		l.releaseRegion(id)
	}
	metrics.UnlockCounter.Inc()
}

func (l *RangeLock) withLock(ctx context.Context, offset, length uint64, fn func() error, shared bool) error {
	s, err := l.span(offset, length)
	if err != nil {
		return err
	}
	if l.traceEnabled {
		name := "RangeLock.WithLock"
		if shared {
			name = "RangeLock.WithLockShared"
		}
		var span trace.Span
		ctx, span = tracer.Start(ctx, name)
		defer span.End()
		span.SetAttributes(
			attribute.Int64("rangelock.offset", int64(offset)),
			attribute.Int64("rangelock.length", int64(length)),
			attribute.Int64("rangelock.regions", int64(s.count())),
		)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	l.lockSpan(s, shared)
	defer l.unlockSpan(s, shared)
	return fn()
}
