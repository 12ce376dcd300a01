package rangelock

import (
	"errors"
	"math"
	"testing"
)

func TestSpanCoversRange(t *testing.T) {
	cases := []struct {
		regionSize     uint64
		offset, length uint64
		first, end     uint64
	}{
		{1024, 0, 1024, 0, 1},
		{1024, 0, 1, 0, 1},
		{1024, 1023, 1, 0, 1},
		{1024, 1023, 2, 0, 2},
		{1024, 1024, 1024, 1, 2},
		{1024, 4096, 8192, 4, 12},
		{4096, 5000, 100, 1, 2},
		{4096, 4096, 4096, 1, 2},
	}
	for _, c := range cases {
		l, err := New(c.regionSize)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		s, err := l.span(c.offset, c.length)
		if err != nil {
			t.Fatalf("span(%d, %d): %v", c.offset, c.length, err)
		}
		if s.first != c.first || s.end != c.end {
			t.Fatalf("span(%d, %d) rs=%d: got [%d, %d), want [%d, %d)",
				c.offset, c.length, c.regionSize, s.first, s.end, c.first, c.end)
		}
	}
}

// The id sequence must equal [floor(offset/rs), ceil((offset+length)/rs))
// for every range, checked here by brute force over small inputs.
func TestSpanMatchesAlignment(t *testing.T) {
	const rs = 8
	l, err := New(rs)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for offset := uint64(0); offset < 4*rs; offset++ {
		for length := uint64(1); length < 3*rs; length++ {
			s, err := l.span(offset, length)
			if err != nil {
				t.Fatalf("span(%d, %d): %v", offset, length, err)
			}
			wantFirst := offset / rs
			wantEnd := (offset + length + rs - 1) / rs
			if s.first != wantFirst || s.end != wantEnd {
				t.Fatalf("span(%d, %d): got [%d, %d), want [%d, %d)",
					offset, length, s.first, s.end, wantFirst, wantEnd)
			}
		}
	}
}

func TestSpanRejectsInvalidRanges(t *testing.T) {
	l, err := New(1024)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := l.span(0, 0); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("zero length: got %v, want ErrInvalidRange", err)
	}
	if _, err := l.span(math.MaxUint64, 2); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("overflow: got %v, want ErrInvalidRange", err)
	}
	if _, err := l.span(math.MaxUint64-1, 1); err != nil {
		t.Fatalf("range ending at the top of the domain should be valid: %v", err)
	}
}

func TestInvalidRangeSurfacesOnEveryOperation(t *testing.T) {
	l, err := New(1024)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := l.Lock(0, 0); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("lock: got %v", err)
	}
	if _, err := l.TryLock(math.MaxUint64, 1024); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("trylock: got %v", err)
	}
	if err := l.Unlock(0, 0); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("unlock: got %v", err)
	}
	if err := l.LockShared(5, 0); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("lockshared: got %v", err)
	}
	if l.activeRegions() != 0 {
		t.Fatalf("rejected calls must not touch the table, got %d regions", l.activeRegions())
	}
}
