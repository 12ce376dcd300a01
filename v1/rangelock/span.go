package rangelock

import "math"

// regionSpan is the half-open interval [first, end) of region ids covering a
// byte range after outward alignment to region boundaries.
type regionSpan struct {
	first uint64
	end   uint64
}

func (s regionSpan) count() uint64 { return s.end - s.first }

// span maps the byte range [offset, offset+length) onto the ordered ids of
// its covering regions. It returns ErrInvalidRange when length is zero or
// offset+length does not fit in a uint64.
func (l *RangeLock) span(offset, length uint64) (regionSpan, error) {
	if length == 0 || offset > math.MaxUint64-length {
		return regionSpan{}, ErrInvalidRange
	}
	return regionSpan{
		first: offset / l.regionSize,
		end:   (offset+length-1)/l.regionSize + 1,
	}, nil
}
