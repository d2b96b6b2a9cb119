package sparsemap

// SegmentKind indicates whether a segment of a file is backed by allocated
// storage or is a hole that reads as zeroes.
type SegmentKind int

const (
	// Hole marks a segment with no allocated storage.
	Hole SegmentKind = iota
	// Data marks a segment backed by allocated storage.
	Data
)

func (k SegmentKind) String() string {
	switch k {
	case Hole:
		return "hole"
	case Data:
		return "data"
	}
	return "unknown"
}

// Segment is a single extent of a file: the half open byte range
// [Start, End) together with the kind of storage backing it.
type Segment struct {
	Start int64
	End   int64
	Kind  SegmentKind
}

// Length returns the number of bytes the segment spans.
func (s Segment) Length() int64 {
	return s.End - s.Start
}

// Layout describes the complete sparse layout of a file. Its segments are
// ordered by offset and tile [0, Size()) exactly once: no gaps, no overlaps
// and no two adjacent segments of the same kind. A Layout is immutable once
// returned by a scan.
type Layout struct {
	size     int64
	segments []Segment
}

// Size returns the apparent size of the scanned file.
func (l *Layout) Size() int64 {
	return l.size
}

// Segments returns every segment of the file in ascending offset order. An
// empty file has no segments.
func (l *Layout) Segments() []Segment {
	out := make([]Segment, len(l.segments))
	copy(out, l.segments)
	return out
}

// Data returns only the segments backed by allocated storage, in ascending
// offset order. Iterating these is the usual way to drive selective reads
// that skip holes.
func (l *Layout) Data() []Segment {
	return l.filter(Data)
}

// Holes returns only the hole segments, in ascending offset order.
func (l *Layout) Holes() []Segment {
	return l.filter(Hole)
}

// DataBytes returns the total number of bytes backed by allocated storage.
func (l *Layout) DataBytes() int64 {
	return l.bytes(Data)
}

// HoleBytes returns the total number of bytes covered by holes.
func (l *Layout) HoleBytes() int64 {
	return l.bytes(Hole)
}

func (l *Layout) filter(kind SegmentKind) []Segment {
	out := make([]Segment, 0, len(l.segments))
	for _, seg := range l.segments {
		if seg.Kind == kind {
			out = append(out, seg)
		}
	}
	return out
}

func (l *Layout) bytes(kind SegmentKind) int64 {
	var total int64
	for _, seg := range l.segments {
		if seg.Kind == kind {
			total += seg.Length()
		}
	}
	return total
}

// add appends a segment, extending the previous one instead when both share
// the same kind so adjacent segments always alternate.
func (l *Layout) add(seg Segment) {
	if n := len(l.segments); n > 0 && l.segments[n-1].Kind == seg.Kind {
		l.segments[n-1].End = seg.End
		return
	}
	l.segments = append(l.segments, seg)
}
