package sparsemap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// extentQuerier answers transition queries from a literal list of extents
// tiling the file, mimicking a well behaved platform layer.
type extentQuerier struct {
	extents []Segment
}

func (q *extentQuerier) nextData(offset int64) (int64, bool, error) { return q.next(offset, Data) }
func (q *extentQuerier) nextHole(offset int64) (int64, bool, error) { return q.next(offset, Hole) }

func (q *extentQuerier) next(offset int64, kind SegmentKind) (int64, bool, error) {
	for _, ext := range q.extents {
		if ext.Kind != kind || ext.End <= offset {
			continue
		}
		if ext.Start > offset {
			return ext.Start, true, nil
		}
		return offset, true, nil
	}
	return 0, false, nil
}

// funcQuerier scripts arbitrary answers, including contract violating ones.
type funcQuerier struct {
	data func(offset int64) (int64, bool, error)
	hole func(offset int64) (int64, bool, error)
}

func (q *funcQuerier) nextData(offset int64) (int64, bool, error) { return q.data(offset) }
func (q *funcQuerier) nextHole(offset int64) (int64, bool, error) { return q.hole(offset) }

func none(int64) (int64, bool, error) { return 0, false, nil }

func at(next int64) func(int64) (int64, bool, error) {
	return func(int64) (int64, bool, error) { return next, true, nil }
}

func TestScan(t *testing.T) {
	tests := map[string]struct {
		size        int64
		extents     []Segment
		expSegments []Segment
	}{
		"empty file yields no segments": {
			size:        0,
			extents:     nil,
			expSegments: []Segment{},
		},
		"fully dense file yields a single data segment": {
			size:        100,
			extents:     []Segment{{Start: 0, End: 100, Kind: Data}},
			expSegments: []Segment{{Start: 0, End: 100, Kind: Data}},
		},
		"fully sparse file yields a single hole segment": {
			size:        100,
			extents:     []Segment{{Start: 0, End: 100, Kind: Hole}},
			expSegments: []Segment{{Start: 0, End: 100, Kind: Hole}},
		},
		"data hole data": {
			size: 100,
			extents: []Segment{
				{Start: 0, End: 10, Kind: Data},
				{Start: 10, End: 50, Kind: Hole},
				{Start: 50, End: 100, Kind: Data},
			},
			expSegments: []Segment{
				{Start: 0, End: 10, Kind: Data},
				{Start: 10, End: 50, Kind: Hole},
				{Start: 50, End: 100, Kind: Data},
			},
		},
		"file starting with a hole": {
			size: 64,
			extents: []Segment{
				{Start: 0, End: 32, Kind: Hole},
				{Start: 32, End: 64, Kind: Data},
			},
			expSegments: []Segment{
				{Start: 0, End: 32, Kind: Hole},
				{Start: 32, End: 64, Kind: Data},
			},
		},
		"file ending in a hole": {
			size: 64,
			extents: []Segment{
				{Start: 0, End: 8, Kind: Data},
				{Start: 8, End: 64, Kind: Hole},
			},
			expSegments: []Segment{
				{Start: 0, End: 8, Kind: Data},
				{Start: 8, End: 64, Kind: Hole},
			},
		},
		"many alternating extents": {
			size: 50,
			extents: []Segment{
				{Start: 0, End: 10, Kind: Hole},
				{Start: 10, End: 20, Kind: Data},
				{Start: 20, End: 30, Kind: Hole},
				{Start: 30, End: 40, Kind: Data},
				{Start: 40, End: 50, Kind: Hole},
			},
			expSegments: []Segment{
				{Start: 0, End: 10, Kind: Hole},
				{Start: 10, End: 20, Kind: Data},
				{Start: 20, End: 30, Kind: Hole},
				{Start: 30, End: 40, Kind: Data},
				{Start: 40, End: 50, Kind: Hole},
			},
		},
		"single byte of data": {
			size:        1,
			extents:     []Segment{{Start: 0, End: 1, Kind: Data}},
			expSegments: []Segment{{Start: 0, End: 1, Kind: Data}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			layout, err := scan(&extentQuerier{extents: test.extents}, test.size)

			require.NoError(err)
			require.Equal(test.expSegments, layout.Segments())
			require.Equal(test.size, layout.Size())
			assertTiling(t, layout)
		})
	}
}

func TestScanFailures(t *testing.T) {
	errBoom := errors.New("boom")

	tests := map[string]struct {
		size     int64
		querier  querier
		expErrIs error
	}{
		"neither query starting at the cursor is fatal": {
			size:     100,
			querier:  &funcQuerier{data: at(5), hole: at(7)},
			expErrIs: ErrInvalidTransition,
		},
		"no extents at all in a non empty file is fatal": {
			size:     100,
			querier:  &funcQuerier{data: none, hole: none},
			expErrIs: ErrInvalidTransition,
		},
		"zero length extent is fatal": {
			size:     100,
			querier:  &funcQuerier{data: at(0), hole: at(0)},
			expErrIs: ErrInvalidTransition,
		},
		"data query failure propagates": {
			size: 100,
			querier: &funcQuerier{
				data: func(int64) (int64, bool, error) { return 0, false, errBoom },
				hole: at(0),
			},
			expErrIs: errBoom,
		},
		"hole query failure propagates": {
			size: 100,
			querier: &funcQuerier{
				data: at(0),
				hole: func(int64) (int64, bool, error) { return 0, false, errBoom },
			},
			expErrIs: errBoom,
		},
		"filesystem without sparse support surfaces as unsupported": {
			size: 100,
			querier: &funcQuerier{
				data: func(int64) (int64, bool, error) { return 0, false, ErrUnsupported },
				hole: none,
			},
			expErrIs: ErrUnsupported,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			layout, err := scan(test.querier, test.size)

			require.ErrorIs(err, test.expErrIs)
			require.Nil(layout)
		})
	}
}

func TestScanClampsToFileSize(t *testing.T) {
	require := require.New(t)

	// The hole answer lies past the end of the file; the segment must be
	// clamped, not extended.
	q := &funcQuerier{data: at(0), hole: at(150)}

	layout, err := scan(q, 100)

	require.NoError(err)
	require.Equal([]Segment{{Start: 0, End: 100, Kind: Data}}, layout.Segments())
}

func TestScanMergesSameKindAnswers(t *testing.T) {
	require := require.New(t)

	// A platform layer reporting two back to back data extents. The scan
	// must merge them instead of emitting adjacent segments of one kind.
	q := &funcQuerier{
		data: func(offset int64) (int64, bool, error) {
			if offset < 20 {
				return offset, true, nil
			}
			return 0, false, nil
		},
		hole: func(offset int64) (int64, bool, error) {
			switch {
			case offset < 10:
				return 10, true, nil
			case offset < 20:
				return 20, true, nil
			}
			return offset, true, nil
		},
	}

	layout, err := scan(q, 30)

	require.NoError(err)
	require.Equal([]Segment{
		{Start: 0, End: 20, Kind: Data},
		{Start: 20, End: 30, Kind: Hole},
	}, layout.Segments())
}

func TestScanIsIdempotent(t *testing.T) {
	require := require.New(t)

	q := &extentQuerier{extents: []Segment{
		{Start: 0, End: 10, Kind: Data},
		{Start: 10, End: 50, Kind: Hole},
		{Start: 50, End: 100, Kind: Data},
	}}

	first, err := scan(q, 100)
	require.NoError(err)

	second, err := scan(q, 100)
	require.NoError(err)

	require.Equal(first, second)
}

// assertTiling checks the structural invariants every layout must hold:
// segments tile [0, size) in order with no gaps, no overlaps, no zero
// length segments and no two adjacent segments of the same kind.
func assertTiling(t *testing.T, layout *Layout) {
	t.Helper()
	assert := assert.New(t)

	segments := layout.Segments()
	if layout.Size() == 0 {
		assert.Empty(segments)
		return
	}

	var cursor int64
	for i, seg := range segments {
		assert.Equal(cursor, seg.Start, "segment %d must start where the previous one ended", i)
		assert.Greater(seg.End, seg.Start, "segment %d must not be empty", i)
		if i > 0 {
			assert.NotEqual(segments[i-1].Kind, seg.Kind, "segment %d must alternate kind", i)
		}
		cursor = seg.End
	}
	assert.Equal(layout.Size(), cursor, "segments must cover the file exactly")

	assert.Equal(layout.Size(), layout.DataBytes()+layout.HoleBytes())
}
