package sparsemap

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Supported reports whether this build can query sparse layout at all.
func Supported() bool {
	return true
}

// allocatedRange mirrors FILE_ALLOCATED_RANGE_BUFFER.
type allocatedRange struct {
	offset int64
	length int64
}

// rangeBatch is how many allocated ranges one DeviceIoControl call can
// return. ERROR_MORE_DATA tells us to continue from the last range.
const rangeBatch = 64

type allocQuerier struct {
	handle windows.Handle
	size   int64
}

func newQuerier(file *os.File, size int64) querier {
	return &allocQuerier{handle: windows.Handle(file.Fd()), size: size}
}

func (q *allocQuerier) nextData(offset int64) (int64, bool, error) {
	if offset >= q.size {
		return 0, false, nil
	}

	ranges, _, err := q.allocatedRanges(offset)
	if err != nil {
		return 0, false, err
	}
	if len(ranges) == 0 {
		// Nothing allocated from offset onwards.
		return 0, false, nil
	}

	// The first range can start before the queried offset when the offset
	// falls inside it.
	start := ranges[0].offset
	if start < offset {
		start = offset
	}
	if start >= q.size {
		return 0, false, nil
	}
	return start, true, nil
}

func (q *allocQuerier) nextHole(offset int64) (int64, bool, error) {
	if offset >= q.size {
		return 0, false, nil
	}

	for {
		ranges, more, err := q.allocatedRanges(offset)
		if err != nil {
			return 0, false, err
		}
		if len(ranges) == 0 || ranges[0].offset > offset {
			// The queried offset itself is unallocated.
			return offset, true, nil
		}

		// Walk the allocated ranges looking for a gap between them.
		for i := 0; i+1 < len(ranges); i++ {
			end := ranges[i].offset + ranges[i].length
			if ranges[i+1].offset > end {
				return end, true, nil
			}
		}

		last := ranges[len(ranges)-1]
		end := last.offset + last.length
		if !more {
			if end >= q.size {
				// Allocated all the way to EOF: no hole remains.
				return 0, false, nil
			}
			return end, true, nil
		}

		offset = end
	}
}

func (q *allocQuerier) allocatedRanges(offset int64) (ranges []allocatedRange, more bool, err error) {
	queryRange := allocatedRange{offset: offset, length: q.size - offset}
	out := make([]allocatedRange, rangeBatch)

	var bytesReturned uint32
	err = windows.DeviceIoControl(
		q.handle, windows.FSCTL_QUERY_ALLOCATED_RANGES,
		(*byte)(unsafe.Pointer(&queryRange)), uint32(unsafe.Sizeof(queryRange)),
		(*byte)(unsafe.Pointer(&out[0])), uint32(len(out))*uint32(unsafe.Sizeof(out[0])),
		&bytesReturned, nil,
	)
	if err != nil {
		if !errors.Is(err, syscall.ERROR_MORE_DATA) {
			return nil, false, fmt.Errorf("error querying allocated ranges at offset %d: %w", offset, err)
		}
		more = true
	}

	count := int(bytesReturned) / int(unsafe.Sizeof(allocatedRange{}))
	return out[:count], more, nil
}
