// Package sparsemap discovers the sparse layout of a file: which byte
// ranges hold actual data and which are holes that read as zeroes. Backup
// and copy tools use the resulting Layout to skip reading or transmitting
// hole ranges entirely.
//
// The supported mechanisms per operating system are SEEK_DATA/SEEK_HOLE on
// unix-like systems and FSCTL_QUERY_ALLOCATED_RANGES on windows. On unix
// the seek based queries move the descriptor's file offset, so the offset
// of a scanned file is unspecified after ScanFile returns; the library
// itself only ever reads with ReadAt.
package sparsemap

import (
	"fmt"
	"os"
)

// querier locates extent transitions at or after an offset. Implemented per
// platform. ok is false when no extent of the requested kind starts before
// the end of the file; errors are real OS failures, never "no more".
type querier interface {
	nextData(offset int64) (next int64, ok bool, err error)
	nextHole(offset int64) (next int64, ok bool, err error)
}

// ScanFile discovers the sparse layout of an open file. The file is only
// queried, never written or truncated. Scanning is all or nothing: on error
// no partial layout is returned.
//
// On platforms without sparse query support ScanFile returns ErrUnsupported
// before touching the file at all.
func ScanFile(file *os.File) (*Layout, error) {
	if !Supported() {
		return nil, ErrUnsupported
	}

	size, err := fileSize(file)
	if err != nil {
		return nil, err
	}

	return scan(newQuerier(file, size), size)
}

// scan walks the file from offset 0 to size, classifying the extent at the
// cursor by asking for the next data and next hole transition and emitting
// one segment per extent. The cursor strictly advances every iteration,
// which bounds the loop by the number of extents in the file.
func scan(q querier, size int64) (*Layout, error) {
	layout := &Layout{size: size}
	if size == 0 {
		return layout, nil
	}

	var cursor int64
	for cursor < size {
		data, dok, err := q.nextData(cursor)
		if err != nil {
			return nil, fmt.Errorf("error locating next data extent: %w", err)
		}

		hole, hok, err := q.nextHole(cursor)
		if err != nil {
			return nil, fmt.Errorf("error locating next hole extent: %w", err)
		}

		// Exactly one of the two queries answers with the cursor itself,
		// naming the kind of the current extent. The other query's answer,
		// clamped to the file size, is where the extent ends.
		var kind SegmentKind
		end := size
		switch {
		case dok && data == cursor:
			kind = Data
			if hok {
				end = hole
			}
		case hok && hole == cursor:
			kind = Hole
			if dok {
				end = data
			}
		default:
			return nil, fmt.Errorf("no extent starts at offset %d: %w", cursor, ErrInvalidTransition)
		}

		if end > size {
			end = size
		}
		if end <= cursor {
			// A zero length extent. Real sparse file APIs never report one,
			// so refuse to guess rather than spin or drop bytes.
			return nil, fmt.Errorf("%s extent at offset %d ends at %d: %w", kind, cursor, end, ErrInvalidTransition)
		}

		layout.add(Segment{Start: cursor, End: end, Kind: kind})
		cursor = end
	}

	return layout, nil
}

// fileSize determines the apparent size of the file. Block devices report a
// zero stat size and need an ioctl instead.
func fileSize(file *os.File) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("error running stat: %w", err)
	}

	if isBlockDevice(info) {
		return getBlockDeviceSize(file)
	}

	return info.Size(), nil
}

func isBlockDevice(fi os.FileInfo) bool {
	return fi.Mode()&os.ModeDevice == os.ModeDevice
}
