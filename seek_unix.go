//go:build darwin || freebsd || linux || solaris

package sparsemap

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Supported reports whether this build can query sparse layout at all.
// Individual filesystems may still lack SEEK_DATA support, which surfaces
// as ErrUnsupported from the scan itself.
func Supported() bool {
	return true
}

type seekQuerier struct {
	fd   int
	size int64
}

func newQuerier(file *os.File, size int64) querier {
	return &seekQuerier{fd: int(file.Fd()), size: size}
}

func (q *seekQuerier) nextData(offset int64) (int64, bool, error) {
	// unix.SEEK_DATA, not a literal: darwin swaps the values of SEEK_DATA
	// and SEEK_HOLE relative to the other platforms.
	return q.seek(offset, unix.SEEK_DATA)
}

func (q *seekQuerier) nextHole(offset int64) (int64, bool, error) {
	return q.seek(offset, unix.SEEK_HOLE)
}

// seek wraps lseek with SEEK_DATA/SEEK_HOLE semantics as described in
// https://man7.org/linux/man-pages/man2/lseek.2.html. ENXIO means no extent
// of the requested kind exists at or after offset. An answer at or past the
// end of the file is the virtual hole every file ends in and is reported as
// "no more" so callers never see a transition at EOF.
func (q *seekQuerier) seek(offset int64, whence int) (int64, bool, error) {
	next, err := unix.Seek(q.fd, offset, whence)

	var syserr syscall.Errno
	if errors.As(err, &syserr) {
		switch syserr {
		case unix.ENXIO:
			return 0, false, nil
		case unix.EINVAL, unix.ENOTSUP:
			return 0, false, fmt.Errorf("seek at offset %d: %w", offset, ErrUnsupported)
		}
	}
	if err != nil {
		return 0, false, fmt.Errorf("error seeking at offset %d: %w", offset, err)
	}

	if next >= q.size {
		return 0, false, nil
	}

	return next, true, nil
}
