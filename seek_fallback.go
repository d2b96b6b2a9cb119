//go:build !darwin && !freebsd && !linux && !solaris && !windows

package sparsemap

import "os"

// Supported reports whether this build can query sparse layout at all.
// This operating system has no sparse query mechanism, so scans fail with
// ErrUnsupported before any query is issued.
func Supported() bool {
	return false
}

type unsupportedQuerier struct{}

func newQuerier(file *os.File, size int64) querier {
	return unsupportedQuerier{}
}

func (unsupportedQuerier) nextData(offset int64) (int64, bool, error) {
	return 0, false, ErrUnsupported
}

func (unsupportedQuerier) nextHole(offset int64) (int64, bool, error) {
	return 0, false, ErrUnsupported
}
