//go:build !linux

package sparsemap

import (
	"errors"
	"os"
)

func getBlockDeviceSize(file *os.File) (int64, error) {
	return 0, errors.New("block device size detection not supported")
}
