package sparsemap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func getBlockDeviceSize(file *os.File) (int64, error) {
	size, err := unix.IoctlGetInt(int(file.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, fmt.Errorf("error querying block device size: %w", err)
	}
	return int64(size), nil
}
