//go:build linux

package fieldmask

import "golang.org/x/sys/unix"

// fadviseSequential hints to the kernel that the input file will be read
// front to back exactly once, so readahead can be aggressive.
// Best-effort: errors are silently ignored.
func fadviseSequential(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}
