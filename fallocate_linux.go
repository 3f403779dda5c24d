//go:build linux

package fieldmask

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes for the output file and sets its length,
// so writes through the mapping cannot SIGBUS on a full disk.
func fallocateFile(file *os.File, size int64) error {
	fd := int(file.Fd())
	if err := unix.Fallocate(fd, 0, 0, size); err != nil {
		// Some filesystems (NFS, tmpfs on old kernels) lack fallocate.
		return unix.Ftruncate(fd, size)
	}
	return unix.Ftruncate(fd, size)
}
