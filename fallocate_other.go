//go:build !linux && !darwin

package fieldmask

import "os"

// fallocateFile sets the output file length. Disk blocks may not be reserved
// on every filesystem.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}
