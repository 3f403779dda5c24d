//go:build !linux

package fieldmask

// prefaultRegion is a no-op on non-Linux platforms.
func prefaultRegion(data []byte) {}
