//go:build linux

package iova

import "golang.org/x/sys/unix"

// PageSize returns the platform page size used for range alignment.
func PageSize() uint64 {
	return uint64(unix.Getpagesize())
}
