//go:build !linux

package iova

// PageSize returns the range alignment granularity on platforms without a
// syscall-backed page size helper.
func PageSize() uint64 {
	return 4096
}
