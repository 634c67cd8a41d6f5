// Package iova contains a small bus-address range allocator used by the
// in-process mapping primitive. Platform-specific helpers live in the
// pagesize_* files.
package iova

import (
	"errors"
	"sync"
)

var ErrSpaceExhausted = errors.New("iova: address space exhausted")

// Allocator hands out page-aligned ranges from a fixed address window.
// Freed ranges are kept per size class and reused before the window grows.
type Allocator struct {
	mu        sync.Mutex
	next      uint64
	limit     uint64
	freeBySz  map[uint64][]uint64
	allocated map[uint64]uint64
}

// New returns an allocator over [base, base+size). base is rounded up and
// size down to the platform page size.
func New(base, size uint64) *Allocator {
	ps := PageSize()
	start := align(base, ps)
	end := (base + size) / ps * ps
	if end < start {
		end = start
	}
	return &Allocator{
		next:      start,
		limit:     end,
		freeBySz:  make(map[uint64][]uint64),
		allocated: make(map[uint64]uint64),
	}
}

// Alloc reserves a page-aligned range of at least n bytes and returns its
// base address.
func (a *Allocator) Alloc(n uint64) (uint64, error) {
	if n == 0 {
		n = 1
	}
	size := align(n, PageSize())

	a.mu.Lock()
	defer a.mu.Unlock()
	if free := a.freeBySz[size]; len(free) > 0 {
		addr := free[len(free)-1]
		a.freeBySz[size] = free[:len(free)-1]
		a.allocated[addr] = size
		return addr, nil
	}
	if a.limit-a.next < size {
		return 0, ErrSpaceExhausted
	}
	addr := a.next
	a.next += size
	a.allocated[addr] = size
	return addr, nil
}

// Free returns a previously allocated range. Freeing an unknown address is a
// caller bug and is reported.
func (a *Allocator) Free(addr uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	size, ok := a.allocated[addr]
	if !ok {
		return errors.New("iova: free of unallocated address")
	}
	delete(a.allocated, addr)
	a.freeBySz[size] = append(a.freeBySz[size], addr)
	return nil
}

// Outstanding returns the number of live allocations.
func (a *Allocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocated)
}

func align(n, ps uint64) uint64 {
	return (n + ps - 1) / ps * ps
}
