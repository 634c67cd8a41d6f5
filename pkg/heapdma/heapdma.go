// Package heapdma is an in-process implementation of the api.DMA mapping
// primitive. It assigns bus addresses from a private IOVA window instead of
// programming translation hardware, which makes it suitable for examples,
// tests, and single-process deployments that only need the cache's re-use
// and lifetime semantics.
package heapdma

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/srediag/dma-mapcache/api"
	"github.com/srediag/dma-mapcache/internal/iova"
	"github.com/srediag/dma-mapcache/pkg/segment"
)

// ErrNoSpace is returned when the IOVA window or system memory cannot cover
// the requested mapping.
var ErrNoSpace = errors.New("heapdma: no space left for mapping")

// DefaultWindowSize is the IOVA window used by New.
const DefaultWindowSize = 1 << 32

// windowBase keeps assigned bus addresses clearly outside the low physical
// range to make mixups visible in diagnostics.
const windowBase = 0x8000_0000_0000

// DMA implements api.DMA on the heap.
type DMA struct {
	mu    sync.Mutex
	alloc *iova.Allocator
}

// New returns a heap-backed mapping primitive with the default IOVA window.
func New() *DMA {
	return NewWithWindow(DefaultWindowSize)
}

// NewWithWindow returns a heap-backed mapping primitive with an IOVA window
// of the given size in bytes.
func NewWithWindow(size uint64) *DMA {
	return &DMA{alloc: iova.New(windowBase, size)}
}

// Map assigns a bus address to every segment. On failure nothing stays
// allocated.
func (d *DMA) Map(ctx context.Context, dev api.Device, segs segment.List, dir segment.Direction, attrs segment.Attrs) (segment.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, errors.New("heapdma: empty segment list")
	}
	if !hasMemoryFor(segs.TotalLength()) {
		return nil, fmt.Errorf("%w: %d bytes requested", ErrNoSpace, segs.TotalLength())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := segs.Clone()
	for i := range out {
		base, err := d.alloc.Alloc(out[i].Length)
		if err != nil {
			for j := 0; j < i; j++ {
				_ = d.alloc.Free(out[j].BusAddr)
			}
			return nil, fmt.Errorf("heapdma: segment %d: %w", i, err)
		}
		out[i].BusAddr = base
		out[i].BusLen = out[i].Length
	}
	return out, nil
}

// Unmap returns the segments' bus ranges to the window. Always paired with a
// prior successful Map.
func (d *DMA) Unmap(dev api.Device, segs segment.List, dir segment.Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range segs {
		if segs[i].BusAddr == 0 {
			continue
		}
		_ = d.alloc.Free(segs[i].BusAddr)
	}
}

// Outstanding returns the number of live bus ranges.
func (d *DMA) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc.Outstanding()
}

// hasMemoryFor refuses mappings larger than the memory currently available
// to the process. When the probe itself fails the mapping is allowed, the
// allocator's own limit still applies.
func hasMemoryFor(n uint64) bool {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return true
	}
	return vm.Available >= n
}
