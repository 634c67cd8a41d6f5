// Package api defines public API contracts for dma-mapcache.
package api

import (
	"context"

	"github.com/srediag/dma-mapcache/pkg/segment"
)

// Device identifies a mapping consumer. Implementations must return a stable,
// process-unique identity for the lifetime of the device.
type Device interface {
	DeviceID() string
	// Coherent reports whether the device accesses memory cache-coherently.
	// Re-use of an existing mapping by a coherent device is preceded by a
	// full memory barrier.
	Coherent() bool
}

// Buffer identifies the shared memory buffer being mapped.
type Buffer interface {
	BufferID() string
}

// DMA is the low-level mapping primitive that programs translation hardware.
// Map populates bus addresses for the given segments; Unmap is always paired
// with a prior successful Map with the same segments and direction. Map may
// block; it is never invoked under the cache's global lock.
type DMA interface {
	Map(ctx context.Context, dev Device, segs segment.List, dir segment.Direction, attrs segment.Attrs) (segment.List, error)
	Unmap(dev Device, segs segment.List, dir segment.Direction)
}

// StaticDevice is a trivial Device implementation for tests and examples.
type StaticDevice struct {
	ID            string
	CacheCoherent bool
}

func (d *StaticDevice) DeviceID() string { return d.ID }
func (d *StaticDevice) Coherent() bool   { return d.CacheCoherent }

// StaticBuffer is a trivial Buffer implementation for tests and examples.
type StaticBuffer struct {
	ID string
}

func (b *StaticBuffer) BufferID() string { return b.ID }
