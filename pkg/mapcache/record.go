package mapcache

import (
	"github.com/srediag/dma-mapcache/api"
	"github.com/srediag/dma-mapcache/pkg/segment"
)

// record is one reference-counted mapping per (buffer, device) pair. The
// segment list is an owned clone populated with bus addresses. All fields
// except refs are immutable after creation; refs is guarded by the owning
// meta's lock.
type record struct {
	dev  api.Device
	meta *meta
	idx  *deviceIndex

	segs   segment.List
	nents  int
	dir    segment.Direction
	attrs  segment.Attrs
	origin uint64

	refs int
}

// callerHolds returns the number of explicit holds, excluding the standing
// deferred-unmap hold.
func (r *record) callerHolds() int {
	if r.attrs.DeferredUnmap() {
		return r.refs - 1
	}
	return r.refs
}

// validate checks a re-use request against the live mapping. It returns nil
// on a match and a populated IncompatibleReuseError otherwise.
func (r *record) validate(bufID string, nents int, dir segment.Direction, attrs segment.Attrs, origin uint64) *IncompatibleReuseError {
	var diverged []string
	if nents != r.nents {
		diverged = append(diverged, "nents")
	}
	if dir != r.dir {
		diverged = append(diverged, "direction")
	}
	if attrs != r.attrs {
		diverged = append(diverged, "attrs")
	}
	if origin != r.origin {
		diverged = append(diverged, "origin")
	}
	if diverged == nil {
		return nil
	}
	return &IncompatibleReuseError{
		Device:    r.dev.DeviceID(),
		Buffer:    bufID,
		Diverged:  diverged,
		ReqDir:    dir,
		CurDir:    r.dir,
		ReqNents:  nents,
		CurNents:  r.nents,
		ReqAttrs:  attrs,
		CurAttrs:  r.attrs,
		ReqOrigin: origin,
		CurOrigin: r.origin,
	}
}
