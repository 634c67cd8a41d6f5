package mapcache

import (
	"errors"
	"fmt"

	"github.com/valyala/bytebufferpool"

	"github.com/srediag/dma-mapcache/pkg/segment"
)

var (
	// ErrInvalidArgument is returned when a required identity (device,
	// buffer, segment list) is nil or empty. No state is touched.
	ErrInvalidArgument = errors.New("mapcache: invalid argument")

	// ErrDoubleRelease is returned by Release when no matching mapping
	// exists. It indicates a caller bug, not cache corruption.
	ErrDoubleRelease = errors.New("mapcache: release without matching acquire")

	// ErrClosed is returned by Acquire after the mapper has been closed.
	ErrClosed = errors.New("mapcache: mapper closed")
)

// MappingError wraps a failure of the external mapping primitive. No mapping
// record is created when it is returned.
type MappingError struct {
	Device string
	Buffer string
	Err    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapcache: mapping buffer %s for device %s failed: %v", e.Buffer, e.Device, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// IncompatibleReuseError reports an Acquire for an existing (buffer, device)
// pair that disagrees with the live mapping. The existing mapping is left
// untouched.
type IncompatibleReuseError struct {
	Device   string
	Buffer   string
	Diverged []string

	ReqDir, CurDir       segment.Direction
	ReqNents, CurNents   int
	ReqAttrs, CurAttrs   segment.Attrs
	ReqOrigin, CurOrigin uint64
}

func (e *IncompatibleReuseError) Error() string {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	fmt.Fprintf(b, "mapcache: map request for buffer %s by device %s differs from live mapping (%v):",
		e.Buffer, e.Device, e.Diverged)
	fmt.Fprintf(b, "\nreq dir:%s, original dir:%s", e.ReqDir, e.CurDir)
	fmt.Fprintf(b, "\nreq nents:%d, original nents:%d", e.ReqNents, e.CurNents)
	fmt.Fprintf(b, "\nreq map attrs:%s, original map attrs:%s", e.ReqAttrs, e.CurAttrs)
	fmt.Fprintf(b, "\nreq buffer start address differs:%t", e.ReqOrigin != e.CurOrigin)
	return b.String()
}
