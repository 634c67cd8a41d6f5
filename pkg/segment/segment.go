// Package segment describes the scatter-gather segment lists exchanged with
// the low-level mapping primitive. A List is owned by whoever built it;
// cloning is explicit.
package segment

import "strconv"

// Direction is the access direction a mapping is created with.
type Direction uint8

const (
	Bidirectional Direction = iota
	ToDevice
	FromDevice
	NoDirection
)

func (d Direction) String() string {
	switch d {
	case Bidirectional:
		return "bidirectional"
	case ToDevice:
		return "to-device"
	case FromDevice:
		return "from-device"
	case NoDirection:
		return "none"
	}
	return "direction(" + strconv.Itoa(int(d)) + ")"
}

// Attrs is an opaque flag set describing mapping semantics.
type Attrs uint64

const (
	// AttrDeferredUnmap keeps the mapping alive past its last release
	// through an extra standing hold, until the buffer or device goes away.
	// This amortizes repeated map/unmap cycles by the same device. Without
	// it the mapping is removed as soon as its last explicit hold drops.
	AttrDeferredUnmap Attrs = 1 << iota
)

// DeferredUnmap reports whether the mapping should outlive its last release.
func (a Attrs) DeferredUnmap() bool {
	return a&AttrDeferredUnmap != 0
}

func (a Attrs) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// Segment is one physically contiguous range of a buffer's backing memory.
// PhysAddr/Length come from the buffer owner; BusAddr/BusLen are populated by
// the mapping primitive.
type Segment struct {
	PhysAddr uint64
	Length   uint64
	BusAddr  uint64
	BusLen   uint64
}

// List is an ordered sequence of segments.
type List []Segment

// Clone returns an independently owned copy of the list.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// PhysStart returns the physical start address of the first segment. It is
// the identity used to detect incompatible re-use of an existing mapping.
func (l List) PhysStart() uint64 {
	if len(l) == 0 {
		return 0
	}
	return l[0].PhysAddr
}

// TotalLength sums the byte lengths of all segments.
func (l List) TotalLength() uint64 {
	var n uint64
	for i := range l {
		n += l[i].Length
	}
	return n
}
