package mapcache

import "sync"

// meta is the per-buffer registry entry: the set of mapping records for one
// buffer, a lock serializing mutation of that set, and a reference count
// controlling the entry's own lifetime.
//
// refs accounting: one per live record, one while a deferred-unmap hold is
// standing (lateHold), plus one transient ref per in-flight Acquire. refs
// transitions happen only under the mapper's global lock; the record set
// only under mu.
type meta struct {
	key string

	mu      sync.Mutex
	records map[string]*record
	dead    bool

	refs     int
	lateHold bool
}

func newMeta(key string) *meta {
	return &meta{
		key:     key,
		records: make(map[string]*record, 1),
		refs:    1,
	}
}

// lookup finds the live record for a device. Caller holds mu.
func (t *meta) lookup(devID string) *record {
	return t.records[devID]
}

// anyRecord returns an arbitrary live record, or nil. Caller holds mu.
func (t *meta) anyRecord() *record {
	for _, r := range t.records {
		return r
	}
	return nil
}
