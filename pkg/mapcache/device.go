package mapcache

import "sync"

// deviceIndex is the secondary index listing every record currently pinned
// by one device. It exists only for bulk teardown on device removal.
//
// Lock discipline: mu is a leaf below the meta lock. Acquire/Release mutate
// the set while holding the owning meta's lock and take mu briefly; device
// teardown snapshots under mu without holding any meta lock; buffer teardown
// takes mu non-blocking only (see ReleaseAllForBuffer).
type deviceIndex struct {
	key string

	mu      sync.Mutex
	records map[*record]struct{}
}

func newDeviceIndex(key string) *deviceIndex {
	return &deviceIndex{
		key:     key,
		records: make(map[*record]struct{}, 1),
	}
}

// add inserts a record. Caller holds the owning meta's lock, not mu.
func (d *deviceIndex) add(r *record) {
	d.mu.Lock()
	d.records[r] = struct{}{}
	d.mu.Unlock()
}

// removeLocked deletes a record. Caller already holds mu.
func (d *deviceIndex) removeLocked(r *record) {
	delete(d.records, r)
}

func (d *deviceIndex) remove(r *record) {
	d.mu.Lock()
	delete(d.records, r)
	d.mu.Unlock()
}

// anyRecord returns an arbitrary pinned record, or nil.
func (d *deviceIndex) anyRecord() *record {
	d.mu.Lock()
	defer d.mu.Unlock()
	for r := range d.records {
		return r
	}
	return nil
}

func (d *deviceIndex) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}
