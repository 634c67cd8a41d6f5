package mapcache

import (
	"errors"
	"sync"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"

	"github.com/srediag/dma-mapcache/api"
)

// errTeardownContended drives the bounded retry loop in buffer teardown; it
// never escapes to callers.
var errTeardownContended = errors.New("mapcache: device index contended")

// ReleaseAllForDevice forcibly frees every mapping pinned by a device,
// ignoring refcounts. Device removal is authoritative. The device index is
// never held while a meta lock is acquired: records are snapshotted one at a
// time and freed under the owning meta's lock with a liveness re-check.
func (m *Mapper) ReleaseAllForDevice(dev api.Device) {
	if dev == nil {
		return
	}
	d, ok := m.devices.Get(dev.DeviceID())
	if !ok {
		return
	}
	m.releaseAllForIndex(d)
	m.devices.Remove(d.key)
}

func (m *Mapper) releaseAllForIndex(d *deviceIndex) {
	for {
		rec := d.anyRecord()
		if rec == nil {
			return
		}
		t := rec.meta

		t.mu.Lock()
		freed := false
		// The record may have been released or reclaimed between the
		// snapshot and taking the meta lock.
		if t.lookup(d.key) == rec {
			m.reportReclaimed(rec, "device removal")
			m.freeRecordLocked(rec, false)
			freed = true
		}
		t.mu.Unlock()

		if freed {
			m.metaPut(t)
		}
	}
}

// ReleaseAllForBuffer frees every remaining mapping of a buffer, then drops
// the buffer's deferred-unmap hold and destroys its registry entry. Invoked
// from buffer destruction, which is authoritative over any deferred hold.
//
// This path nests the two teardown locks in the opposite order from device
// removal, so the device index lock is only ever acquired non-blocking here:
// a contended record is deferred on a queue and the pass retried under a
// bounded constant backoff. Past the retry budget a blocking sweep finishes
// the job; that is safe because no other path blocks on a meta lock while
// holding a device index lock.
func (m *Mapper) ReleaseAllForBuffer(buf api.Buffer) {
	if buf == nil {
		return
	}
	t := m.metaLookup(buf.BufferID())
	if t == nil {
		return
	}

	pending := queue.New(8)
	t.mu.Lock()
	for _, rec := range t.records {
		_ = pending.Put(rec)
	}
	t.mu.Unlock()

	pass := func() error {
		n := pending.Len()
		if n == 0 {
			return nil
		}
		items, err := pending.Get(n)
		if err != nil {
			return nil
		}
		contended := 0
		for _, it := range items {
			rec := it.(*record)
			freed, ok := m.tryReclaim(t, rec)
			if !ok {
				_ = pending.Put(rec)
				contended++
				continue
			}
			if freed {
				m.metaPut(t)
			}
		}
		if contended > 0 {
			m.log.debugf("buffer %s teardown: %d device index(es) contended, retrying", t.key, contended)
			return errTeardownContended
		}
		return nil
	}
	_ = backoff.Retry(pass, backoff.WithMaxRetries(
		backoff.NewConstantBackOff(m.conf.TeardownBackoff), m.conf.TeardownRetries))

	// Blocking sweep: catches records that stayed contended past the retry
	// budget and any acquired after the snapshot. Lock order here is meta
	// then device index, consistent with every other blocking path.
	for {
		t.mu.Lock()
		rec := t.anyRecord()
		if rec == nil {
			t.mu.Unlock()
			break
		}
		rec.idx.mu.Lock()
		m.reportReclaimed(rec, "buffer teardown")
		m.freeRecordLocked(rec, true)
		rec.idx.mu.Unlock()
		t.mu.Unlock()
		m.metaPut(t)
	}

	m.dropLateHold(t)
}

// tryReclaim frees one record for buffer teardown without blocking on its
// device index lock. Returns freed=false, ok=true when the record is already
// gone, and ok=false when the device index lock was contended.
func (m *Mapper) tryReclaim(t *meta, rec *record) (freed, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lookup(rec.dev.DeviceID()) != rec {
		return false, true
	}
	if !rec.idx.mu.TryLock() {
		return false, false
	}
	m.reportReclaimed(rec, "buffer teardown")
	m.freeRecordLocked(rec, true)
	rec.idx.mu.Unlock()
	return true, true
}

// reportReclaimed emits the leaked-mapping diagnostic for a record whose
// caller holds are being overridden by teardown. A deferred mapping whose
// callers all released is reclaimed silently; that is the normal
// amortization path.
func (m *Mapper) reportReclaimed(rec *record, cause string) {
	if holds := rec.callerHolds(); holds > 0 {
		leakedMappings.Inc()
		m.log.warnf("%s reclaimed mapping of buffer %s for device %s with %d caller hold(s)",
			cause, rec.meta.key, rec.dev.DeviceID(), holds)
		return
	}
	m.log.debugf("%s reclaimed deferred mapping of buffer %s for device %s",
		cause, rec.meta.key, rec.dev.DeviceID())
}

// Close tears down every device index in parallel, then withdraws any
// remaining deferred-unmap holds. Further Acquires fail with ErrClosed; a
// second Close is a no-op.
func (m *Mapper) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	indexes := m.devices.Items()
	pool, err := ants.NewPool(m.conf.ClosePoolSize)
	var wg sync.WaitGroup
	for key, d := range indexes {
		d := d
		run := func() {
			defer wg.Done()
			m.releaseAllForIndex(d)
		}
		wg.Add(1)
		if err != nil || pool.Submit(run) != nil {
			run()
		}
		m.devices.Remove(key)
	}
	wg.Wait()
	if err == nil {
		pool.Release()
	}

	m.mu.Lock()
	metas := make([]*meta, 0, len(m.entries))
	for _, t := range m.entries {
		metas = append(metas, t)
	}
	m.mu.Unlock()
	for _, t := range metas {
		m.dropLateHold(t)
	}
	return nil
}
