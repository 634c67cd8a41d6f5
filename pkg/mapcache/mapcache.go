// Package mapcache caches address-space mappings shared between independent
// devices mapping the same buffer. A mapping is created once per
// (buffer, device) pair, handed out by reference count, validated on re-use,
// and torn down when its last hold drops or when the buffer or device goes
// away.
package mapcache

import (
	"context"
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/dma-mapcache/api"
	"github.com/srediag/dma-mapcache/internal/barrier"
	"github.com/srediag/dma-mapcache/pkg/segment"
)

// Mapper is the global mapping registry. One Mapper manages the metas of all
// buffers and the secondary per-device indexes.
type Mapper struct {
	dma  api.DMA
	conf *Config
	log  *logger

	// mu guards entries and every meta's refs. It is held only for registry
	// membership operations, never across the mapping primitive.
	mu      sync.Mutex
	entries map[string]*meta
	closed  bool

	devices cmap.ConcurrentMap[string, *deviceIndex]

	live     atomic.Int64
	acquires metric.Int64Counter
}

// New creates a Mapper on top of the given mapping primitive.
func New(dma api.DMA, conf *Config) (*Mapper, error) {
	if dma == nil {
		return nil, ErrInvalidArgument
	}
	if conf == nil {
		conf = DefaultConfig()
	}
	if err := VerifyConfig(conf); err != nil {
		return nil, err
	}
	log := internalLogger
	if conf.LogOutput != nil {
		log = newLogger("mapcache", conf.LogOutput)
	}
	m := &Mapper{
		dma:     dma,
		conf:    conf,
		log:     log,
		entries: make(map[string]*meta),
		devices: cmap.New[*deviceIndex](),
	}
	if conf.Meter != nil {
		var err error
		m.acquires, err = conf.Meter.Int64Counter("mapcache.acquires")
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Acquire resolves a mapping for (buf, dev), creating it through the mapping
// primitive on first use and re-using the live mapping afterwards. The
// returned list is the caller's copy of the mapped segments. A re-use
// request must agree with the live mapping on segment count, direction,
// attributes and origin address; a divergent request fails with
// *IncompatibleReuseError and mutates nothing.
func (m *Mapper) Acquire(ctx context.Context, dev api.Device, buf api.Buffer, segs segment.List, dir segment.Direction, attrs segment.Attrs) (segment.List, error) {
	if dev == nil || buf == nil || len(segs) == 0 {
		return nil, ErrInvalidArgument
	}
	if m.conf.Tracer != nil {
		var span trace.Span
		ctx, span = m.conf.Tracer.Start(ctx, "mapcache.Acquire")
		defer span.End()
	}
	if m.acquires != nil {
		m.acquires.Add(ctx, 1)
	}

	deferred := attrs.DeferredUnmap()
	t, created, err := m.metaGetOrCreate(buf.BufferID(), deferred)
	if err != nil {
		return nil, err
	}

	out, newRecord, err := m.acquireLocked(ctx, t, dev, buf, segs, dir, attrs)

	// Drop this call's transient hold. When a record was created the hold
	// transfers to it instead; on failure the creation-time deferred hold
	// is withdrawn too.
	if err != nil {
		if created {
			m.dropLateHold(t)
		}
		m.metaPut(t)
		return nil, err
	}
	if !newRecord {
		m.metaPut(t)
	}
	return out, nil
}

// acquireLocked resolves the per-device record under the meta lock. The
// mapping primitive runs inside the meta lock, so concurrent maps of the
// same buffer serialize while different buffers proceed in parallel.
func (m *Mapper) acquireLocked(ctx context.Context, t *meta, dev api.Device, buf api.Buffer, segs segment.List, dir segment.Direction, attrs segment.Attrs) (segment.List, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.lookup(dev.DeviceID())
	if rec == nil {
		mapped, err := m.dma.Map(ctx, dev, segs, dir, attrs)
		hardwareMaps.Inc()
		if err != nil {
			return nil, false, &MappingError{Device: dev.DeviceID(), Buffer: buf.BufferID(), Err: err}
		}
		rec = &record{
			dev:    dev,
			meta:   t,
			idx:    m.deviceIdx(dev.DeviceID()),
			segs:   mapped.Clone(),
			nents:  len(segs),
			dir:    dir,
			attrs:  attrs,
			origin: segs.PhysStart(),
			refs:   1,
		}
		if attrs.DeferredUnmap() {
			rec.refs = 2
		}
		t.records[dev.DeviceID()] = rec
		rec.idx.add(rec)
		m.live.Add(1)
		liveRecords.Inc()
		return mapped, true, nil
	}

	if verr := rec.validate(buf.BufferID(), len(segs), dir, attrs, segs.PhysStart()); verr != nil {
		incompatibleReuses.Inc()
		m.log.errorf("%v", verr)
		return nil, false, verr
	}
	rec.refs++
	mappingReuses.Inc()
	if dev.Coherent() {
		// Make all outstanding writes visible before the device performs
		// DMA through the re-used mapping.
		barrier.Full()
	}
	return rec.segs.Clone(), false, nil
}

// Release drops one hold on the (buf, dev) mapping. At zero the record is
// removed from both indexes, the mapping primitive's Unmap runs, and the
// record is freed. Releasing a pair with no live mapping returns
// ErrDoubleRelease.
func (m *Mapper) Release(dev api.Device, buf api.Buffer) error {
	if dev == nil || buf == nil {
		return ErrInvalidArgument
	}
	t := m.metaLookup(buf.BufferID())
	if t == nil {
		doubleReleases.Inc()
		m.log.errorf("release of buffer %s by device %s without matching acquire", buf.BufferID(), dev.DeviceID())
		return ErrDoubleRelease
	}

	t.mu.Lock()
	rec := t.lookup(dev.DeviceID())
	if t.dead || rec == nil {
		t.mu.Unlock()
		doubleReleases.Inc()
		m.log.errorf("release of buffer %s by device %s without matching acquire", buf.BufferID(), dev.DeviceID())
		return ErrDoubleRelease
	}
	rec.refs--
	freed := rec.refs == 0
	if freed {
		m.freeRecordLocked(rec, false)
	}
	t.mu.Unlock()

	if freed {
		m.metaPut(t)
	}
	return nil
}

// freeRecordLocked removes rec from both indexes, unmaps it and frees it.
// Caller holds the owning meta's lock; idxLocked says whether the device
// index lock is already held. The meta ref owned by the record is NOT
// dropped here: the caller does that after releasing the meta lock.
func (m *Mapper) freeRecordLocked(rec *record, idxLocked bool) {
	delete(rec.meta.records, rec.dev.DeviceID())
	if idxLocked {
		rec.idx.removeLocked(rec)
	} else {
		rec.idx.remove(rec)
	}
	m.dma.Unmap(rec.dev, rec.segs, rec.dir)
	rec.segs = nil
	m.live.Add(-1)
	liveRecords.Dec()
}

// metaGetOrCreate is the registry's atomic find-or-create. The returned meta
// carries one transient ref owned by the caller; a created meta additionally
// carries the deferred-unmap hold when requested.
func (m *Mapper) metaGetOrCreate(key string, deferred bool) (*meta, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	if t, ok := m.entries[key]; ok {
		t.refs++
		return t, false, nil
	}
	t := newMeta(key)
	if deferred {
		t.refs++
		t.lateHold = true
	}
	m.entries[key] = t
	return t, true, nil
}

func (m *Mapper) metaLookup(key string) *meta {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key]
}

// metaPut drops one meta ref under the global lock. At zero the entry is
// removed and destroyed; destruction with a non-empty record set indicates a
// mapping leaked past buffer teardown and is reported.
func (m *Mapper) metaPut(t *meta) {
	m.mu.Lock()
	dead := m.metaDecLocked(t)
	m.mu.Unlock()
	if dead {
		m.metaDestroyed(t)
	}
}

// dropLateHold withdraws the standing deferred-unmap hold, if present.
func (m *Mapper) dropLateHold(t *meta) {
	m.mu.Lock()
	if !t.lateHold {
		m.mu.Unlock()
		return
	}
	t.lateHold = false
	dead := m.metaDecLocked(t)
	m.mu.Unlock()
	if dead {
		m.metaDestroyed(t)
	}
}

// metaDecLocked decrements refs and removes the entry at zero. Caller holds
// the global lock; returns true when the meta is now dead.
func (m *Mapper) metaDecLocked(t *meta) bool {
	t.refs--
	if t.refs > 0 {
		return false
	}
	delete(m.entries, t.key)
	return true
}

func (m *Mapper) metaDestroyed(t *meta) {
	t.mu.Lock()
	t.dead = true
	remaining := len(t.records)
	t.mu.Unlock()
	if remaining > 0 {
		leakedMappings.Add(float64(remaining))
		m.log.warnf("buffer %s destroyed with %d outstanding mappings", t.key, remaining)
	}
}

// deviceIdx returns the secondary index for a device, creating it on first
// use. Creation races resolve through the concurrent map.
func (m *Mapper) deviceIdx(key string) *deviceIndex {
	if d, ok := m.devices.Get(key); ok {
		return d
	}
	d := newDeviceIndex(key)
	if !m.devices.SetIfAbsent(key, d) {
		d, _ = m.devices.Get(key)
	}
	return d
}

// LiveRecords returns the number of live mapping records.
func (m *Mapper) LiveRecords() int {
	return int(m.live.Load())
}

// Closed reports whether Close has been called.
func (m *Mapper) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
