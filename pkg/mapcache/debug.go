package mapcache

import (
	"fmt"

	"github.com/valyala/bytebufferpool"
)

// Dump returns a human-readable snapshot of the registry: every buffer
// entry, its refcount, and the per-device records it holds. Intended for
// diagnostics only; the snapshot is not atomic across buffers.
func (m *Mapper) Dump() string {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	m.mu.Lock()
	metas := make([]*meta, 0, len(m.entries))
	for _, t := range m.entries {
		metas = append(metas, t)
	}
	m.mu.Unlock()

	fmt.Fprintf(b, "mapcache: %d buffer(s), %d live record(s)\n", len(metas), m.LiveRecords())
	for _, t := range metas {
		t.mu.Lock()
		m.mu.Lock()
		fmt.Fprintf(b, "buffer %s refs:%d lateHold:%t records:%d\n", t.key, t.refs, t.lateHold, len(t.records))
		m.mu.Unlock()
		for devID, rec := range t.records {
			fmt.Fprintf(b, "  device %s dir:%s nents:%d attrs:%s origin:0x%x refs:%d index:%d\n",
				devID, rec.dir, rec.nents, rec.attrs, rec.origin, rec.refs, rec.idx.size())
		}
		t.mu.Unlock()
	}
	return b.String()
}
