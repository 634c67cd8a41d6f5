package mapcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srediag/dma-mapcache/api"
	"github.com/srediag/dma-mapcache/pkg/segment"
)

func TestDump(t *testing.T) {
	m, _ := newTestMapper(t)
	dev := &api.StaticDevice{ID: "dev1"}
	buf := &api.StaticBuffer{ID: "bufA"}

	assert.Contains(t, m.Dump(), "0 buffer(s)")

	_, err := m.Acquire(context.Background(), dev, buf, testSegs(), segment.ToDevice, segment.AttrDeferredUnmap)
	assert.NoError(t, err)

	out := m.Dump()
	assert.Contains(t, out, "buffer bufA")
	assert.Contains(t, out, "device dev1")
	assert.Contains(t, out, "dir:to-device")
	assert.Contains(t, out, "lateHold:true")
}
