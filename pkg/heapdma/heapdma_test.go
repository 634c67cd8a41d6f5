package heapdma

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srediag/dma-mapcache/api"
	"github.com/srediag/dma-mapcache/internal/iova"
	"github.com/srediag/dma-mapcache/pkg/segment"
)

func TestMapAssignsBusAddresses(t *testing.T) {
	d := New()
	dev := &api.StaticDevice{ID: "dev0"}
	segs := segment.List{
		{PhysAddr: 0x1000, Length: 4096},
		{PhysAddr: 0x8000, Length: 512},
	}

	mapped, err := d.Map(context.Background(), dev, segs, segment.Bidirectional, 0)
	assert.NoError(t, err)
	assert.Len(t, mapped, 2)
	assert.NotZero(t, mapped[0].BusAddr)
	assert.NotZero(t, mapped[1].BusAddr)
	assert.NotEqual(t, mapped[0].BusAddr, mapped[1].BusAddr)
	assert.Equal(t, uint64(4096), mapped[0].BusLen)
	// input list untouched
	assert.Zero(t, segs[0].BusAddr)
	assert.Equal(t, 2, d.Outstanding())

	d.Unmap(dev, mapped, segment.Bidirectional)
	assert.Zero(t, d.Outstanding())
}

func TestMapEmptyList(t *testing.T) {
	d := New()
	_, err := d.Map(context.Background(), &api.StaticDevice{ID: "dev0"}, nil, segment.ToDevice, 0)
	assert.Error(t, err)
}

func TestMapCancelledContext(t *testing.T) {
	d := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Map(ctx, &api.StaticDevice{ID: "dev0"}, segment.List{{PhysAddr: 1, Length: 1}}, segment.ToDevice, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapRollsBackOnExhaustion(t *testing.T) {
	d := NewWithWindow(2 * iova.PageSize())
	dev := &api.StaticDevice{ID: "dev0"}
	segs := segment.List{
		{PhysAddr: 0x1000, Length: iova.PageSize()},
		{PhysAddr: 0x2000, Length: iova.PageSize()},
		{PhysAddr: 0x3000, Length: iova.PageSize()},
	}
	_, err := d.Map(context.Background(), dev, segs, segment.Bidirectional, 0)
	assert.ErrorIs(t, err, iova.ErrSpaceExhausted)
	assert.Zero(t, d.Outstanding())
}
