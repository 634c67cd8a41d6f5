package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneIsIndependent(t *testing.T) {
	l := List{
		{PhysAddr: 0x1000, Length: 4096},
		{PhysAddr: 0x9000, Length: 8192},
	}
	c := l.Clone()
	assert.Equal(t, l, c)

	c[0].BusAddr = 0xdead
	assert.Zero(t, l[0].BusAddr)

	assert.Nil(t, List(nil).Clone())
}

func TestPhysStart(t *testing.T) {
	assert.Zero(t, List{}.PhysStart())
	l := List{{PhysAddr: 0x4000, Length: 64}, {PhysAddr: 0x1000, Length: 64}}
	assert.Equal(t, uint64(0x4000), l.PhysStart())
}

func TestTotalLength(t *testing.T) {
	l := List{{Length: 100}, {Length: 28}}
	assert.Equal(t, uint64(128), l.TotalLength())
}

func TestAttrsDeferredUnmap(t *testing.T) {
	assert.False(t, Attrs(0).DeferredUnmap())
	assert.True(t, AttrDeferredUnmap.DeferredUnmap())
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "bidirectional", Bidirectional.String())
	assert.Equal(t, "to-device", ToDevice.String())
	assert.Equal(t, "from-device", FromDevice.String())
	assert.Equal(t, "none", NoDirection.String())
	assert.Equal(t, "direction(9)", Direction(9).String())
}
