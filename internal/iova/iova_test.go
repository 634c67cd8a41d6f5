package iova

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocAlignment(t *testing.T) {
	a := New(0, 1<<20)
	addr, err := a.Alloc(1)
	assert.NoError(t, err)
	assert.Zero(t, addr%PageSize())

	addr2, err := a.Alloc(PageSize() + 1)
	assert.NoError(t, err)
	assert.NotEqual(t, addr, addr2)
	assert.Zero(t, addr2%PageSize())
}

func TestFreeAndReuse(t *testing.T) {
	a := New(0x1000, 1<<20)
	addr, err := a.Alloc(4096)
	assert.NoError(t, err)
	assert.NoError(t, a.Free(addr))

	again, err := a.Alloc(4096)
	assert.NoError(t, err)
	assert.Equal(t, addr, again)
	assert.Equal(t, 1, a.Outstanding())
}

func TestFreeUnknownAddress(t *testing.T) {
	a := New(0, 1<<20)
	assert.Error(t, a.Free(0xdead0000))
}

func TestExhaustion(t *testing.T) {
	a := New(0, 2*PageSize())
	_, err := a.Alloc(PageSize())
	assert.NoError(t, err)
	_, err = a.Alloc(PageSize())
	assert.NoError(t, err)
	_, err = a.Alloc(1)
	assert.ErrorIs(t, err, ErrSpaceExhausted)
}
