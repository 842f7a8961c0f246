package host

import (
	"testing"
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newReady(t *testing.T) (*Component, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	c := New(zap.New(core))
	require.NoError(t, c.Init())
	t.Cleanup(func() { _ = c.Finalize() })
	return c, logs
}

func TestComponent_Lifecycle(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := New(zap.New(core))

	assert.Equal(t, "cpu mc", c.Name())
	assert.Equal(t, mc.MemoryTypeHost, c.Type())

	require.NoError(t, c.Finalize())
	require.NoError(t, c.Init())
	require.NoError(t, c.Init())
	assert.Equal(t, 1, logs.FilterMessage("initialized").Len())

	ptr, err := c.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, c.Finalize())
	assert.Equal(t, 1, logs.FilterMessage("finalized with live allocations").Len())

	// Memory stays owned across Finalize
	require.NoError(t, c.Free(ptr))
	assert.Equal(t, uint64(0), c.Used())
}

func TestComponent_AllocFree(t *testing.T) {
	c, logs := newReady(t)

	ptrs := make([]unsafe.Pointer, 0, 8)
	for i := 1; i <= 8; i++ {
		ptr, err := c.Alloc(uint64(i * 16))
		require.NoError(t, err)
		require.NotNil(t, ptr)
		ptrs = append(ptrs, ptr)
	}
	assert.Equal(t, uint64(16*36), c.Used())

	for _, ptr := range ptrs {
		require.NoError(t, c.Free(ptr))
	}
	assert.Equal(t, uint64(0), c.Used())

	zero, err := c.Alloc(0)
	require.NoError(t, err)
	assert.Nil(t, zero)
	assert.NoError(t, c.Free(nil))

	err = c.Free(ptrs[0])
	assert.ErrorIs(t, err, mc.ErrOperationFailed)
	foreign := make([]byte, 4)
	assert.ErrorIs(t, c.Free(unsafe.Pointer(&foreign[0])), mc.ErrOperationFailed)
	assert.Equal(t, 2, logs.FilterMessage("failed to free mem").Len())
}

func TestComponent_Memcpy(t *testing.T) {
	c, _ := newReady(t)

	src := []byte("memory component")
	dst := make([]byte, len(src))
	require.NoError(t, c.Memcpy(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), uint64(len(src)), mc.MemoryTypeHost, mc.MemoryTypeHost))
	assert.Equal(t, src, dst)

	require.NoError(t, c.Memcpy(nil, nil, 0, mc.MemoryTypeHost, mc.MemoryTypeHost))
	assert.ErrorIs(t, c.Memcpy(nil, unsafe.Pointer(&src[0]), 1, mc.MemoryTypeHost, mc.MemoryTypeHost), mc.ErrInvalidParam)

	err := c.Memcpy(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 1, mc.MemoryTypeCUDA, mc.MemoryTypeHost)
	assert.ErrorIs(t, err, mc.ErrInvalidParam)
}

func TestComponent_Query(t *testing.T) {
	c, _ := newReady(t)
	ptr, err := c.Alloc(256)
	require.NoError(t, err)
	defer c.Free(ptr)

	attr := mc.MemAttr{FieldMask: mc.AttrFieldMemType | mc.AttrFieldBaseAddress | mc.AttrFieldAllocLength}
	require.NoError(t, c.Query(unsafe.Add(ptr, 200), 8, &attr))
	assert.Equal(t, mc.MemoryTypeHost, attr.MemType)
	assert.Equal(t, ptr, attr.BaseAddress)
	assert.Equal(t, uint64(256), attr.AllocLength)

	foreign := make([]byte, 8)
	attr = mc.MemAttr{FieldMask: mc.AttrFieldMemType, MemType: mc.MemoryTypeUnknown}
	require.NoError(t, c.Query(unsafe.Pointer(&foreign[0]), 8, &attr))
	assert.Equal(t, mc.MemoryTypeHost, attr.MemType)

	attr.FieldMask = mc.AttrFieldBaseAddress
	assert.ErrorIs(t, c.Query(unsafe.Pointer(&foreign[0]), 8, &attr), mc.ErrNotSupported)
	assert.Nil(t, attr.BaseAddress)
}

func TestComponent_Reduce(t *testing.T) {
	c, _ := newReady(t)

	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	out := make([]float64, 3)
	require.NoError(t, c.Reduce(unsafe.Pointer(&a[0]), unsafe.Pointer(&b[0]), unsafe.Pointer(&out[0]), 3, mc.DTFloat64, mc.OpProd))
	assert.Equal(t, []float64{4, 10, 18}, out)

	err := c.Reduce(unsafe.Pointer(&a[0]), unsafe.Pointer(&b[0]), unsafe.Pointer(&out[0]), 3, mc.DTFloat64, mc.OpBxor)
	assert.ErrorIs(t, err, mc.ErrNotSupported)

	uninit := New(nil)
	err = uninit.Reduce(unsafe.Pointer(&a[0]), unsafe.Pointer(&b[0]), unsafe.Pointer(&out[0]), 3, mc.DTFloat64, mc.OpSum)
	assert.ErrorIs(t, err, mc.ErrInvalidParam)
}
