package cuda_test

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/config"
	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/mc/cuda"
	"github.com/akolliasAMD/ucc/internal/mc/cuda/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentinel = unsafe.Pointer(new(byte))

// filled returns an attr whose outputs hold recognisable garbage.
func filled(mask mc.AttrField) mc.MemAttr {
	return mc.MemAttr{
		FieldMask:   mask,
		MemType:     mc.MemoryTypeUnknown,
		BaseAddress: sentinel,
		AllocLength: 0xdead,
	}
}

const allFields = mc.AttrFieldMemType | mc.AttrFieldBaseAddress | mc.AttrFieldAllocLength

func TestComponent_QueryEmptyMask(t *testing.T) {
	c, driver, _ := newReadyComponent(t)
	dev, err := c.Alloc(32)
	require.NoError(t, err)
	defer c.Free(dev)
	host := make([]byte, 4)

	for name, ptr := range map[string]unsafe.Pointer{"nil": nil, "host": bytePtr(host), "device": dev} {
		t.Run(name, func(t *testing.T) {
			calls := driver.TotalCalls()
			attr := filled(0)
			require.NoError(t, c.Query(ptr, 32, &attr))
			assert.Equal(t, filled(0), attr)
			assert.Equal(t, calls, driver.TotalCalls())
		})
	}
}

func TestComponent_QueryNilPointer(t *testing.T) {
	// No Init: the nil pointer never reaches the driver
	c, driver, _ := newComponent(t, config.CUDAConfig{})

	attr := filled(mc.AttrFieldMemType)
	require.NoError(t, c.Query(nil, 0, &attr))
	assert.Equal(t, mc.MemoryTypeHost, attr.MemType)
	assert.Equal(t, sentinel, attr.BaseAddress)
	assert.Equal(t, uint64(0xdead), attr.AllocLength)

	attr = filled(allFields)
	require.NoError(t, c.Query(nil, 0, &attr))
	assert.Equal(t, mc.MemoryTypeHost, attr.MemType)
	assert.Equal(t, sentinel, attr.BaseAddress)

	assert.Equal(t, 0, driver.TotalCalls())
}

func TestComponent_QueryDevicePointer(t *testing.T) {
	c, driver, _ := newReadyComponent(t)
	dev, err := c.Alloc(4096)
	require.NoError(t, err)
	defer c.Free(dev)
	interior := unsafe.Add(dev, 1000)

	t.Run("all fields", func(t *testing.T) {
		attr := filled(allFields)
		require.NoError(t, c.Query(interior, 16, &attr))
		assert.Equal(t, mc.MemoryTypeCUDA, attr.MemType)
		assert.Equal(t, dev, attr.BaseAddress)
		assert.Equal(t, uint64(4096), attr.AllocLength)
	})

	t.Run("mem type only", func(t *testing.T) {
		ranges := driver.Calls(sim.CallMemGetAddressRange)
		attr := filled(mc.AttrFieldMemType)
		require.NoError(t, c.Query(interior, 16, &attr))
		assert.Equal(t, mc.MemoryTypeCUDA, attr.MemType)
		assert.Equal(t, sentinel, attr.BaseAddress)
		assert.Equal(t, uint64(0xdead), attr.AllocLength)
		assert.Equal(t, ranges, driver.Calls(sim.CallMemGetAddressRange))
	})

	t.Run("base address only", func(t *testing.T) {
		lookups := driver.Calls(sim.CallPointerGetAttributes)
		attr := filled(mc.AttrFieldBaseAddress)
		require.NoError(t, c.Query(interior, 16, &attr))
		assert.Equal(t, mc.MemoryTypeUnknown, attr.MemType)
		assert.Equal(t, dev, attr.BaseAddress)
		assert.Equal(t, uint64(0xdead), attr.AllocLength)
		assert.Equal(t, lookups, driver.Calls(sim.CallPointerGetAttributes))
	})

	t.Run("alloc length only", func(t *testing.T) {
		attr := filled(mc.AttrFieldAllocLength)
		require.NoError(t, c.Query(interior, 16, &attr))
		assert.Equal(t, sentinel, attr.BaseAddress)
		assert.Equal(t, uint64(4096), attr.AllocLength)
	})
}

// Every runtime generation must place the same allocations identically.
func TestComponent_QueryAcrossRuntimeVersions(t *testing.T) {
	for _, version := range []int{9020, 10020, 11080, 12020} {
		t.Run(fmt.Sprintf("cudart_%d", version), func(t *testing.T) {
			c, driver, _ := newReadyComponent(t, sim.WithRuntimeVersion(version))

			dev, err := c.Alloc(64)
			require.NoError(t, err)
			defer c.Free(dev)

			managed, st := driver.MallocManaged(64)
			require.Equal(t, cuda.Success, st)
			defer driver.Free(managed)

			pinned, st := driver.HostAlloc(64)
			require.Equal(t, cuda.Success, st)
			defer driver.FreeHost(pinned)

			expected := map[unsafe.Pointer]mc.MemoryType{
				dev:                   mc.MemoryTypeCUDA,
				unsafe.Add(dev, 63):   mc.MemoryTypeCUDA,
				managed:               mc.MemoryTypeCUDAManaged,
				unsafe.Add(pinned, 5): mc.MemoryTypeHost,
			}
			for ptr, want := range expected {
				attr := mc.MemAttr{FieldMask: mc.AttrFieldMemType}
				require.NoError(t, c.Query(ptr, 1, &attr))
				assert.Equal(t, want, attr.MemType)
			}

			// Plain Go memory is unknown to the runtime
			host := make([]byte, 8)
			attr := filled(mc.AttrFieldMemType)
			err = c.Query(bytePtr(host), 8, &attr)
			assert.ErrorIs(t, err, mc.ErrNotSupported)
			assert.Equal(t, mc.MemoryTypeUnknown, attr.MemType)
			assert.Equal(t, cuda.Success, driver.PeekAtLastError())
		})
	}
}

func TestComponent_QueryManagedRange(t *testing.T) {
	c, driver, _ := newReadyComponent(t)
	managed, st := driver.MallocManaged(256)
	require.Equal(t, cuda.Success, st)
	defer driver.Free(managed)

	attr := filled(allFields)
	require.NoError(t, c.Query(unsafe.Add(managed, 128), 1, &attr))
	assert.Equal(t, mc.MemoryTypeCUDAManaged, attr.MemType)
	assert.Equal(t, managed, attr.BaseAddress)
	assert.Equal(t, uint64(256), attr.AllocLength)
}

func TestComponent_QueryFailures(t *testing.T) {
	t.Run("address range of host memory", func(t *testing.T) {
		c, driver, logs := newReadyComponent(t)
		pinned, st := driver.HostAlloc(64)
		require.Equal(t, cuda.Success, st)
		defer driver.FreeHost(pinned)

		attr := filled(allFields)
		err := c.Query(pinned, 64, &attr)
		assert.ErrorIs(t, err, mc.ErrNotSupported)
		// mem type was resolved before the range lookup failed
		assert.Equal(t, mc.MemoryTypeHost, attr.MemType)
		assert.Equal(t, sentinel, attr.BaseAddress)

		entries := logs.FilterMessage("cuMemGetAddressRange failed").All()
		require.Len(t, entries, 1)
		assert.Equal(t, int64(cuda.ErrorNotFound), entries[0].ContextMap()["cuda_error"])
	})

	t.Run("pointer attributes", func(t *testing.T) {
		c, driver, _ := newReadyComponent(t)
		dev, err := c.Alloc(8)
		require.NoError(t, err)
		defer c.Free(dev)

		driver.InjectFault(sim.CallPointerGetAttributes, cuda.ErrorInvalidValue)
		attr := filled(mc.AttrFieldMemType)
		assert.ErrorIs(t, c.Query(dev, 8, &attr), mc.ErrNotSupported)
		assert.Equal(t, mc.MemoryTypeUnknown, attr.MemType)
		assert.Equal(t, cuda.Success, driver.PeekAtLastError())
	})

	t.Run("not initialized", func(t *testing.T) {
		c, driver, _ := newComponent(t, config.CUDAConfig{})
		host := make([]byte, 8)
		attr := filled(mc.AttrFieldMemType)
		assert.ErrorIs(t, c.Query(bytePtr(host), 8, &attr), mc.ErrInvalidParam)
		assert.Equal(t, 0, driver.TotalCalls())
	})
}
