package cuda

import (
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/metrics"
	"go.uber.org/zap"
)

// Alloc returns size bytes of device memory.
func (c *Component) Alloc(size uint64) (unsafe.Pointer, error) {
	ptr, st := c.driver.Malloc(size)
	if st != Success {
		err := c.nativeFailure("alloc", "", mc.ErrNoMemory, st)
		c.logger.Error("failed to allocate",
			append(nativeFields(err), zap.Uint64("size", size))...)
		metrics.MCAllocTotal.WithLabelValues(Name, metrics.StatusError).Inc()
		return nil, err
	}
	metrics.MCAllocTotal.WithLabelValues(Name, metrics.StatusOK).Inc()
	metrics.MCAllocBytesTotal.WithLabelValues(Name).Add(float64(size))
	return ptr, nil
}

// Free releases memory obtained from Alloc. A pointer the runtime does not
// own is reported as mc.ErrOperationFailed.
func (c *Component) Free(ptr unsafe.Pointer) error {
	if st := c.driver.Free(ptr); st != Success {
		err := c.nativeFailure("free", "", mc.ErrOperationFailed, st)
		c.logger.Error("failed to free mem",
			append(nativeFields(err), zap.Uintptr("ptr", uintptr(ptr)))...)
		metrics.MCFreeTotal.WithLabelValues(Name, metrics.StatusError).Inc()
		return err
	}
	metrics.MCFreeTotal.WithLabelValues(Name, metrics.StatusOK).Inc()
	return nil
}
