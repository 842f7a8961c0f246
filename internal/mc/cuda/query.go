package cuda

import (
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/metrics"
	"go.uber.org/zap"
)

const queryFields = mc.AttrFieldMemType | mc.AttrFieldBaseAddress | mc.AttrFieldAllocLength

// Query fills the requested fields of attr for ptr. A nil pointer is host
// memory. Pointers the runtime cannot place yield mc.ErrNotSupported.
func (c *Component) Query(ptr unsafe.Pointer, length uint64, attr *mc.MemAttr) error {
	if !attr.Wants(queryFields) {
		return nil
	}

	if ptr == nil {
		if attr.Wants(mc.AttrFieldMemType) {
			attr.MemType = mc.MemoryTypeHost
		}
		return nil
	}

	if attr.Wants(mc.AttrFieldMemType) {
		mt, err := c.queryMemType(ptr)
		if err != nil {
			return err
		}
		attr.MemType = mt
	}

	if attr.Wants(mc.AttrFieldBaseAddress | mc.AttrFieldAllocLength) {
		base, size, st := c.driver.MemGetAddressRange(ptr)
		if st != Success {
			err := c.nativeFailure("query", "", mc.ErrNotSupported, st)
			c.logger.Error("cuMemGetAddressRange failed",
				append(nativeFields(err), zap.Uintptr("ptr", uintptr(ptr)))...)
			return err
		}
		if attr.Wants(mc.AttrFieldBaseAddress) {
			attr.BaseAddress = base
		}
		if attr.Wants(mc.AttrFieldAllocLength) {
			attr.AllocLength = size
		}
	}
	return nil
}

func (c *Component) queryMemType(ptr unsafe.Pointer) (mc.MemoryType, error) {
	c.lifecycle.RLock()
	classify := c.classify
	c.lifecycle.RUnlock()
	if classify == nil {
		return mc.MemoryTypeUnknown, errNotInitialized("query")
	}

	pa, st := c.driver.PointerGetAttributes(ptr)
	if st != Success {
		err := c.nativeFailure("query", "", mc.ErrNotSupported, st)
		c.logger.Debug("pointer not recognized",
			append(nativeFields(err), zap.Uintptr("ptr", uintptr(ptr)))...)
		return mc.MemoryTypeUnknown, err
	}

	mt, ok := classify(pa)
	if !ok {
		metrics.MCErrorsTotal.WithLabelValues(Name, "query", mc.KindName(mc.ErrNotSupported)).Inc()
		c.logger.Debug("unsupported pointer memory type",
			zap.Uintptr("ptr", uintptr(ptr)),
			zap.Int32("type", int32(pa.Type)),
			zap.Int32("memory_type", int32(pa.MemoryType)))
		return mc.MemoryTypeUnknown, &mc.Error{Op: "query", Kind: mc.ErrNotSupported}
	}
	return mt, nil
}
