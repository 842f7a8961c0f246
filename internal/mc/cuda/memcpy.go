package cuda

import (
	"fmt"
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/metrics"
	"go.uber.org/zap"
)

// Memcpy copies n bytes from src to dst and returns once they have landed.
// One of dstType and srcType must be mc.MemoryTypeCUDA; anything else is a
// caller bug and panics.
func (c *Component) Memcpy(dst, src unsafe.Pointer, n uint64, dstType, srcType mc.MemoryType) error {
	if dstType != mc.MemoryTypeCUDA && srcType != mc.MemoryTypeCUDA {
		panic(fmt.Sprintf("%s: memcpy from %s to %s has no cuda side", Name, srcType, dstType))
	}

	kind, err := ResolveMemcpyKind(dstType, srcType)
	if err != nil {
		c.logger.Error("failed to derive memcpy kind",
			zap.Stringer("dst_mem_type", dstType),
			zap.Stringer("src_mem_type", srcType))
		metrics.MCErrorsTotal.WithLabelValues(Name, "memcpy", mc.KindName(err)).Inc()
		return err
	}

	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	if !c.initialized {
		return errNotInitialized("memcpy")
	}

	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if st := c.driver.MemcpyAsync(dst, src, n, kind, c.stream); st != Success {
		err := c.nativeFailure("memcpy", mc.PhaseLaunch, mc.ErrOperationFailed, st)
		c.logger.Error("failed to launch memcpy",
			append(nativeFields(err),
				zap.Uintptr("dst", uintptr(dst)),
				zap.Uintptr("src", uintptr(src)),
				zap.Uint64("len", n))...)
		return err
	}
	if st := c.driver.StreamSynchronize(c.stream); st != Success {
		err := c.nativeFailure("memcpy", mc.PhaseSync, mc.ErrOperationFailed, st)
		c.logger.Error("failed to synchronize stream", nativeFields(err)...)
		return err
	}

	metrics.MCMemcpyTotal.WithLabelValues(Name, kind.String()).Inc()
	metrics.MCMemcpyBytesTotal.WithLabelValues(Name, kind.String()).Add(float64(n))
	return nil
}
