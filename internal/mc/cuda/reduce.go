package cuda

import (
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/metrics"
	"go.uber.org/zap"
)

// Reduce computes dst = src1 op src2 over count device-resident elements
// and returns once the kernel has completed. Drivers without kernels
// yield mc.ErrNotSupported.
func (c *Component) Reduce(src1, src2, dst unsafe.Pointer, count uint64, dt mc.DataType, op mc.ReduceOp) error {
	if err := mc.ValidateReduce(dt, op); err != nil {
		return err
	}
	reducer, ok := c.driver.(Reducer)
	if !ok {
		return &mc.Error{Op: "reduce", Kind: mc.ErrNotSupported}
	}

	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	if !c.initialized {
		return errNotInitialized("reduce")
	}
	if count == 0 {
		return nil
	}

	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	grid := c.launchGrid(count)
	if st := reducer.LaunchReduce(src1, src2, dst, count, dt, op, grid, c.stream); st != Success {
		err := c.nativeFailure("reduce", mc.PhaseLaunch, mc.ErrOperationFailed, st)
		c.logger.Error("failed to launch reduction",
			append(nativeFields(err),
				zap.Stringer("dtype", dt),
				zap.Stringer("op", op),
				zap.Uint64("count", count),
				zap.Int("blocks", grid.Blocks),
				zap.Int("threads", grid.Threads))...)
		return err
	}
	if st := c.driver.StreamSynchronize(c.stream); st != Success {
		err := c.nativeFailure("reduce", mc.PhaseSync, mc.ErrOperationFailed, st)
		c.logger.Error("failed to synchronize stream", nativeFields(err)...)
		return err
	}

	metrics.MCReduceTotal.WithLabelValues(Name, op.String()).Inc()
	return nil
}

// launchGrid sizes a launch for count elements. Caller holds lifecycle.
func (c *Component) launchGrid(count uint64) LaunchGrid {
	grid := LaunchGrid{Threads: c.numThreads}
	if !c.numBlocks.IsAuto() {
		grid.Blocks = int(c.numBlocks)
		return grid
	}
	threads := uint64(c.numThreads)
	blocks := (count + threads - 1) / threads
	if blocks > uint64(c.maxGridDimX) {
		blocks = uint64(c.maxGridDimX)
	}
	grid.Blocks = int(blocks)
	return grid
}
