// Package cuda implements the CUDA memory component: device allocation,
// host/device copies on a private stream, pointer introspection and
// reduction dispatch.
//
// Copies are enqueued asynchronously and the stream is drained before the
// call returns. Copies and reductions through one Component are serialized
// by an internal mutex. A copy cannot be cancelled; a hung stream blocks
// the caller.
package cuda

import (
	"sync"

	"github.com/akolliasAMD/ucc/internal/config"
	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/metrics"
	"go.uber.org/zap"
)

// Name identifies the component in logs and metrics.
const Name = "cuda mc"

var _ mc.Component = (*Component)(nil)

// Component is the CUDA memory component.
type Component struct {
	driver Driver
	cfg    config.CUDAConfig
	logger *zap.Logger

	// lifecycle guards the fields set by Init.
	lifecycle      sync.RWMutex
	initialized    bool
	stream         Stream
	classify       classifier
	runtimeVersion int
	numThreads     int
	numBlocks      config.Units
	maxGridDimX    int

	// streamMu serializes enqueue+drain on stream.
	streamMu sync.Mutex
}

// New creates an uninitialized component over driver.
func New(driver Driver, cfg config.CUDAConfig, logger *zap.Logger) *Component {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Component{
		driver: driver,
		cfg:    cfg,
		logger: logger.Named("mc_cuda"),
	}
}

func (c *Component) Name() string { return Name }

func (c *Component) Type() mc.MemoryType { return mc.MemoryTypeCUDA }

// Init queries the current device, sizes reduction launches and creates
// the component stream. On failure nothing is retained.
func (c *Component) Init() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.initialized {
		return nil
	}

	device, st := c.driver.GetDevice()
	if st != Success {
		return c.initFailure("cudaGetDevice", st)
	}
	threads, st := c.driver.DeviceGetAttribute(DevAttrMaxThreadsPerBlock, device)
	if st != Success {
		return c.initFailure("cudaDeviceGetAttribute(maxThreadsPerBlock)", st)
	}
	maxGrid, st := c.driver.DeviceGetAttribute(DevAttrMaxGridDimX, device)
	if st != Success {
		return c.initFailure("cudaDeviceGetAttribute(maxGridDimX)", st)
	}
	version, st := c.driver.RuntimeGetVersion()
	if st != Success {
		return c.initFailure("cudaRuntimeGetVersion", st)
	}

	blocks := c.cfg.ReduceNumBlocks
	if !blocks.IsAuto() && uint64(blocks) > uint64(maxGrid) {
		c.logger.Warn("number of blocks is too large",
			zap.Stringer("requested", blocks),
			zap.Int("max_supported", maxGrid))
		blocks = config.Units(maxGrid)
	}

	stream, st := c.driver.StreamCreate()
	if st != Success {
		return c.initFailure("cudaStreamCreate", st)
	}

	c.stream = stream
	c.classify = classifierFor(version)
	c.runtimeVersion = version
	c.numThreads = threads
	c.numBlocks = blocks
	c.maxGridDimX = maxGrid
	c.initialized = true

	metrics.MCReduceNumThreads.WithLabelValues(Name).Set(float64(threads))
	metrics.MCReduceNumBlocks.WithLabelValues(Name).Set(float64(blocks))

	c.logger.Info("CUDA memory component initialized",
		zap.Int("device", device),
		zap.Int("runtime_version", version),
		zap.Int("reduce_num_threads", threads),
		zap.Stringer("reduce_num_blocks", blocks))
	return nil
}

func (c *Component) initFailure(call string, st Status) error {
	err := c.nativeFailure("init", "", nil, st)
	c.logger.Error("failed to initialize", append(nativeFields(err), zap.String("call", call))...)
	return err
}

// Finalize destroys the stream. The component is uninitialized afterwards
// even if the destroy call fails.
func (c *Component) Finalize() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if !c.initialized {
		return nil
	}
	c.initialized = false
	c.classify = nil

	if st := c.driver.StreamDestroy(c.stream); st != Success {
		err := c.nativeFailure("finalize", "", mc.ErrOperationFailed, st)
		c.logger.Error("failed to destroy stream", nativeFields(err)...)
		return err
	}
	c.logger.Debug("CUDA memory component finalized")
	return nil
}

// ReduceNumThreads is the threads-per-block used for reductions, known
// after Init.
func (c *Component) ReduceNumThreads() int {
	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	return c.numThreads
}

// ReduceNumBlocks is the effective block count after clamping to the
// device limit. UnitsAuto means the count is derived per launch.
func (c *Component) ReduceNumBlocks() config.Units {
	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	return c.numBlocks
}

// RuntimeVersion is the CUDA runtime version detected at Init.
func (c *Component) RuntimeVersion() int {
	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	return c.runtimeVersion
}

// Initialized reports whether Init has succeeded without a later Finalize.
func (c *Component) Initialized() bool {
	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	return c.initialized
}
