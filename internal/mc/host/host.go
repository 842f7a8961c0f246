// Package host implements the CPU memory component. Buffers live on the Go
// heap and are pinned by the component until freed.
package host

import (
	"sort"
	"sync"
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/akolliasAMD/ucc/internal/metrics"
	"github.com/akolliasAMD/ucc/internal/reduce"
	"go.uber.org/zap"
)

const Name = "cpu mc"

var _ mc.Component = (*Component)(nil)

type block struct {
	base uintptr
	buf  []byte
}

// Component is the host memory component.
type Component struct {
	logger *zap.Logger

	mu          sync.Mutex
	initialized bool
	blocks      []block // sorted by base
	used        uint64
}

func New(logger *zap.Logger) *Component {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Component{logger: logger.Named("mc_cpu")}
}

func (c *Component) Name() string { return Name }

func (c *Component) Type() mc.MemoryType { return mc.MemoryTypeHost }

func (c *Component) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	c.initialized = true
	c.logger.Info("initialized")
	return nil
}

// Finalize keeps outstanding allocations valid but warns about them.
func (c *Component) Finalize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil
	}
	if len(c.blocks) > 0 {
		c.logger.Warn("finalized with live allocations",
			zap.Int("count", len(c.blocks)),
			zap.Uint64("bytes", c.used))
	}
	c.initialized = false
	return nil
}

func (c *Component) Alloc(size uint64) (unsafe.Pointer, error) {
	if size == 0 {
		metrics.MCAllocTotal.WithLabelValues(Name, metrics.StatusOK).Inc()
		return nil, nil
	}
	buf := make([]byte, size)
	ptr := unsafe.Pointer(&buf[0])

	c.mu.Lock()
	i := c.search(uintptr(ptr))
	c.blocks = append(c.blocks, block{})
	copy(c.blocks[i+1:], c.blocks[i:])
	c.blocks[i] = block{base: uintptr(ptr), buf: buf}
	c.used += size
	c.mu.Unlock()

	metrics.MCAllocTotal.WithLabelValues(Name, metrics.StatusOK).Inc()
	metrics.MCAllocBytesTotal.WithLabelValues(Name).Add(float64(size))
	return ptr, nil
}

func (c *Component) Free(ptr unsafe.Pointer) error {
	if ptr == nil {
		metrics.MCFreeTotal.WithLabelValues(Name, metrics.StatusOK).Inc()
		return nil
	}

	c.mu.Lock()
	i := c.search(uintptr(ptr))
	found := i < len(c.blocks) && c.blocks[i].base == uintptr(ptr)
	if found {
		c.used -= uint64(len(c.blocks[i].buf))
		c.blocks = append(c.blocks[:i], c.blocks[i+1:]...)
	}
	c.mu.Unlock()

	var err error
	if !found {
		c.logger.Error("failed to free mem", zap.Uintptr("ptr", uintptr(ptr)))
		metrics.MCErrorsTotal.WithLabelValues(Name, "free", mc.KindName(mc.ErrOperationFailed)).Inc()
		err = &mc.Error{Op: "free", Kind: mc.ErrOperationFailed}
	}
	metrics.MCFreeTotal.WithLabelValues(Name, metrics.Outcome(err)).Inc()
	return err
}

// Memcpy copies between host buffers only.
func (c *Component) Memcpy(dst, src unsafe.Pointer, n uint64, dstType, srcType mc.MemoryType) error {
	if dstType != mc.MemoryTypeHost || srcType != mc.MemoryTypeHost {
		metrics.MCErrorsTotal.WithLabelValues(Name, "memcpy", mc.KindName(mc.ErrInvalidParam)).Inc()
		return &mc.Error{Op: "memcpy " + srcType.String() + " to " + dstType.String(), Kind: mc.ErrInvalidParam}
	}
	if err := c.ready("memcpy"); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if dst == nil || src == nil {
		return &mc.Error{Op: "memcpy", Kind: mc.ErrInvalidParam}
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))

	metrics.MCMemcpyTotal.WithLabelValues(Name, "host_to_host").Inc()
	metrics.MCMemcpyBytesTotal.WithLabelValues(Name, "host_to_host").Add(float64(n))
	return nil
}

// Query reports every pointer as host memory. Base address and length are
// known only for buffers this component allocated.
func (c *Component) Query(ptr unsafe.Pointer, length uint64, attr *mc.MemAttr) error {
	if attr.Wants(mc.AttrFieldMemType) {
		attr.MemType = mc.MemoryTypeHost
	}
	if !attr.Wants(mc.AttrFieldBaseAddress | mc.AttrFieldAllocLength) {
		return nil
	}

	c.mu.Lock()
	b, ok := c.owner(uintptr(ptr))
	c.mu.Unlock()
	if !ok {
		return &mc.Error{Op: "query", Kind: mc.ErrNotSupported}
	}
	if attr.Wants(mc.AttrFieldBaseAddress) {
		attr.BaseAddress = unsafe.Pointer(&b.buf[0])
	}
	if attr.Wants(mc.AttrFieldAllocLength) {
		attr.AllocLength = uint64(len(b.buf))
	}
	return nil
}

func (c *Component) Reduce(src1, src2, dst unsafe.Pointer, count uint64, dt mc.DataType, op mc.ReduceOp) error {
	if err := mc.ValidateReduce(dt, op); err != nil {
		return err
	}
	if err := c.ready("reduce"); err != nil {
		return err
	}
	if err := reduce.Apply(dst, src1, src2, count, dt, op); err != nil {
		c.logger.Error("reduction failed", zap.Error(err),
			zap.Stringer("dtype", dt), zap.Stringer("op", op))
		return err
	}
	metrics.MCReduceTotal.WithLabelValues(Name, op.String()).Inc()
	return nil
}

// Used is the number of bytes currently allocated.
func (c *Component) Used() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *Component) ready(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return &mc.Error{Op: op + ": component not initialized", Kind: mc.ErrInvalidParam}
	}
	return nil
}

// search returns the index of the first block at or above addr. Caller holds mu.
func (c *Component) search(addr uintptr) int {
	return sort.Search(len(c.blocks), func(i int) bool { return c.blocks[i].base >= addr })
}

// owner finds the block containing addr. Caller holds mu.
func (c *Component) owner(addr uintptr) (block, bool) {
	i := sort.Search(len(c.blocks), func(i int) bool { return c.blocks[i].base > addr })
	if i == 0 {
		return block{}, false
	}
	b := c.blocks[i-1]
	if addr >= b.base+uintptr(len(b.buf)) {
		return block{}, false
	}
	return b, true
}
