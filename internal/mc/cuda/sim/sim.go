// Package sim is an in-process CUDA runtime for machines without a GPU.
//
// Device memory is ordinary Go heap memory tracked as allocations, so
// device pointers are dereferenceable by the host. The simulator still
// enforces what a real runtime would reject: copies whose device side is
// not inside a device allocation, frees of foreign pointers, launches on
// destroyed streams and out-of-range launch grids. Work queued on a stream
// runs on a worker goroutine, and errors raised there surface at
// synchronize time.
package sim

import (
	"sort"
	"sync"
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc/cuda"
)

// Native entry points, used as keys for Calls and InjectFault.
const (
	CallRuntimeGetVersion    = "cudaRuntimeGetVersion"
	CallGetDevice            = "cudaGetDevice"
	CallDeviceGetAttribute   = "cudaDeviceGetAttribute"
	CallStreamCreate         = "cudaStreamCreate"
	CallStreamDestroy        = "cudaStreamDestroy"
	CallStreamSynchronize    = "cudaStreamSynchronize"
	CallMalloc               = "cudaMalloc"
	CallMallocManaged        = "cudaMallocManaged"
	CallHostAlloc            = "cudaHostAlloc"
	CallFree                 = "cudaFree"
	CallFreeHost             = "cudaFreeHost"
	CallMemcpyAsync          = "cudaMemcpyAsync"
	CallPointerGetAttributes = "cudaPointerGetAttributes"
	CallMemGetAddressRange   = "cuMemGetAddressRange"
	CallGetLastError         = "cudaGetLastError"
	CallLaunchReduce         = "reduceKernel"
)

// Runtime versions that change cudaPointerAttributes.
const (
	versionPointerType  = 10000
	versionUnregistered = 11000
)

type allocKind int

const (
	allocDevice allocKind = iota
	allocManaged
	allocHost
)

type allocation struct {
	base uintptr
	buf  []byte
	kind allocKind
}

func (a *allocation) contains(addr uintptr, n uint64) bool {
	end := a.base + uintptr(len(a.buf))
	return addr >= a.base && addr < end && uint64(end-addr) >= n
}

func (a *allocation) deviceAccessible() bool {
	return a.kind == allocDevice || a.kind == allocManaged
}

// Option configures a Driver.
type Option func(*Driver)

// WithRuntimeVersion sets the version reported by cudaRuntimeGetVersion,
// which also selects the cudaPointerAttributes layout.
func WithRuntimeVersion(version int) Option {
	return func(d *Driver) { d.version = version }
}

// WithDeviceLimits sets maxThreadsPerBlock and maxGridSize[0].
func WithDeviceLimits(maxThreadsPerBlock, maxGridDimX int) Option {
	return func(d *Driver) {
		d.maxThreads = maxThreadsPerBlock
		d.maxGridX = maxGridDimX
	}
}

// WithMemoryLimit caps device plus managed memory. Zero means unlimited.
func WithMemoryLimit(bytes uint64) Option {
	return func(d *Driver) { d.memLimit = bytes }
}

// WithNoDevice makes cudaGetDevice fail as on a host without GPUs.
func WithNoDevice() Option {
	return func(d *Driver) { d.noDevice = true }
}

// Driver implements cuda.Driver and cuda.Reducer.
type Driver struct {
	mu sync.Mutex

	version    int
	maxThreads int
	maxGridX   int
	memLimit   uint64
	memUsed    uint64
	noDevice   bool

	allocs     []*allocation
	streams    map[cuda.Stream]*stream
	nextStream cuda.Stream
	lastError  cuda.Status
	lastLaunch cuda.LaunchGrid

	calls  map[string]int
	faults map[string]cuda.Status
}

var (
	_ cuda.Driver  = (*Driver)(nil)
	_ cuda.Reducer = (*Driver)(nil)
)

// New returns a simulated single-device runtime. The default device
// reports 1024 threads per block and a 2^31-1 grid, runtime 12020.
func New(opts ...Option) *Driver {
	d := &Driver{
		version:    12020,
		maxThreads: 1024,
		maxGridX:   2147483647,
		streams:    make(map[cuda.Stream]*stream),
		nextStream: 1,
		calls:      make(map[string]int),
		faults:     make(map[string]cuda.Status),
	}
	for _, opt := range opts {
		opt(d)
	}
	// Stream 0 is the legacy default stream.
	d.streams[0] = newStream()
	return d
}

// Close stops every stream worker.
func (d *Driver) Close() {
	d.mu.Lock()
	streams := d.streams
	d.streams = make(map[cuda.Stream]*stream)
	for _, s := range streams {
		close(s.ops)
	}
	d.mu.Unlock()

	for _, s := range streams {
		<-s.done
	}
}

// InjectFault makes the next call to the named entry point return st.
func (d *Driver) InjectFault(call string, st cuda.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[call] = st
}

// Calls returns how many times the named entry point was invoked.
func (d *Driver) Calls(call string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[call]
}

// TotalCalls returns the number of native calls of any kind.
func (d *Driver) TotalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, n := range d.calls {
		total += n
	}
	return total
}

// PeekAtLastError returns the sticky error without resetting it.
func (d *Driver) PeekAtLastError() cuda.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastError
}

// MemUsed is the number of device and managed bytes currently allocated.
func (d *Driver) MemUsed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memUsed
}

// Streams is the number of live streams, excluding the default stream.
func (d *Driver) Streams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for s := range d.streams {
		if s != 0 {
			n++
		}
	}
	return n
}

// LastLaunch is the grid of the most recent reduction launch.
func (d *Driver) LastLaunch() cuda.LaunchGrid {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastLaunch
}

// enter records a call and returns an injected fault, if any. Caller holds mu.
func (d *Driver) enter(call string) (cuda.Status, bool) {
	d.calls[call]++
	if st, ok := d.faults[call]; ok {
		delete(d.faults, call)
		return d.fail(st), true
	}
	return cuda.Success, false
}

// fail sets the sticky error. Caller holds mu.
func (d *Driver) fail(st cuda.Status) cuda.Status {
	d.lastError = st
	return st
}

func (d *Driver) RuntimeGetVersion() (int, cuda.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, faulted := d.enter(CallRuntimeGetVersion); faulted {
		return 0, st
	}
	return d.version, cuda.Success
}

func (d *Driver) GetDevice() (int, cuda.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, faulted := d.enter(CallGetDevice); faulted {
		return 0, st
	}
	if d.noDevice {
		return 0, d.fail(cuda.ErrorNoDevice)
	}
	return 0, cuda.Success
}

func (d *Driver) DeviceGetAttribute(attr cuda.DeviceAttr, device int) (int, cuda.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, faulted := d.enter(CallDeviceGetAttribute); faulted {
		return 0, st
	}
	if device != 0 || d.noDevice {
		return 0, d.fail(cuda.ErrorInvalidDevice)
	}
	switch attr {
	case cuda.DevAttrMaxThreadsPerBlock:
		return d.maxThreads, cuda.Success
	case cuda.DevAttrMaxGridDimX:
		return d.maxGridX, cuda.Success
	}
	return 0, d.fail(cuda.ErrorInvalidValue)
}

func (d *Driver) GetLastError() cuda.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[CallGetLastError]++
	st := d.lastError
	d.lastError = cuda.Success
	return st
}

func (d *Driver) GetErrorString(st cuda.Status) string {
	return st.String()
}

// find returns the allocation containing addr, or nil. Caller holds mu.
func (d *Driver) find(addr uintptr) *allocation {
	i := sort.Search(len(d.allocs), func(i int) bool { return d.allocs[i].base > addr })
	if i == 0 {
		return nil
	}
	a := d.allocs[i-1]
	if !a.contains(addr, 1) {
		return nil
	}
	return a
}

// insert keeps allocs sorted by base. Caller holds mu.
func (d *Driver) insert(a *allocation) {
	i := sort.Search(len(d.allocs), func(i int) bool { return d.allocs[i].base > a.base })
	d.allocs = append(d.allocs, nil)
	copy(d.allocs[i+1:], d.allocs[i:])
	d.allocs[i] = a
}

// remove drops the allocation starting exactly at addr. Caller holds mu.
func (d *Driver) remove(addr uintptr, kinds ...allocKind) bool {
	i := sort.Search(len(d.allocs), func(i int) bool { return d.allocs[i].base >= addr })
	if i == len(d.allocs) || d.allocs[i].base != addr {
		return false
	}
	a := d.allocs[i]
	for _, k := range kinds {
		if a.kind != k {
			continue
		}
		d.allocs = append(d.allocs[:i], d.allocs[i+1:]...)
		if a.deviceAccessible() {
			d.memUsed -= uint64(len(a.buf))
		}
		return true
	}
	return false
}

func (d *Driver) alloc(call string, size uint64, kind allocKind) (unsafe.Pointer, cuda.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, faulted := d.enter(call); faulted {
		return nil, st
	}
	if size == 0 {
		return nil, cuda.Success
	}
	counted := kind != allocHost
	if counted && d.memLimit > 0 && (size > d.memLimit || d.memUsed > d.memLimit-size) {
		return nil, d.fail(cuda.ErrorMemoryAllocation)
	}
	buf := make([]byte, size)
	ptr := unsafe.Pointer(&buf[0])
	d.insert(&allocation{base: uintptr(ptr), buf: buf, kind: kind})
	if counted {
		d.memUsed += size
	}
	return ptr, cuda.Success
}

func (d *Driver) Malloc(size uint64) (unsafe.Pointer, cuda.Status) {
	return d.alloc(CallMalloc, size, allocDevice)
}

// MallocManaged allocates unified memory.
func (d *Driver) MallocManaged(size uint64) (unsafe.Pointer, cuda.Status) {
	return d.alloc(CallMallocManaged, size, allocManaged)
}

// HostAlloc allocates page-locked host memory known to the runtime.
func (d *Driver) HostAlloc(size uint64) (unsafe.Pointer, cuda.Status) {
	return d.alloc(CallHostAlloc, size, allocHost)
}

func (d *Driver) Free(ptr unsafe.Pointer) cuda.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, faulted := d.enter(CallFree); faulted {
		return st
	}
	if ptr == nil {
		return cuda.Success
	}
	if !d.remove(uintptr(ptr), allocDevice, allocManaged) {
		return d.fail(cuda.ErrorInvalidValue)
	}
	return cuda.Success
}

// FreeHost releases memory obtained from HostAlloc.
func (d *Driver) FreeHost(ptr unsafe.Pointer) cuda.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, faulted := d.enter(CallFreeHost); faulted {
		return st
	}
	if ptr == nil {
		return cuda.Success
	}
	if !d.remove(uintptr(ptr), allocHost) {
		return d.fail(cuda.ErrorInvalidValue)
	}
	return cuda.Success
}

// deviceRange reports whether [ptr, ptr+n) lies in one device-accessible
// allocation. Caller holds mu.
func (d *Driver) deviceRange(ptr unsafe.Pointer, n uint64) bool {
	a := d.find(uintptr(ptr))
	return a != nil && a.deviceAccessible() && a.contains(uintptr(ptr), n)
}

// hostRange reports whether ptr may be used as host memory: anything but
// explicit device memory. Caller holds mu.
func (d *Driver) hostRange(ptr unsafe.Pointer) bool {
	if ptr == nil {
		return false
	}
	a := d.find(uintptr(ptr))
	return a == nil || a.kind != allocDevice
}

func (d *Driver) checkCopy(dst, src unsafe.Pointer, n uint64, kind cuda.MemcpyKind) bool {
	if n == 0 {
		return true
	}
	switch kind {
	case cuda.MemcpyHostToDevice:
		return d.deviceRange(dst, n) && d.hostRange(src)
	case cuda.MemcpyDeviceToHost:
		return d.hostRange(dst) && d.deviceRange(src, n)
	case cuda.MemcpyDeviceToDevice:
		return d.deviceRange(dst, n) && d.deviceRange(src, n)
	case cuda.MemcpyHostToHost:
		return d.hostRange(dst) && d.hostRange(src)
	case cuda.MemcpyDefault:
		return dst != nil && src != nil
	}
	return false
}

func (d *Driver) MemcpyAsync(dst, src unsafe.Pointer, n uint64, kind cuda.MemcpyKind, s cuda.Stream) cuda.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, faulted := d.enter(CallMemcpyAsync); faulted {
		return st
	}
	str, ok := d.streams[s]
	if !ok {
		return d.fail(cuda.ErrorInvalidResourceHandle)
	}
	if !d.checkCopy(dst, src, n, kind) {
		return d.fail(cuda.ErrorInvalidValue)
	}
	if n == 0 {
		return cuda.Success
	}
	str.ops <- func() cuda.Status {
		copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
		return cuda.Success
	}
	return cuda.Success
}

func (d *Driver) PointerGetAttributes(ptr unsafe.Pointer) (cuda.PointerAttributes, cuda.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var attr cuda.PointerAttributes
	if st, faulted := d.enter(CallPointerGetAttributes); faulted {
		return attr, st
	}

	a := d.find(uintptr(ptr))
	if a == nil {
		if d.version >= versionUnregistered && ptr != nil {
			attr.Type = cuda.MemoryTypeUnregistered
			return attr, cuda.Success
		}
		return attr, d.fail(cuda.ErrorInvalidValue)
	}

	var native cuda.MemoryType
	switch a.kind {
	case allocDevice:
		native = cuda.MemoryTypeDevice
		attr.DevicePointer = ptr
	case allocManaged:
		native = cuda.MemoryTypeManaged
		attr.DevicePointer = ptr
		attr.HostPointer = ptr
	case allocHost:
		native = cuda.MemoryTypeHost
		attr.DevicePointer = ptr
		attr.HostPointer = ptr
	}

	if d.version >= versionPointerType {
		attr.Type = native
	}
	if d.version < versionUnregistered {
		// The legacy field reports managed memory as device memory.
		attr.MemoryType = native
		if native == cuda.MemoryTypeManaged {
			attr.MemoryType = cuda.MemoryTypeDevice
		}
		attr.IsManaged = a.kind == allocManaged
	}
	return attr, cuda.Success
}

// MemGetAddressRange is a driver API call and leaves the runtime's sticky
// error alone.
func (d *Driver) MemGetAddressRange(ptr unsafe.Pointer) (unsafe.Pointer, uint64, cuda.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[CallMemGetAddressRange]++
	if st, ok := d.faults[CallMemGetAddressRange]; ok {
		delete(d.faults, CallMemGetAddressRange)
		return nil, 0, st
	}
	a := d.find(uintptr(ptr))
	if a == nil || !a.deviceAccessible() {
		return nil, 0, cuda.ErrorNotFound
	}
	return unsafe.Pointer(&a.buf[0]), uint64(len(a.buf)), cuda.Success
}
