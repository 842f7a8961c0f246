//go:build cuda

package cuda

// CUDA runtime bindings via purego. libcudart and libcuda are loaded with
// dlopen on first use, so binaries carry no link-time CUDA dependency.

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

var runtimeLibraries = []string{
	"libcudart.so",
	"libcudart.so.12",
	"libcudart.so.11.0",
	"libcudart.so.10.2",
	"libcudart.so.10.1",
	"libcudart.so.10.0",
	"libcudart.so.9.2",
}

var driverLibraries = []string{"libcuda.so.1", "libcuda.so"}

// cudaPointerAttributes as laid out by each runtime generation.
type (
	pointerAttributesV9 struct {
		memoryType    int32
		device        int32
		devicePointer unsafe.Pointer
		hostPointer   unsafe.Pointer
		isManaged     int32
	}
	pointerAttributesV10 struct {
		memoryType    int32
		typ           int32
		device        int32
		devicePointer unsafe.Pointer
		hostPointer   unsafe.Pointer
		isManaged     int32
	}
	pointerAttributesV11 struct {
		typ           int32
		device        int32
		devicePointer unsafe.Pointer
		hostPointer   unsafe.Pointer
	}
)

const runtimeVersionUnifiedAttributes = 11000

type nativeDriver struct {
	runtimeVersion int

	cudaRuntimeGetVersion    func(version *int32) int32
	cudaGetDevice            func(device *int32) int32
	cudaDeviceGetAttribute   func(value *int32, attr int32, device int32) int32
	cudaStreamCreate         func(stream *uintptr) int32
	cudaStreamDestroy        func(stream uintptr) int32
	cudaStreamSynchronize    func(stream uintptr) int32
	cudaMalloc               func(ptr *unsafe.Pointer, size uint64) int32
	cudaFree                 func(ptr unsafe.Pointer) int32
	cudaMemcpyAsync          func(dst, src unsafe.Pointer, n uint64, kind int32, stream uintptr) int32
	cudaPointerGetAttributes func(attr unsafe.Pointer, ptr unsafe.Pointer) int32
	cudaGetLastError         func() int32
	cudaGetErrorString       func(st int32) string
	cuMemGetAddressRange     func(base *unsafe.Pointer, size *uint64, ptr unsafe.Pointer) int32
}

var (
	nativeOnce sync.Once
	native     *nativeDriver
	nativeErr  error
)

// NewNativeDriver loads the CUDA runtime and driver libraries. The
// libraries are loaded once per process.
func NewNativeDriver() (Driver, error) {
	nativeOnce.Do(func() {
		native, nativeErr = loadNative()
	})
	if nativeErr != nil {
		return nil, nativeErr
	}
	return native, nil
}

func dlopenFirst(names []string) (uintptr, error) {
	var lastErr error
	for _, name := range names {
		lib, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return lib, nil
		}
		lastErr = err
	}
	return 0, errors.Wrapf(lastErr, "cannot load any of %v", names)
}

func loadNative() (*nativeDriver, error) {
	rt, err := dlopenFirst(runtimeLibraries)
	if err != nil {
		return nil, errors.Wrap(err, "cuda runtime")
	}
	drv, err := dlopenFirst(driverLibraries)
	if err != nil {
		return nil, errors.Wrap(err, "cuda driver (is the NVIDIA driver installed?)")
	}

	d := &nativeDriver{}
	purego.RegisterLibFunc(&d.cudaRuntimeGetVersion, rt, "cudaRuntimeGetVersion")
	purego.RegisterLibFunc(&d.cudaGetDevice, rt, "cudaGetDevice")
	purego.RegisterLibFunc(&d.cudaDeviceGetAttribute, rt, "cudaDeviceGetAttribute")
	purego.RegisterLibFunc(&d.cudaStreamCreate, rt, "cudaStreamCreate")
	purego.RegisterLibFunc(&d.cudaStreamDestroy, rt, "cudaStreamDestroy")
	purego.RegisterLibFunc(&d.cudaStreamSynchronize, rt, "cudaStreamSynchronize")
	purego.RegisterLibFunc(&d.cudaMalloc, rt, "cudaMalloc")
	purego.RegisterLibFunc(&d.cudaFree, rt, "cudaFree")
	purego.RegisterLibFunc(&d.cudaMemcpyAsync, rt, "cudaMemcpyAsync")
	purego.RegisterLibFunc(&d.cudaPointerGetAttributes, rt, "cudaPointerGetAttributes")
	purego.RegisterLibFunc(&d.cudaGetLastError, rt, "cudaGetLastError")
	purego.RegisterLibFunc(&d.cudaGetErrorString, rt, "cudaGetErrorString")
	purego.RegisterLibFunc(&d.cuMemGetAddressRange, drv, "cuMemGetAddressRange_v2")

	var version int32
	if st := Status(d.cudaRuntimeGetVersion(&version)); st != Success {
		return nil, errors.Errorf("cudaRuntimeGetVersion: %s", st)
	}
	d.runtimeVersion = int(version)
	return d, nil
}

func (d *nativeDriver) RuntimeGetVersion() (int, Status) {
	var v int32
	st := Status(d.cudaRuntimeGetVersion(&v))
	return int(v), st
}

func (d *nativeDriver) GetDevice() (int, Status) {
	var dev int32
	st := Status(d.cudaGetDevice(&dev))
	return int(dev), st
}

func (d *nativeDriver) DeviceGetAttribute(attr DeviceAttr, device int) (int, Status) {
	var v int32
	st := Status(d.cudaDeviceGetAttribute(&v, int32(attr), int32(device)))
	return int(v), st
}

func (d *nativeDriver) StreamCreate() (Stream, Status) {
	var s uintptr
	st := Status(d.cudaStreamCreate(&s))
	return Stream(s), st
}

func (d *nativeDriver) StreamDestroy(s Stream) Status {
	return Status(d.cudaStreamDestroy(uintptr(s)))
}

func (d *nativeDriver) StreamSynchronize(s Stream) Status {
	return Status(d.cudaStreamSynchronize(uintptr(s)))
}

func (d *nativeDriver) Malloc(size uint64) (unsafe.Pointer, Status) {
	var ptr unsafe.Pointer
	st := Status(d.cudaMalloc(&ptr, size))
	return ptr, st
}

func (d *nativeDriver) Free(ptr unsafe.Pointer) Status {
	return Status(d.cudaFree(ptr))
}

func (d *nativeDriver) MemcpyAsync(dst, src unsafe.Pointer, n uint64, kind MemcpyKind, s Stream) Status {
	return Status(d.cudaMemcpyAsync(dst, src, n, int32(kind), uintptr(s)))
}

func (d *nativeDriver) PointerGetAttributes(ptr unsafe.Pointer) (PointerAttributes, Status) {
	var out PointerAttributes
	switch {
	case d.runtimeVersion >= runtimeVersionUnifiedAttributes:
		var raw pointerAttributesV11
		st := Status(d.cudaPointerGetAttributes(unsafe.Pointer(&raw), ptr))
		if st != Success {
			return out, st
		}
		out.Type = MemoryType(raw.typ)
		out.Device = int(raw.device)
		out.DevicePointer = raw.devicePointer
		out.HostPointer = raw.hostPointer
	case d.runtimeVersion >= runtimeVersionPointerType:
		var raw pointerAttributesV10
		st := Status(d.cudaPointerGetAttributes(unsafe.Pointer(&raw), ptr))
		if st != Success {
			return out, st
		}
		out.Type = MemoryType(raw.typ)
		out.MemoryType = MemoryType(raw.memoryType)
		out.IsManaged = raw.isManaged != 0
		out.Device = int(raw.device)
		out.DevicePointer = raw.devicePointer
		out.HostPointer = raw.hostPointer
	default:
		var raw pointerAttributesV9
		st := Status(d.cudaPointerGetAttributes(unsafe.Pointer(&raw), ptr))
		if st != Success {
			return out, st
		}
		out.MemoryType = MemoryType(raw.memoryType)
		out.IsManaged = raw.isManaged != 0
		out.Device = int(raw.device)
		out.DevicePointer = raw.devicePointer
		out.HostPointer = raw.hostPointer
	}
	return out, Success
}

// MemGetAddressRange returns a CUresult. The codes this package looks at
// share their values with the runtime's.
func (d *nativeDriver) MemGetAddressRange(ptr unsafe.Pointer) (unsafe.Pointer, uint64, Status) {
	var base unsafe.Pointer
	var size uint64
	st := Status(d.cuMemGetAddressRange(&base, &size, ptr))
	return base, size, st
}

func (d *nativeDriver) GetLastError() Status {
	return Status(d.cudaGetLastError())
}

func (d *nativeDriver) GetErrorString(st Status) string {
	return d.cudaGetErrorString(int32(st))
}
