package cuda

import (
	"fmt"
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
)

// Status is a CUDA runtime (cudaError_t) or driver (CUresult) status code.
type Status int32

// Status codes the component reasons about. Runtime and driver API codes
// share this space; the values are the ones the CUDA headers use.
const (
	Success                    Status = 0
	ErrorInvalidValue          Status = 1
	ErrorMemoryAllocation      Status = 2
	ErrorInitializationError   Status = 3
	ErrorInvalidConfiguration  Status = 9
	ErrorInsufficientDriver    Status = 35
	ErrorNoDevice              Status = 100
	ErrorInvalidDevice         Status = 101
	ErrorInvalidResourceHandle Status = 400
	ErrorNotFound              Status = 500
	ErrorNotReady              Status = 600
	ErrorIllegalAddress        Status = 700
	ErrorLaunchFailure         Status = 719
	ErrorNotSupported          Status = 801
	ErrorUnknown               Status = 999
)

var statusNames = map[Status]string{
	Success:                    "cudaSuccess",
	ErrorInvalidValue:          "cudaErrorInvalidValue",
	ErrorMemoryAllocation:      "cudaErrorMemoryAllocation",
	ErrorInitializationError:   "cudaErrorInitializationError",
	ErrorInvalidConfiguration:  "cudaErrorInvalidConfiguration",
	ErrorInsufficientDriver:    "cudaErrorInsufficientDriver",
	ErrorNoDevice:              "cudaErrorNoDevice",
	ErrorInvalidDevice:         "cudaErrorInvalidDevice",
	ErrorInvalidResourceHandle: "cudaErrorInvalidResourceHandle",
	ErrorNotFound:              "cudaErrorNotFound",
	ErrorNotReady:              "cudaErrorNotReady",
	ErrorIllegalAddress:        "cudaErrorIllegalAddress",
	ErrorLaunchFailure:         "cudaErrorLaunchFailure",
	ErrorNotSupported:          "cudaErrorNotSupported",
	ErrorUnknown:               "cudaErrorUnknown",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("cudaError(%d)", int32(s))
}

// MemcpyKind is the transfer direction handed to cudaMemcpyAsync.
type MemcpyKind int32

const (
	MemcpyHostToHost     MemcpyKind = 0
	MemcpyHostToDevice   MemcpyKind = 1
	MemcpyDeviceToHost   MemcpyKind = 2
	MemcpyDeviceToDevice MemcpyKind = 3
	MemcpyDefault        MemcpyKind = 4
)

func (k MemcpyKind) String() string {
	switch k {
	case MemcpyHostToHost:
		return "host_to_host"
	case MemcpyHostToDevice:
		return "host_to_device"
	case MemcpyDeviceToHost:
		return "device_to_host"
	case MemcpyDeviceToDevice:
		return "device_to_device"
	case MemcpyDefault:
		return "default"
	}
	return fmt.Sprintf("memcpy_kind(%d)", int32(k))
}

// MemoryType is the native cudaMemoryType enumeration.
type MemoryType int32

const (
	MemoryTypeUnregistered MemoryType = 0
	MemoryTypeHost         MemoryType = 1
	MemoryTypeDevice       MemoryType = 2
	MemoryTypeManaged      MemoryType = 3
)

// DeviceAttr is a cudaDeviceAttr value.
type DeviceAttr int32

const (
	DevAttrMaxThreadsPerBlock DeviceAttr = 1
	DevAttrMaxGridDimX        DeviceAttr = 5
)

// PointerAttributes is the decoded cudaPointerAttributes. Runtimes from
// 10000 on fill Type; older runtimes fill MemoryType and IsManaged only.
type PointerAttributes struct {
	Type          MemoryType
	MemoryType    MemoryType
	IsManaged     bool
	Device        int
	DevicePointer unsafe.Pointer
	HostPointer   unsafe.Pointer
}

// Stream is an opaque cudaStream_t handle.
type Stream uintptr

// Driver is the subset of the CUDA runtime and driver APIs the component
// needs. Every call returns the native status; the component is the only
// place those statuses get interpreted.
type Driver interface {
	RuntimeGetVersion() (int, Status)
	GetDevice() (int, Status)
	DeviceGetAttribute(attr DeviceAttr, device int) (int, Status)

	StreamCreate() (Stream, Status)
	StreamDestroy(s Stream) Status
	StreamSynchronize(s Stream) Status

	Malloc(size uint64) (unsafe.Pointer, Status)
	Free(ptr unsafe.Pointer) Status
	MemcpyAsync(dst, src unsafe.Pointer, n uint64, kind MemcpyKind, s Stream) Status

	PointerGetAttributes(ptr unsafe.Pointer) (PointerAttributes, Status)
	MemGetAddressRange(ptr unsafe.Pointer) (unsafe.Pointer, uint64, Status)

	// GetLastError returns and resets the sticky last error.
	GetLastError() Status
	GetErrorString(s Status) string
}

// LaunchGrid is the shape of a reduction kernel launch.
type LaunchGrid struct {
	Blocks  int
	Threads int
}

// Reducer is implemented by drivers that can launch reduction kernels.
type Reducer interface {
	LaunchReduce(src1, src2, dst unsafe.Pointer, count uint64, dt mc.DataType, op mc.ReduceOp, grid LaunchGrid, s Stream) Status
}
