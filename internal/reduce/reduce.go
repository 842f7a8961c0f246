// Package reduce implements element-wise reductions over raw host buffers.
package reduce

import (
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/x448/float16"
	"gonum.org/v1/gonum/floats"
)

type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

type float interface {
	~float32 | ~float64
}

// Apply computes dst[i] = a[i] op b[i] for count elements of type dt.
// dst may alias a or b. The buffers must be host addressable.
func Apply(dst, a, b unsafe.Pointer, count uint64, dt mc.DataType, op mc.ReduceOp) error {
	if err := mc.ValidateReduce(dt, op); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if dst == nil || a == nil || b == nil {
		return &mc.Error{Op: "reduce", Kind: mc.ErrInvalidParam}
	}

	n := int(count)
	switch dt {
	case mc.DTInt8:
		applyInt(view[int8](dst, n), view[int8](a, n), view[int8](b, n), op)
	case mc.DTInt16:
		applyInt(view[int16](dst, n), view[int16](a, n), view[int16](b, n), op)
	case mc.DTInt32:
		applyInt(view[int32](dst, n), view[int32](a, n), view[int32](b, n), op)
	case mc.DTInt64:
		applyInt(view[int64](dst, n), view[int64](a, n), view[int64](b, n), op)
	case mc.DTUint8:
		applyInt(view[uint8](dst, n), view[uint8](a, n), view[uint8](b, n), op)
	case mc.DTUint16:
		applyInt(view[uint16](dst, n), view[uint16](a, n), view[uint16](b, n), op)
	case mc.DTUint32:
		applyInt(view[uint32](dst, n), view[uint32](a, n), view[uint32](b, n), op)
	case mc.DTUint64:
		applyInt(view[uint64](dst, n), view[uint64](a, n), view[uint64](b, n), op)
	case mc.DTFloat16:
		applyHalf(view[uint16](dst, n), view[uint16](a, n), view[uint16](b, n), op)
	case mc.DTFloat32:
		applyFloat(view[float32](dst, n), view[float32](a, n), view[float32](b, n), op)
	case mc.DTFloat64:
		applyFloat64(view[float64](dst, n), view[float64](a, n), view[float64](b, n), op)
	}
	return nil
}

func view[T any](p unsafe.Pointer, n int) []T {
	return unsafe.Slice((*T)(p), n)
}

func truth[T integer | float](v bool) T {
	if v {
		return 1
	}
	return 0
}

func intOp[T integer](op mc.ReduceOp) func(x, y T) T {
	switch op {
	case mc.OpSum:
		return func(x, y T) T { return x + y }
	case mc.OpProd:
		return func(x, y T) T { return x * y }
	case mc.OpMax:
		return func(x, y T) T { return max(x, y) }
	case mc.OpMin:
		return func(x, y T) T { return min(x, y) }
	case mc.OpLand:
		return func(x, y T) T { return truth[T](x != 0 && y != 0) }
	case mc.OpLor:
		return func(x, y T) T { return truth[T](x != 0 || y != 0) }
	case mc.OpBand:
		return func(x, y T) T { return x & y }
	case mc.OpBor:
		return func(x, y T) T { return x | y }
	default:
		return func(x, y T) T { return x ^ y }
	}
}

func floatOp[T float](op mc.ReduceOp) func(x, y T) T {
	switch op {
	case mc.OpSum:
		return func(x, y T) T { return x + y }
	case mc.OpProd:
		return func(x, y T) T { return x * y }
	case mc.OpMax:
		return func(x, y T) T { return max(x, y) }
	case mc.OpMin:
		return func(x, y T) T { return min(x, y) }
	case mc.OpLand:
		return func(x, y T) T { return truth[T](x != 0 && y != 0) }
	default:
		return func(x, y T) T { return truth[T](x != 0 || y != 0) }
	}
}

func applyInt[T integer](dst, a, b []T, op mc.ReduceOp) {
	f := intOp[T](op)
	for i := range dst {
		dst[i] = f(a[i], b[i])
	}
}

func applyFloat[T float](dst, a, b []T, op mc.ReduceOp) {
	f := floatOp[T](op)
	for i := range dst {
		dst[i] = f(a[i], b[i])
	}
}

func applyFloat64(dst, a, b []float64, op mc.ReduceOp) {
	switch op {
	case mc.OpSum:
		floats.AddTo(dst, a, b)
	case mc.OpProd:
		floats.MulTo(dst, a, b)
	default:
		applyFloat(dst, a, b, op)
	}
}

// float16 is reduced in float32 and rounded back.
func applyHalf(dst, a, b []uint16, op mc.ReduceOp) {
	f := floatOp[float32](op)
	for i := range dst {
		x := float16.Frombits(a[i]).Float32()
		y := float16.Frombits(b[i]).Float32()
		dst[i] = float16.Fromfloat32(f(x, y)).Bits()
	}
}
