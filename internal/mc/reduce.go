package mc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// DataType is the element type of a reduction buffer.
type DataType int

const (
	DTInt8 DataType = iota
	DTInt16
	DTInt32
	DTInt64
	DTUint8
	DTUint16
	DTUint32
	DTUint64
	DTFloat16
	DTFloat32
	DTFloat64
)

var dataTypeInfo = [...]struct {
	name string
	size uint64
}{
	{"int8", 1}, {"int16", 2}, {"int32", 4}, {"int64", 8},
	{"uint8", 1}, {"uint16", 2}, {"uint32", 4}, {"uint64", 8},
	{"float16", 2}, {"float32", 4}, {"float64", 8},
}

func (d DataType) valid() bool { return d >= 0 && int(d) < len(dataTypeInfo) }

func (d DataType) String() string {
	if d.valid() {
		return dataTypeInfo[d].name
	}
	return fmt.Sprintf("dtype(%d)", int(d))
}

// Size is the element size in bytes, or 0 for an unknown type.
func (d DataType) Size() uint64 {
	if d.valid() {
		return dataTypeInfo[d].size
	}
	return 0
}

// ParseDataType accepts the names produced by DataType.String.
func ParseDataType(s string) (DataType, error) {
	for i, info := range dataTypeInfo {
		if strings.EqualFold(s, info.name) {
			return DataType(i), nil
		}
	}
	return 0, errors.Errorf("unknown data type %q", s)
}

// IsFloat reports whether d is a floating point type.
func (d DataType) IsFloat() bool {
	return d == DTFloat16 || d == DTFloat32 || d == DTFloat64
}

// ReduceOp is an element-wise binary reduction.
type ReduceOp int

const (
	OpSum ReduceOp = iota
	OpProd
	OpMax
	OpMin
	OpLand
	OpLor
	OpBand
	OpBor
	OpBxor
)

var reduceOpNames = [...]string{"sum", "prod", "max", "min", "land", "lor", "band", "bor", "bxor"}

func (o ReduceOp) String() string {
	if o >= 0 && int(o) < len(reduceOpNames) {
		return reduceOpNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsBitwise reports whether o only makes sense on integer types.
func (o ReduceOp) IsBitwise() bool {
	return o == OpBand || o == OpBor || o == OpBxor
}

func ParseReduceOp(s string) (ReduceOp, error) {
	for i, name := range reduceOpNames {
		if strings.EqualFold(s, name) {
			return ReduceOp(i), nil
		}
	}
	return 0, errors.Errorf("unknown reduction %q", s)
}

// ValidateReduce checks that op can be applied to dt.
func ValidateReduce(dt DataType, op ReduceOp) error {
	if !dt.valid() || op < 0 || int(op) >= len(reduceOpNames) {
		return &Error{Op: "reduce", Kind: ErrInvalidParam}
	}
	if dt.IsFloat() && op.IsBitwise() {
		return &Error{Op: "reduce " + op.String() + " on " + dt.String(), Kind: ErrNotSupported}
	}
	return nil
}
