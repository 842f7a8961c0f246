package reduce

import (
	"testing"
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func ptr[T any](s []T) unsafe.Pointer {
	return unsafe.Pointer(&s[0])
}

func TestApply_Int32(t *testing.T) {
	a := []int32{1, -2, 3, 0}
	b := []int32{4, 5, -6, 7}

	testCases := []struct {
		op       mc.ReduceOp
		expected []int32
	}{
		{mc.OpSum, []int32{5, 3, -3, 7}},
		{mc.OpProd, []int32{4, -10, -18, 0}},
		{mc.OpMax, []int32{4, 5, 3, 7}},
		{mc.OpMin, []int32{1, -2, -6, 0}},
		{mc.OpLand, []int32{1, 1, 1, 0}},
		{mc.OpLor, []int32{1, 1, 1, 1}},
		{mc.OpBand, []int32{1 & 4, -2 & 5, 3 & -6, 0}},
		{mc.OpBor, []int32{1 | 4, -2 | 5, 3 | -6, 7}},
		{mc.OpBxor, []int32{1 ^ 4, -2 ^ 5, 3 ^ -6, 7}},
	}

	for _, tc := range testCases {
		t.Run(tc.op.String(), func(t *testing.T) {
			dst := make([]int32, len(a))
			require.NoError(t, Apply(ptr(dst), ptr(a), ptr(b), uint64(len(a)), mc.DTInt32, tc.op))
			assert.Equal(t, tc.expected, dst)
		})
	}
}

func TestApply_Float64InPlace(t *testing.T) {
	a := []float64{1.5, 2, 3}
	b := []float64{0.5, 4, -1}

	require.NoError(t, Apply(ptr(a), ptr(a), ptr(b), 3, mc.DTFloat64, mc.OpSum))
	assert.Equal(t, []float64{2, 6, 2}, a)

	require.NoError(t, Apply(ptr(a), ptr(a), ptr(b), 3, mc.DTFloat64, mc.OpProd))
	assert.Equal(t, []float64{1, 24, -2}, a)
}

func TestApply_Float16(t *testing.T) {
	a := []uint16{float16.Fromfloat32(1.5).Bits(), float16.Fromfloat32(-2).Bits()}
	b := []uint16{float16.Fromfloat32(2.5).Bits(), float16.Fromfloat32(8).Bits()}
	dst := make([]uint16, 2)

	require.NoError(t, Apply(ptr(dst), ptr(a), ptr(b), 2, mc.DTFloat16, mc.OpMax))
	assert.Equal(t, float32(2.5), float16.Frombits(dst[0]).Float32())
	assert.Equal(t, float32(8), float16.Frombits(dst[1]).Float32())
}

func TestApply_Errors(t *testing.T) {
	a := []float32{1}

	err := Apply(ptr(a), ptr(a), ptr(a), 1, mc.DTFloat32, mc.OpBxor)
	assert.ErrorIs(t, err, mc.ErrNotSupported)

	err = Apply(ptr(a), ptr(a), ptr(a), 1, mc.DataType(99), mc.OpSum)
	assert.ErrorIs(t, err, mc.ErrInvalidParam)

	err = Apply(nil, ptr(a), ptr(a), 1, mc.DTFloat32, mc.OpSum)
	assert.ErrorIs(t, err, mc.ErrInvalidParam)

	assert.NoError(t, Apply(nil, nil, nil, 0, mc.DTFloat32, mc.OpSum))
}
