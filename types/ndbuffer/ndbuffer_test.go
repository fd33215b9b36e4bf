package ndbuffer

import (
	"testing"

	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/dtensor/types/xslices"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFromShapeAndFlat(t *testing.T) {
	b := FromShape(shapes.Make(dtypes.Float32, 2, 3))
	assert.Equal(t, 6, b.Size())
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0}, CopyFlatData[float32](b))

	b2 := FromFlat(xslices.Iota[float32](0, 6), 2, 3)
	assert.Equal(t, dtypes.Float32, b2.DType())
	assert.Equal(t, float32(5), At[float32](b2, 1, 2))
	assert.Equal(t, float32(3), At[float32](b2, 1, 0))

	// Empty buffers are valid.
	empty := FromShape(shapes.Make(dtypes.Int32, 0, 4))
	assert.Equal(t, 0, empty.Size())
	assert.NotNil(t, empty.Clone())
}

func TestSetAndClone(t *testing.T) {
	b := FromFlat(xslices.Iota[int32](0, 4), 2, 2)
	clone := b.Clone()
	Set[int32](b, 42, 0, 1)
	assert.Equal(t, int32(42), At[int32](b, 0, 1))
	assert.Equal(t, int32(1), At[int32](clone, 0, 1))
	assert.False(t, b.Equal(clone))
}

func TestSlice(t *testing.T) {
	// [[0 1 2] [3 4 5] [6 7 8]]
	b := FromFlat(xslices.Iota[float64](0, 9), 3, 3)

	rows := must.M1(b.Slice(0, 1, 3))
	assert.Equal(t, []int{2, 3}, rows.Shape().Dimensions)
	assert.Equal(t, []float64{3, 4, 5, 6, 7, 8}, CopyFlatData[float64](rows))

	cols := must.M1(b.Slice(1, 0, 2))
	assert.Equal(t, []int{3, 2}, cols.Shape().Dimensions)
	assert.Equal(t, []float64{0, 1, 3, 4, 6, 7}, CopyFlatData[float64](cols))

	// Negative axis counts from the end.
	lastCol := must.M1(b.Slice(-1, 2, 3))
	assert.Equal(t, []float64{2, 5, 8}, CopyFlatData[float64](lastCol))

	// Empty range is valid.
	none := must.M1(b.Slice(0, 1, 1))
	assert.Equal(t, []int{0, 3}, none.Shape().Dimensions)

	_, err := b.Slice(0, 2, 5)
	require.Error(t, err)
	_, err = b.Slice(3, 0, 1)
	require.Error(t, err)
}

func TestConcat(t *testing.T) {
	a := FromFlat([]int32{0, 1, 2, 3, 4, 5}, 2, 3)
	c := FromFlat([]int32{6, 7, 8}, 1, 3)

	rows := must.M1(Concat(0, a, c))
	assert.Equal(t, []int{3, 3}, rows.Shape().Dimensions)
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8}, CopyFlatData[int32](rows))

	left := FromFlat([]int32{0, 1, 10, 11}, 2, 2)
	right := FromFlat([]int32{2, 12}, 2, 1)
	cols := must.M1(Concat(1, left, right))
	assert.Equal(t, []int{2, 3}, cols.Shape().Dimensions)
	assert.Equal(t, []int32{0, 1, 2, 10, 11, 12}, CopyFlatData[int32](cols))

	// Concatenating with empty parts keeps rank order.
	empty := FromShape(shapes.Make(dtypes.Int32, 0, 3))
	withEmpty := must.M1(Concat(0, empty, a, empty))
	assert.Equal(t, []int{2, 3}, withEmpty.Shape().Dimensions)
	assert.Equal(t, CopyFlatData[int32](a), CopyFlatData[int32](withEmpty))

	_, err := Concat(1, a, c) // Mismatching dimension on axis 0.
	require.Error(t, err)
}

func TestCopyRangeFrom(t *testing.T) {
	dst := FromShape(shapes.Make(dtypes.Float32, 4, 2))
	src := FromFlat([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, dst.CopyRangeFrom(src, 0, 1))
	assert.Equal(t, []float32{0, 0, 1, 2, 3, 4, 0, 0}, CopyFlatData[float32](dst))

	require.Error(t, dst.CopyRangeFrom(src, 0, 3))                                   // Out of range.
	require.Error(t, dst.CopyRangeFrom(FromFlat([]float32{1, 2, 3}, 1, 3), 0, 0))    // Wrong inner dim.
	require.Error(t, dst.CopyRangeFrom(FromFlat([]float64{1, 2, 3, 4}, 2, 2), 0, 0)) // Wrong dtype.
}

func TestConvertTo(t *testing.T) {
	b := FromFlat([]float32{0, 1.5, -2, 3}, 2, 2)

	asF64 := must.M1(b.ConvertTo(dtypes.Float64))
	assert.Equal(t, []float64{0, 1.5, -2, 3}, CopyFlatData[float64](asF64))

	asInt := must.M1(b.ConvertTo(dtypes.Int32))
	assert.Equal(t, []int32{0, 1, -2, 3}, CopyFlatData[int32](asInt))

	asBool := must.M1(b.ConvertTo(dtypes.Bool))
	assert.Equal(t, []bool{false, true, true, true}, CopyFlatData[bool](asBool))

	asF16 := must.M1(b.ConvertTo(dtypes.Float16))
	assert.Equal(t, float16.Fromfloat32(1.5), At[float16.Float16](asF16, 0, 1))
	back := must.M1(asF16.ConvertTo(dtypes.Float32))
	assert.Equal(t, []float32{0, 1.5, -2, 3}, CopyFlatData[float32](back))

	asBF16 := must.M1(b.ConvertTo(dtypes.BFloat16))
	assert.Equal(t, bfloat16.FromFloat32(1.5), At[bfloat16.BFloat16](asBF16, 0, 1))

	// Same dtype clones.
	same := must.M1(b.ConvertTo(dtypes.Float32))
	Set[float32](same, 99, 0, 0)
	assert.Equal(t, float32(0), At[float32](b, 0, 0))

	// Complex <-> real is not supported.
	_, err := b.ConvertTo(dtypes.Complex64)
	require.Error(t, err)
	c := FromFlat([]complex64{1 + 2i}, 1)
	_, err = c.ConvertTo(dtypes.Float32)
	require.Error(t, err)
	c128 := must.M1(c.ConvertTo(dtypes.Complex128))
	assert.Equal(t, complex128(1+2i), At[complex128](c128, 0))
}

func TestCopyBlockFrom(t *testing.T) {
	t.Run("interior block", func(t *testing.T) {
		dst := FromShape(shapes.Make(dtypes.Int32, 4, 5))
		src := FromFlat([]int32{1, 2, 3, 4, 5, 6}, 2, 3)
		require.NoError(t, dst.CopyBlockFrom(src, 1, 2))
		assert.Equal(t, []int32{
			0, 0, 0, 0, 0,
			0, 0, 1, 2, 3,
			0, 0, 4, 5, 6,
			0, 0, 0, 0, 0,
		}, CopyFlatData[int32](dst))
	})

	t.Run("3d corner block", func(t *testing.T) {
		dst := FromShape(shapes.Make(dtypes.Float32, 2, 3, 4))
		src := FromFlat(xslices.Iota[float32](1, 8), 2, 2, 2)
		require.NoError(t, dst.CopyBlockFrom(src, 0, 1, 2))
		assert.Equal(t, float32(1), At[float32](dst, 0, 1, 2))
		assert.Equal(t, float32(2), At[float32](dst, 0, 1, 3))
		assert.Equal(t, float32(7), At[float32](dst, 1, 2, 2))
		assert.Equal(t, float32(8), At[float32](dst, 1, 2, 3))
		assert.Equal(t, float32(0), At[float32](dst, 0, 0, 0))
	})

	t.Run("scalar", func(t *testing.T) {
		dst := FromShape(shapes.Scalar[float64]())
		src := FromFlat([]float64{7})
		require.NoError(t, dst.CopyBlockFrom(src))
		assert.Equal(t, float64(7), At[float64](dst))
	})

	t.Run("empty source", func(t *testing.T) {
		dst := FromFlat([]int32{1, 2, 3, 4}, 2, 2)
		src := FromShape(shapes.Make(dtypes.Int32, 0, 2))
		require.NoError(t, dst.CopyBlockFrom(src, 1, 0))
		assert.Equal(t, []int32{1, 2, 3, 4}, CopyFlatData[int32](dst))
	})

	t.Run("errors", func(t *testing.T) {
		dst := FromShape(shapes.Make(dtypes.Int32, 4, 5))
		require.Error(t, dst.CopyBlockFrom(FromFlat([]float32{1}, 1, 1), 0, 0))
		require.Error(t, dst.CopyBlockFrom(FromFlat([]int32{1}, 1), 0, 0))
		require.Error(t, dst.CopyBlockFrom(FromFlat([]int32{1, 2}, 1, 2), 0, 4))
		require.Error(t, dst.CopyBlockFrom(FromFlat([]int32{1}, 1, 1), -1, 0))
	})
}
