package dtensor_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/dtensor"
	"github.com/gomlx/dtensor/comm"
	"github.com/gomlx/dtensor/types/ndbuffer"
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/dtensor/types/xslices"
)

func TestNew(t *testing.T) {
	c := comm.NewSingle()
	global := shapes.Make(dtypes.Float32, 6, 6)

	t.Run("replicated", func(t *testing.T) {
		local := ndbuffer.FromFlat(xslices.Iota[float32](0, 36), 6, 6)
		tensor := must.M1(dtensor.New(local, global, dtensor.NoSplit, 0, c))
		assert.Equal(t, global, tensor.Shape())
		assert.Same(t, local, tensor.LocalBuffer())
	})

	t.Run("dtype mismatch", func(t *testing.T) {
		local := ndbuffer.FromFlat(xslices.Iota[float64](0, 36), 6, 6)
		_, err := dtensor.New(local, global, dtensor.NoSplit, 0, c)
		require.ErrorIs(t, err, dtensor.ErrLayout)
	})

	t.Run("local shape mismatch", func(t *testing.T) {
		local := ndbuffer.FromFlat(xslices.Iota[float32](0, 12), 3, 4)
		_, err := dtensor.New(local, global, dtensor.NoSplit, 0, c)
		require.ErrorIs(t, err, dtensor.ErrLayout)
	})

	t.Run("split local shape", func(t *testing.T) {
		// Across 3 processes the rank-r share of a (6, 6) split along axis 0
		// is (2, 6); any other local shape is rejected.
		err := comm.Run(3, func(c comm.Communicator) error {
			local := ndbuffer.FromFlat(xslices.Iota[float32](0, 12), 2, 6)
			tensor, err := dtensor.New(local, global, dtensor.Split(0), 0, c)
			require.NoError(t, err)
			assert.Equal(t, dtensor.Split(0), tensor.Split())

			wrong := ndbuffer.FromFlat(xslices.Iota[float32](0, 18), 3, 6)
			_, err = dtensor.New(wrong, global, dtensor.Split(0), 0, c)
			require.ErrorIs(t, err, dtensor.ErrLayout)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestPartsRoundTrip(t *testing.T) {
	err := comm.Run(3, func(c comm.Communicator) error {
		global := ndbuffer.FromFlat(xslices.Iota[float32](0, 36), 6, 6)
		tensor := must.M1(dtensor.FromGlobal(global, dtensor.Split(1), c))

		local, gshape, split := tensor.Parts()
		rebuilt := must.M1(dtensor.New(local, gshape, split, tensor.Device(), c))
		assert.Equal(t, tensor.Split(), rebuilt.Split())
		assert.Equal(t, tensor.Shape(), rebuilt.Shape())
		assert.Same(t, tensor.LocalBuffer(), rebuilt.LocalBuffer())
		return nil
	})
	require.NoError(t, err)
}

func TestString(t *testing.T) {
	c := comm.NewSingle()
	global := ndbuffer.FromFlat(xslices.Iota[float32](0, 36), 6, 6)
	tensor := must.M1(dtensor.FromGlobal(global, dtensor.Split(1), c))
	assert.Contains(t, tensor.String(), "split=1")
	must.M1(tensor.Resplit(dtensor.NoSplit))
	assert.Contains(t, tensor.String(), "split=NoSplit")
}

func TestIndexedAccess(t *testing.T) {
	t.Run("replicated", func(t *testing.T) {
		c := comm.NewSingle()
		global := ndbuffer.FromFlat(xslices.Iota[float32](0, 36), 6, 6)
		tensor := must.M1(dtensor.FromGlobal(global, dtensor.NoSplit, c))

		got := must.M1(dtensor.At[float32](tensor, 1, 2))
		assert.Equal(t, float32(8), got)

		require.NoError(t, dtensor.Set[float32](tensor, -1, 1, 2))
		got = must.M1(dtensor.At[float32](tensor, 1, 2))
		assert.Equal(t, float32(-1), got)
	})

	t.Run("split is rejected", func(t *testing.T) {
		err := comm.Run(2, func(c comm.Communicator) error {
			global := ndbuffer.FromFlat(xslices.Iota[float32](0, 36), 6, 6)
			tensor := must.M1(dtensor.FromGlobal(global, dtensor.Split(0), c))

			_, err := dtensor.At[float32](tensor, 1, 2)
			require.ErrorIs(t, err, dtensor.ErrLayout)
			require.ErrorIs(t, dtensor.Set[float32](tensor, 0, 1, 2), dtensor.ErrLayout)
			require.ErrorIs(t, tensor.SetSlice(global, 0, 0), dtensor.ErrLayout)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestSetSlice(t *testing.T) {
	c := comm.NewSingle()
	global := ndbuffer.FromShape(shapes.Make(dtypes.Int32, 4, 4))
	tensor := must.M1(dtensor.FromGlobal(global, dtensor.NoSplit, c))

	patch := ndbuffer.FromFlat([]int32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, tensor.SetSlice(patch, 1, 1))

	assert.Equal(t, int32(1), must.M1(dtensor.At[int32](tensor, 1, 1)))
	assert.Equal(t, int32(4), must.M1(dtensor.At[int32](tensor, 2, 2)))
	assert.Equal(t, int32(0), must.M1(dtensor.At[int32](tensor, 0, 0)))
}

func TestExpandDims(t *testing.T) {
	err := comm.Run(2, func(c comm.Communicator) error {
		global := ndbuffer.FromFlat(xslices.Iota[float32](0, 24), 4, 6)
		tensor := must.M1(dtensor.FromGlobal(global, dtensor.Split(1), c))

		// Inserting an axis before the split axis shifts the split right.
		expanded := must.M1(tensor.ExpandDims(0))
		assert.Equal(t, []int{1, 4, 6}, expanded.Shape().Dimensions)
		assert.Equal(t, dtensor.Split(2), expanded.Split())
		assert.Equal(t, []int{1, 4, 3}, expanded.LocalShape().Dimensions)

		// Inserting after the split axis leaves it alone.
		expanded = must.M1(tensor.ExpandDims(2))
		assert.Equal(t, []int{4, 6, 1}, expanded.Shape().Dimensions)
		assert.Equal(t, dtensor.Split(1), expanded.Split())

		// The source tensor is untouched.
		assert.Equal(t, []int{4, 6}, tensor.Shape().Dimensions)
		assert.Equal(t, dtensor.Split(1), tensor.Split())

		_, err := tensor.ExpandDims(3)
		require.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestAsType(t *testing.T) {
	err := comm.Run(2, func(c comm.Communicator) error {
		global := ndbuffer.FromFlat(xslices.Iota[float32](0, 24), 4, 6)
		tensor := must.M1(dtensor.FromGlobal(global, dtensor.Split(0), c))

		cast := must.M1(tensor.AsType(dtypes.Float64))
		assert.Equal(t, dtypes.Float64, cast.DType())
		assert.Equal(t, dtensor.Split(0), cast.Split())
		assert.Equal(t, tensor.LocalShape().Dimensions, cast.LocalShape().Dimensions)
		// The original keeps its dtype.
		assert.Equal(t, dtypes.Float32, tensor.DType())

		// Round trip through float64 preserves small integers exactly.
		back := must.M1(cast.AsType(dtypes.Float32))
		assert.True(t, back.LocalBuffer().Equal(tensor.LocalBuffer()))

		// In-place conversion mutates the receiver.
		must.M1(tensor.AsTypeInPlace(dtypes.Int32))
		assert.Equal(t, dtypes.Int32, tensor.DType())
		assert.Equal(t, dtypes.Int32, tensor.LocalBuffer().DType())
		return nil
	})
	require.NoError(t, err)
}
