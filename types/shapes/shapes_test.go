package shapes

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	s := Make(dtypes.Float32, 9, 4)
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, 36, s.Size())
	assert.Equal(t, "(Float32)[9 4]", s.String())

	// Zero dimensions are valid: empty local slices happen whenever there are
	// more processes than elements along the partitioned axis.
	empty := Make(dtypes.Float32, 0, 4)
	assert.Equal(t, 0, empty.Size())
	assert.True(t, empty.Ok())

	// Negative dimensions are not.
	err := exceptions.Try(func() { Make(dtypes.Float32, -1, 4) })
	require.NotNil(t, err)
}

func TestDimAndAxes(t *testing.T) {
	s := Make(dtypes.Int32, 2, 3, 5)
	assert.Equal(t, 5, s.Dim(-1))
	assert.Equal(t, 2, s.Dim(0))

	axis := must.M1(s.CheckAxis(-2))
	assert.Equal(t, 1, axis)
	_, err := s.CheckAxis(3)
	require.Error(t, err)
	_, err = s.CheckAxis(-4)
	require.Error(t, err)
}

func TestWithDimAndInsertDim(t *testing.T) {
	s := Make(dtypes.Float64, 6, 6)
	assert.Equal(t, []int{6, 2}, s.WithDim(1, 2).Dimensions)
	assert.Equal(t, []int{6, 6}, s.Dimensions) // Unchanged.

	assert.Equal(t, []int{1, 6, 6}, s.InsertDim(0, 1).Dimensions)
	assert.Equal(t, []int{6, 6, 1}, s.InsertDim(2, 1).Dimensions)
}

func TestStrides(t *testing.T) {
	s := Make(dtypes.Float32, 2, 3, 5)
	assert.Equal(t, []int{15, 5, 1}, s.Strides())
	assert.Empty(t, Scalar[float32]().Strides())
}

func TestEqualAndClone(t *testing.T) {
	s := Make(dtypes.Float32, 3, 2)
	s2 := s.Clone()
	assert.True(t, s.Equal(s2))
	s2.Dimensions[0] = 7
	assert.False(t, s.Equal(s2))
	assert.True(t, s.EqualDimensions(Make(dtypes.Int64, 3, 2)))
	assert.False(t, s.Equal(Make(dtypes.Int64, 3, 2)))
}

func TestGobSerialization(t *testing.T) {
	s := Make(dtypes.Float32, 9, 4)
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	require.NoError(t, s.GobSerialize(enc))

	dec := gob.NewDecoder(&buf)
	s2 := must.M1(GobDeserialize(dec))
	assert.True(t, s.Equal(s2))
}
