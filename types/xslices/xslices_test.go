package xslices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtAndLast(t *testing.T) {
	s := []int{2, 3, 5, 7}
	assert.Equal(t, 2, At(s, 0))
	assert.Equal(t, 7, At(s, -1))
	assert.Equal(t, 5, At(s, -2))
	assert.Equal(t, 7, Last(s))
}

func TestCopy(t *testing.T) {
	s := []float32{1, 2, 3}
	s2 := Copy(s)
	assert.Equal(t, s, s2)
	s2[0] = 42
	assert.Equal(t, float32(1), s[0])
	assert.Nil(t, Copy([]int{}))
}

func TestIota(t *testing.T) {
	assert.Equal(t, []float64{3, 4}, Iota(3.0, 2))
	assert.Equal(t, []int{0, 1, 2, 3}, Iota(0, 4))
}

func TestMap(t *testing.T) {
	assert.Equal(t, []int{2, 4, 6}, Map([]int{1, 2, 3}, func(e int) int { return 2 * e }))
}

func TestMaxMin(t *testing.T) {
	s := []int{3, 1, 4, 1, 5}
	assert.Equal(t, 5, Max(s))
	assert.Equal(t, 1, Min(s))
	assert.Equal(t, 0, Max([]int{}))
}
