/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package ndbuffer implements Buffer, a local n-dimensional array of values
// stored as a flat row-major (C order) slice of its DType.
//
// Buffer is deliberately minimal: shape and dtype inquiry, element access,
// axis-wise slicing and concatenation, and dtype conversion. These are exactly
// the local operations the distributed layout logic (partitioning and
// redistribution) needs, so that logic stays testable independently of any
// particular compute backend.
//
// A Buffer may be empty (any dimension of size 0): a process can own an empty
// slice of a distributed array, and every operation here accepts that.
package ndbuffer

import (
	"fmt"
	"reflect"

	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Buffer is a local n-dimensional array: a shape plus a flat row-major slice
// of the Go type corresponding to the shape's DType.
//
// Buffers own their flat data exclusively; all operations that produce a new
// Buffer copy, they never alias.
type Buffer struct {
	shape shapes.Shape

	// flat holds the actual data, a slice of the type for the dtype of shape.
	flat any
}

// FromShape returns a Buffer with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) *Buffer {
	if !shape.Ok() {
		exceptions.Panicf("ndbuffer.FromShape: invalid shape")
	}
	size := shape.Size()
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size)
	return &Buffer{shape: shape.Clone(), flat: flatV.Interface()}
}

// FromFlat creates a Buffer with the given dimensions, backed by a copy of the
// flattened values in data. It panics if len(data) doesn't match the size
// implied by the dimensions.
func FromFlat[T dtypes.Supported](data []T, dimensions ...int) *Buffer {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if len(data) != shape.Size() {
		var v T
		exceptions.Panicf("ndbuffer.FromFlat[%T]: got %d values for shape %s, which requires %d values",
			v, len(data), shape, shape.Size())
	}
	flat := make([]T, len(data))
	copy(flat, data)
	return &Buffer{shape: shape, flat: flat}
}

// FromAnyFlat creates a Buffer taking ownership of the given flat slice, which
// must be a slice of the Go type corresponding to shape.DType with exactly
// shape.Size() elements.
func FromAnyFlat(flat any, shape shapes.Shape) (*Buffer, error) {
	if !shape.Ok() {
		return nil, errors.New("ndbuffer.FromAnyFlat: invalid shape")
	}
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice || flatV.Type().Elem() != shape.DType.GoType() {
		return nil, errors.Errorf("ndbuffer.FromAnyFlat: flat data is %T, shape %s requires []%s",
			flat, shape, shape.DType.GoType())
	}
	if flatV.Len() != shape.Size() {
		return nil, errors.Errorf("ndbuffer.FromAnyFlat: got %d values for shape %s, which requires %d values",
			flatV.Len(), shape, shape.Size())
	}
	return &Buffer{shape: shape.Clone(), flat: flat}, nil
}

// Shape of the buffer.
func (b *Buffer) Shape() shapes.Shape { return b.shape }

// DType of the buffer's elements.
func (b *Buffer) DType() dtypes.DType { return b.shape.DType }

// Rank of the buffer's shape.
func (b *Buffer) Rank() int { return b.shape.Rank() }

// Size is the total number of elements held.
func (b *Buffer) Size() int { return b.shape.Size() }

// Dim returns the dimension of the given axis -- negative axes count from the end.
func (b *Buffer) Dim(axis int) int { return b.shape.Dim(axis) }

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer%s", b.shape)
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	srcV := reflect.ValueOf(b.flat)
	dstV := reflect.MakeSlice(srcV.Type(), srcV.Len(), srcV.Len())
	reflect.Copy(dstV, srcV)
	return &Buffer{shape: b.shape.Clone(), flat: dstV.Interface()}
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go
// type corresponding to the DType. The slice is the actual data, not a copy,
// and must not be modified.
func (b *Buffer) ConstFlatData(accessFn func(flat any)) {
	accessFn(b.flat)
}

// ConstFlatData is the "generics" version of Buffer.ConstFlatData: it panics
// if T doesn't match the buffer's dtype.
func ConstFlatData[T dtypes.Supported](b *Buffer, accessFn func(flat []T)) {
	if b.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("ndbuffer.ConstFlatData[%T] is incompatible with Buffer's dtype %s -- expected dtype %s",
			v, b.shape.DType, dtypes.FromGenericsType[T]())
	}
	accessFn(b.flat.([]T))
}

// MutableFlatData calls accessFn with the flattened data; the contents of the
// slice may be changed until accessFn returns.
func MutableFlatData[T dtypes.Supported](b *Buffer, accessFn func(flat []T)) {
	if b.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("ndbuffer.MutableFlatData[%T] is incompatible with Buffer's dtype %s",
			v, b.shape.DType)
	}
	accessFn(b.flat.([]T))
}

// CopyFlatData returns a copy of the flat data of the Buffer.
func CopyFlatData[T dtypes.Supported](b *Buffer) []T {
	var flatCopy []T
	ConstFlatData(b, func(flat []T) {
		flatCopy = make([]T, len(flat))
		copy(flatCopy, flat)
	})
	return flatCopy
}

// At returns the element at the given indices, one index per axis.
// It panics if T doesn't match the dtype or the indices are out-of-bounds.
func At[T dtypes.Supported](b *Buffer, indices ...int) T {
	var value T
	ConstFlatData(b, func(flat []T) {
		value = flat[b.flatIndex(indices)]
	})
	return value
}

// Set the element at the given indices, one index per axis.
// It panics if T doesn't match the dtype or the indices are out-of-bounds.
func Set[T dtypes.Supported](b *Buffer, value T, indices ...int) {
	MutableFlatData(b, func(flat []T) {
		flat[b.flatIndex(indices)] = value
	})
}

func (b *Buffer) flatIndex(indices []int) int {
	if len(indices) != b.Rank() {
		exceptions.Panicf("ndbuffer: got %d indices for buffer of rank %d (%s)", len(indices), b.Rank(), b)
	}
	strides := b.shape.Strides()
	flatIdx := 0
	for axis, idx := range indices {
		if idx < 0 || idx >= b.shape.Dimensions[axis] {
			exceptions.Panicf("ndbuffer: index %d out-of-bounds for axis %d of %s", idx, axis, b)
		}
		flatIdx += idx * strides[axis]
	}
	return flatIdx
}

// Equal returns whether the two buffers have the same shape, dtype and contents.
func (b *Buffer) Equal(other *Buffer) bool {
	if other == nil {
		return b == nil
	}
	if !b.shape.Equal(other.shape) {
		return false
	}
	return reflect.DeepEqual(b.flat, other.flat)
}

// blockExtents returns the number of contiguous element blocks before the axis
// (outer) and the number of contiguous elements per step along the axis
// (inner) of a row-major layout.
func blockExtents(shape shapes.Shape, axis int) (outer, inner int) {
	outer, inner = 1, 1
	for a := 0; a < axis; a++ {
		outer *= shape.Dimensions[a]
	}
	for a := axis + 1; a < shape.Rank(); a++ {
		inner *= shape.Dimensions[a]
	}
	return
}

// Slice returns a new Buffer holding a copy of the range [start, end) along
// the given axis, with every other axis taken in full.
//
// An empty range (start == end) is valid and returns an empty buffer -- this
// is what a process with no elements along a partitioned axis holds.
func (b *Buffer) Slice(axis, start, end int) (*Buffer, error) {
	axis, err := b.shape.CheckAxis(axis)
	if err != nil {
		return nil, errors.WithMessage(err, "ndbuffer.Slice")
	}
	dim := b.shape.Dimensions[axis]
	if start < 0 || end < start || end > dim {
		return nil, errors.Errorf("ndbuffer.Slice: range [%d, %d) invalid for axis %d with dimension %d",
			start, end, axis, dim)
	}
	newShape := b.shape.WithDim(axis, end-start)
	dst := FromShape(newShape)

	outer, inner := blockExtents(b.shape, axis)
	srcV := reflect.ValueOf(b.flat)
	dstV := reflect.ValueOf(dst.flat)
	newDim := end - start
	for o := 0; o < outer; o++ {
		srcBase := (o*dim + start) * inner
		dstBase := o * newDim * inner
		reflect.Copy(
			dstV.Slice(dstBase, dstBase+newDim*inner),
			srcV.Slice(srcBase, srcBase+newDim*inner))
	}
	return dst, nil
}

// CopyRangeFrom copies src into b at the given offset along the given axis.
// src must have the same dtype and the same dimensions as b on every other
// axis; its extent along the axis determines how much is written.
func (b *Buffer) CopyRangeFrom(src *Buffer, axis, offset int) error {
	axis, err := b.shape.CheckAxis(axis)
	if err != nil {
		return errors.WithMessage(err, "ndbuffer.CopyRangeFrom")
	}
	if b.DType() != src.DType() {
		return errors.Errorf("ndbuffer.CopyRangeFrom: dtype mismatch, %s vs %s", b.DType(), src.DType())
	}
	if b.Rank() != src.Rank() {
		return errors.Errorf("ndbuffer.CopyRangeFrom: rank mismatch, %s vs %s", b, src)
	}
	for a := 0; a < b.Rank(); a++ {
		if a != axis && b.shape.Dimensions[a] != src.shape.Dimensions[a] {
			return errors.Errorf("ndbuffer.CopyRangeFrom: axis %d dimension mismatch, %s vs %s", a, b, src)
		}
	}
	dim := b.shape.Dimensions[axis]
	srcDim := src.shape.Dimensions[axis]
	if offset < 0 || offset+srcDim > dim {
		return errors.Errorf("ndbuffer.CopyRangeFrom: range [%d, %d) out-of-bounds for axis %d with dimension %d",
			offset, offset+srcDim, axis, dim)
	}
	if srcDim == 0 {
		return nil
	}

	outer, inner := blockExtents(b.shape, axis)
	srcV := reflect.ValueOf(src.flat)
	dstV := reflect.ValueOf(b.flat)
	for o := 0; o < outer; o++ {
		srcBase := o * srcDim * inner
		dstBase := (o*dim + offset) * inner
		reflect.Copy(
			dstV.Slice(dstBase, dstBase+srcDim*inner),
			srcV.Slice(srcBase, srcBase+srcDim*inner))
	}
	return nil
}

// CopyBlockFrom copies the whole of src into b as a block anchored at the
// given starts, one per axis. src must have the same dtype and rank as b, and
// the block must fit: starts[a] + src.Dim(a) <= b.Dim(a) for every axis.
func (b *Buffer) CopyBlockFrom(src *Buffer, starts ...int) error {
	if b.DType() != src.DType() {
		return errors.Errorf("ndbuffer.CopyBlockFrom: dtype mismatch, %s vs %s", b.DType(), src.DType())
	}
	if len(starts) != b.Rank() || src.Rank() != b.Rank() {
		return errors.Errorf("ndbuffer.CopyBlockFrom: got %d starts and source rank %d for destination rank %d",
			len(starts), src.Rank(), b.Rank())
	}
	for a, start := range starts {
		if start < 0 || start+src.shape.Dimensions[a] > b.shape.Dimensions[a] {
			return errors.Errorf("ndbuffer.CopyBlockFrom: block [%d, %d) out-of-bounds for axis %d of %s",
				start, start+src.shape.Dimensions[a], a, b)
		}
	}
	if src.Size() == 0 {
		return nil
	}

	srcV := reflect.ValueOf(src.flat)
	dstV := reflect.ValueOf(b.flat)
	if b.Rank() == 0 {
		reflect.Copy(dstV, srcV)
		return nil
	}

	// Copy one contiguous innermost run at a time, walking an odometer over
	// the outer axes of src.
	dstStrides := b.shape.Strides()
	run := src.shape.Dimensions[b.Rank()-1]
	outerRank := b.Rank() - 1
	indices := make([]int, outerRank)
	srcPos := 0
	for {
		dstPos := starts[outerRank] // Innermost axis offset; stride 1.
		for a := 0; a < outerRank; a++ {
			dstPos += (starts[a] + indices[a]) * dstStrides[a]
		}
		reflect.Copy(dstV.Slice(dstPos, dstPos+run), srcV.Slice(srcPos, srcPos+run))
		srcPos += run

		// Advance the odometer.
		a := outerRank - 1
		for ; a >= 0; a-- {
			indices[a]++
			if indices[a] < src.shape.Dimensions[a] {
				break
			}
			indices[a] = 0
		}
		if a < 0 {
			return nil
		}
	}
}

// Concat concatenates the parts along the given axis into a new Buffer.
// All parts must share dtype and every dimension except the concatenation axis.
func Concat(axis int, parts ...*Buffer) (*Buffer, error) {
	if len(parts) == 0 {
		return nil, errors.New("ndbuffer.Concat: no parts to concatenate")
	}
	axis, err := parts[0].shape.CheckAxis(axis)
	if err != nil {
		return nil, errors.WithMessage(err, "ndbuffer.Concat")
	}
	totalDim := 0
	for _, part := range parts {
		totalDim += part.shape.Dimensions[axis]
	}
	dst := FromShape(parts[0].shape.WithDim(axis, totalDim))
	offset := 0
	for i, part := range parts {
		if err := dst.CopyRangeFrom(part, axis, offset); err != nil {
			return nil, errors.WithMessagef(err, "ndbuffer.Concat: part #%d", i)
		}
		offset += part.shape.Dimensions[axis]
	}
	return dst, nil
}

// Reshape returns a Buffer with the same flat contents and a new shape of the
// same total size and dtype.
func (b *Buffer) Reshape(dimensions ...int) (*Buffer, error) {
	newShape := shapes.Make(b.DType(), dimensions...)
	if newShape.Size() != b.Size() {
		return nil, errors.Errorf("ndbuffer.Reshape: new shape %s has %d elements, buffer %s has %d",
			newShape, newShape.Size(), b, b.Size())
	}
	clone := b.Clone()
	clone.shape = newShape
	return clone, nil
}
