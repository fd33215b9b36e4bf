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

package ndbuffer

import (
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// ConvertTo returns a copy of the buffer cast to the given dtype. The shape
// (dimensions) is unchanged.
//
// Numeric conversions go through float64; conversions between complex dtypes
// are supported, but converting between complex and real dtypes is an error.
func (b *Buffer) ConvertTo(dtype dtypes.DType) (*Buffer, error) {
	if dtype == b.DType() {
		return b.Clone(), nil
	}
	fromComplex := b.DType() == dtypes.Complex64 || b.DType() == dtypes.Complex128
	toComplex := dtype == dtypes.Complex64 || dtype == dtypes.Complex128
	if fromComplex != toComplex {
		return nil, errors.Errorf("ndbuffer.ConvertTo: cannot convert between %s and %s", b.DType(), dtype)
	}

	newShape := shapes.Shape{DType: dtype, Dimensions: b.shape.Clone().Dimensions}
	if toComplex {
		flat, err := convertComplex(b.flat, dtype)
		if err != nil {
			return nil, err
		}
		return &Buffer{shape: newShape, flat: flat}, nil
	}

	values, err := toFloat64(b.flat)
	if err != nil {
		return nil, err
	}
	flat, err := fromFloat64(values, dtype)
	if err != nil {
		return nil, err
	}
	return &Buffer{shape: newShape, flat: flat}, nil
}

func toFloat64(flat any) ([]float64, error) {
	switch data := flat.(type) {
	case []bool:
		values := make([]float64, len(data))
		for i, v := range data {
			if v {
				values[i] = 1
			}
		}
		return values, nil
	case []int8:
		return toFloat64Numeric(data), nil
	case []int16:
		return toFloat64Numeric(data), nil
	case []int32:
		return toFloat64Numeric(data), nil
	case []int64:
		return toFloat64Numeric(data), nil
	case []uint8:
		return toFloat64Numeric(data), nil
	case []uint16:
		return toFloat64Numeric(data), nil
	case []uint32:
		return toFloat64Numeric(data), nil
	case []uint64:
		return toFloat64Numeric(data), nil
	case []float32:
		return toFloat64Numeric(data), nil
	case []float64:
		return toFloat64Numeric(data), nil
	case []float16.Float16:
		values := make([]float64, len(data))
		for i, v := range data {
			values[i] = float64(v.Float32())
		}
		return values, nil
	case []bfloat16.BFloat16:
		values := make([]float64, len(data))
		for i, v := range data {
			values[i] = float64(v.Float32())
		}
		return values, nil
	}
	return nil, errors.Errorf("ndbuffer.ConvertTo: unsupported source data %T", flat)
}

func toFloat64Numeric[T interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}](data []T) []float64 {
	values := make([]float64, len(data))
	for i, v := range data {
		values[i] = float64(v)
	}
	return values
}

func fromFloat64Numeric[T interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}](values []float64) []T {
	data := make([]T, len(values))
	for i, v := range values {
		data[i] = T(v)
	}
	return data
}

func fromFloat64(values []float64, dtype dtypes.DType) (any, error) {
	switch dtype {
	case dtypes.Bool:
		data := make([]bool, len(values))
		for i, v := range values {
			data[i] = v != 0
		}
		return data, nil
	case dtypes.Int8:
		return fromFloat64Numeric[int8](values), nil
	case dtypes.Int16:
		return fromFloat64Numeric[int16](values), nil
	case dtypes.Int32:
		return fromFloat64Numeric[int32](values), nil
	case dtypes.Int64:
		return fromFloat64Numeric[int64](values), nil
	case dtypes.Uint8:
		return fromFloat64Numeric[uint8](values), nil
	case dtypes.Uint16:
		return fromFloat64Numeric[uint16](values), nil
	case dtypes.Uint32:
		return fromFloat64Numeric[uint32](values), nil
	case dtypes.Uint64:
		return fromFloat64Numeric[uint64](values), nil
	case dtypes.Float32:
		return fromFloat64Numeric[float32](values), nil
	case dtypes.Float64:
		return fromFloat64Numeric[float64](values), nil
	case dtypes.Float16:
		data := make([]float16.Float16, len(values))
		for i, v := range values {
			data[i] = float16.Fromfloat32(float32(v))
		}
		return data, nil
	case dtypes.BFloat16:
		data := make([]bfloat16.BFloat16, len(values))
		for i, v := range values {
			data[i] = bfloat16.FromFloat32(float32(v))
		}
		return data, nil
	}
	return nil, errors.Errorf("ndbuffer.ConvertTo: unsupported target dtype %s", dtype)
}

func convertComplex(flat any, dtype dtypes.DType) (any, error) {
	var values []complex128
	switch data := flat.(type) {
	case []complex64:
		values = make([]complex128, len(data))
		for i, v := range data {
			values[i] = complex128(v)
		}
	case []complex128:
		values = data
	default:
		return nil, errors.Errorf("ndbuffer.ConvertTo: unsupported complex source data %T", flat)
	}
	switch dtype {
	case dtypes.Complex64:
		data := make([]complex64, len(values))
		for i, v := range values {
			data[i] = complex64(v)
		}
		return data, nil
	case dtypes.Complex128:
		data := make([]complex128, len(values))
		copy(data, values)
		return data, nil
	}
	return nil, errors.Errorf("ndbuffer.ConvertTo: unsupported complex target dtype %s", dtype)
}
