package dtensor

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/dtensor/types/ndbuffer"
)

// Indexed access is deliberately conservative: it is only permitted on an
// unsplit tensor, where global and local indices coincide on every process.
// On a split tensor an arbitrary index set may straddle process boundaries,
// and supporting it would require computing a fresh partition descriptor for
// the indexed region; instead the operation fails fast with ErrLayout before
// touching the buffer. Resplit to NoSplit first to index a split tensor.

// checkIndexable returns ErrLayout unless the tensor is unsplit.
func (t *Tensor) checkIndexable(op string) error {
	if t.split.IsAxis() {
		return errors.Wrapf(ErrLayout, "%s requires an unsplit tensor, got split=%s -- Resplit(NoSplit) first", op, t.split)
	}
	return nil
}

// At returns the element at the given global indices, one per axis.
// The tensor must be unsplit.
func At[T dtypes.Supported](t *Tensor, indices ...int) (T, error) {
	var zero T
	if err := t.checkIndexable("dtensor.At"); err != nil {
		return zero, err
	}
	return ndbuffer.At[T](t.local, indices...), nil
}

// Set stores value at the given global indices, one per axis.
// The tensor must be unsplit.
func Set[T dtypes.Supported](t *Tensor, value T, indices ...int) error {
	if err := t.checkIndexable("dtensor.Set"); err != nil {
		return err
	}
	ndbuffer.Set(t.local, value, indices...)
	return nil
}

// SetSlice writes the whole of value into the tensor as a block anchored at
// the given starts, one per axis. The tensor must be unsplit.
func (t *Tensor) SetSlice(value *ndbuffer.Buffer, starts ...int) error {
	if err := t.checkIndexable("dtensor.SetSlice"); err != nil {
		return err
	}
	return t.local.CopyBlockFrom(value, starts...)
}

// ExpandDims returns a new tensor with an extra axis of dimension 1 inserted
// at the given position. The split axis, when it lies at or beyond the
// insertion point, shifts by one to keep referring to the same data axis.
// No data is moved or copied between processes.
func (t *Tensor) ExpandDims(axis int) (*Tensor, error) {
	if axis < 0 || axis > t.global.Rank() {
		return nil, errors.Errorf("dtensor.ExpandDims: axis %d out-of-range for shape %s (rank %d)",
			axis, t.global, t.global.Rank())
	}
	newGlobal := t.global.InsertDim(axis, 1)
	newLocalShape := t.local.Shape().InsertDim(axis, 1)
	newLocal, err := t.local.Reshape(newLocalShape.Dimensions...)
	if err != nil {
		return nil, err
	}
	newSplit := t.split
	if t.split.IsAxis() && int(t.split) >= axis {
		newSplit++
	}
	return &Tensor{
		local:  newLocal,
		global: newGlobal,
		split:  newSplit,
		device: t.device,
		comm:   t.comm,
	}, nil
}

// AsType returns a copy of the tensor cast to the given dtype. The layout
// (global shape dimensions, split axis, device tag) is unchanged.
func (t *Tensor) AsType(dtype dtypes.DType) (*Tensor, error) {
	casted, err := t.local.ConvertTo(dtype)
	if err != nil {
		return nil, err
	}
	newGlobal := t.global.Clone()
	newGlobal.DType = dtype
	return &Tensor{
		local:  casted,
		global: newGlobal,
		split:  t.split,
		device: t.device,
		comm:   t.comm,
	}, nil
}

// AsTypeInPlace casts the tensor to the given dtype in place and returns it.
func (t *Tensor) AsTypeInPlace(dtype dtypes.DType) (*Tensor, error) {
	casted, err := t.local.ConvertTo(dtype)
	if err != nil {
		return nil, err
	}
	t.local = casted
	t.global.DType = dtype
	return t, nil
}
