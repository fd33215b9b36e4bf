// Package dtensor implements a distributed n-dimensional array: a logical
// tensor whose data is physically partitioned across the processes of a group
// along a single chosen axis (the "split" axis), while behaving, to calling
// code, like a single contiguous array.
//
// Every process holds one contiguous, rank-ordered slice of the global array
// along the split axis: process 0 holds the first slice, process 1 the next,
// and so on, with no interleaving. A tensor can instead be unsplit (split ==
// NoSplit), in which case every process holds the full array.
//
// The package is organized around three pieces:
//
//   - partition: the pure arithmetic mapping a global shape, a split axis and
//     a process count to per-process counts and displacements.
//   - comm: the collective transport (gather-to-all and all-to-all exchange)
//     that moves data between processes.
//   - Tensor (this package): the value combining a local ndbuffer.Buffer, the
//     global shape, the split axis, a device tag and the communicator handle,
//     with Resplit as the layout-changing operation.
//
// Resplit changes the partitioning of a tensor -- gathering it whole onto
// every process, scattering it from replicated copies, or repartitioning
// along a new axis via an all-to-all exchange. It mutates the tensor in place
// and returns it, so calls can be chained; from the caller's point of view it
// either fully succeeds on every process or fails without leaving the tensor
// half-migrated.
package dtensor

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/dtensor/comm"
	"github.com/gomlx/dtensor/partition"
	"github.com/gomlx/dtensor/types/ndbuffer"
	"github.com/gomlx/dtensor/types/shapes"
)

// Split identifies the axis along which a tensor is partitioned, or NoSplit
// for a tensor fully replicated on every process. Negative axes are not
// accepted as split values.
type Split int

// NoSplit marks a tensor that is not partitioned: every process holds the
// complete array.
const NoSplit Split = -1

// IsAxis returns whether the split refers to a real axis.
func (s Split) IsAxis() bool { return s != NoSplit }

// String implements fmt.Stringer.
func (s Split) String() string {
	if s == NoSplit {
		return "NoSplit"
	}
	return fmt.Sprintf("%d", int(s))
}

// DeviceNum tags the device the local buffer resides on. The layout logic is
// agnostic to device placement, but the tag is preserved unchanged across
// layout changes so device-placement collaborators can rely on it.
type DeviceNum int

// ErrLayout is returned when an operation is attempted on a layout it does
// not support -- e.g. an indexed write on a split tensor. It is detected
// locally, before any buffer is touched and without any cross-process
// coordination.
var ErrLayout = errors.New("unsupported layout")

// Tensor is a distributed n-dimensional array. It owns its local buffer
// exclusively; the Communicator is shared across every tensor created in the
// same process group and is only referenced.
//
// Mutating methods return the tensor to allow chaining.
type Tensor struct {
	local  *ndbuffer.Buffer
	global shapes.Shape
	split  Split
	device DeviceNum
	comm   comm.Communicator
}

// New creates a Tensor from its parts: the local buffer this process holds,
// the global shape, the split axis, a device tag and the group communicator.
// This is also the entry point for deserialization from storage (see
// Tensor.Parts for the reverse).
//
// The local buffer must match the canonical layout: for an unsplit tensor it
// is the full global shape; for a split tensor it is the global shape with
// the split axis reduced to this process's share of the partition.
func New(local *ndbuffer.Buffer, global shapes.Shape, split Split, device DeviceNum, c comm.Communicator) (*Tensor, error) {
	if c == nil {
		return nil, errors.New("dtensor.New: nil communicator")
	}
	if local == nil {
		return nil, errors.New("dtensor.New: nil local buffer")
	}
	if !global.Ok() {
		return nil, errors.New("dtensor.New: invalid global shape")
	}
	if local.DType() != global.DType {
		return nil, errors.Wrapf(ErrLayout, "local buffer dtype %s differs from global dtype %s",
			local.DType(), global.DType)
	}
	want := global
	if split.IsAxis() {
		if split < NoSplit || int(split) >= global.Rank() {
			return nil, errors.Wrapf(partition.ErrInvalidPartition,
				"split must be NoSplit or an axis of shape %s, got %d", global, split)
		}
		var err error
		want, _, _, err = partition.Chunk(global, int(split), c.Rank(), c.Size())
		if err != nil {
			return nil, err
		}
	}
	if !local.Shape().Equal(want) {
		return nil, errors.Wrapf(ErrLayout,
			"local buffer has shape %s, want %s for global shape %s split %s on rank %d of %d",
			local.Shape(), want, global, split, c.Rank(), c.Size())
	}
	return &Tensor{local: local, global: global, split: split, device: device, comm: c}, nil
}

// FromGlobal creates a Tensor from a full copy of the array, locally slicing
// out this process's share when split refers to a real axis. No communication
// is issued: every process is assumed to hold the same full buffer.
func FromGlobal(global *ndbuffer.Buffer, split Split, c comm.Communicator) (*Tensor, error) {
	if c == nil {
		return nil, errors.New("dtensor.FromGlobal: nil communicator")
	}
	local := global.Clone()
	if split.IsAxis() {
		_, counts, displs, err := partition.Chunk(global.Shape(), int(split), c.Rank(), c.Size())
		if err != nil {
			return nil, err
		}
		start := displs[c.Rank()]
		local, err = global.Slice(int(split), start, start+counts[c.Rank()])
		if err != nil {
			return nil, err
		}
	}
	return New(local, global.Shape(), split, 0, c)
}

// Parts returns the triple materializing the tensor for storage: the local
// buffer, the global shape and the split axis, always in the canonical
// "each process owns a contiguous slice ordered by rank" layout.
func (t *Tensor) Parts() (local *ndbuffer.Buffer, global shapes.Shape, split Split) {
	return t.local, t.global, t.split
}

// Shape returns the global, logical shape of the tensor, identical on every process.
func (t *Tensor) Shape() shapes.Shape { return t.global }

// LocalShape returns the shape of the slice this process physically holds.
func (t *Tensor) LocalShape() shapes.Shape { return t.local.Shape() }

// LocalBuffer returns the buffer this process holds. Math-kernel
// collaborators use it, together with Split, to decide whether a reduction
// needs a cross-process combine step or is purely local.
func (t *Tensor) LocalBuffer() *ndbuffer.Buffer { return t.local }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.global.DType }

// Split returns the axis the tensor is partitioned along, or NoSplit.
func (t *Tensor) Split() Split { return t.split }

// Device returns the device tag of the local buffer.
func (t *Tensor) Device() DeviceNum { return t.device }

// SetDevice updates the device tag; it is preserved unchanged by Resplit.
func (t *Tensor) SetDevice(device DeviceNum) *Tensor {
	t.device = device
	return t
}

// Comm returns the group communicator handle shared by all tensors of this group.
func (t *Tensor) Comm() comm.Communicator { return t.comm }

// IsDistributed returns whether the tensor's data actually lives on more than
// one process: the group has more than one member and the tensor is split.
func (t *Tensor) IsDistributed() bool {
	return t.comm.Size() > 1 && t.split.IsAxis()
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(global=%s, split=%s, local=%s, rank=%d/%d)",
		t.global, t.split, t.local.Shape(), t.comm.Rank(), t.comm.Size())
}
