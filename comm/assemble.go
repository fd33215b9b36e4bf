package comm

import (
	"github.com/gomlx/dtensor/types/ndbuffer"
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/pkg/errors"
)

// validateLayout checks the internal consistency of a layout for a group of
// the given size: one count per rank, non-negative counts, displacements the
// exclusive prefix sum of the counts.
func validateLayout(kind CollectiveType, l Layout, size int) error {
	if len(l.Counts) != size || len(l.Displs) != size {
		return errors.Wrapf(ErrCommunication,
			"%s: layout has %d counts and %d displacements for a group of %d processes",
			kind, len(l.Counts), len(l.Displs), size)
	}
	prefix := 0
	for r, count := range l.Counts {
		if count < 0 {
			return errors.Wrapf(ErrCommunication, "%s: negative count %d for rank %d", kind, count, r)
		}
		if l.Displs[r] != prefix {
			return errors.Wrapf(ErrCommunication,
				"%s: displacement for rank %d is %d, want %d (sum of preceding counts)",
				kind, r, l.Displs[r], prefix)
		}
		prefix += count
	}
	return nil
}

// assembleGather builds the full buffer of the given global shape from the
// per-rank chunks, each placed at its displacement along layout.Axis. locals
// is indexed by rank.
func assembleGather(global shapes.Shape, layout Layout, locals []*ndbuffer.Buffer) (*ndbuffer.Buffer, error) {
	if err := validateLayout(CollectiveAllGatherV, layout, len(locals)); err != nil {
		return nil, err
	}
	if layout.Axis < 0 || layout.Axis >= global.Rank() {
		return nil, errors.Wrapf(ErrCommunication, "AllGatherV: axis %d out-of-range for global shape %s",
			layout.Axis, global)
	}
	if layout.Total() != global.Dim(layout.Axis) {
		return nil, errors.Wrapf(ErrCommunication,
			"AllGatherV: counts sum to %d but global shape %s has %d elements along axis %d",
			layout.Total(), global, global.Dim(layout.Axis), layout.Axis)
	}
	for r, local := range locals {
		want := global.WithDim(layout.Axis, layout.Counts[r])
		if !local.Shape().Equal(want) {
			return nil, errors.Wrapf(ErrCommunication,
				"AllGatherV: rank %d contributed shape %s, want %s", r, local.Shape(), want)
		}
	}

	full := ndbuffer.FromShape(global)
	for r, local := range locals {
		if err := full.CopyRangeFrom(local, layout.Axis, layout.Displs[r]); err != nil {
			return nil, errors.Wrapf(ErrCommunication, "AllGatherV: placing chunk of rank %d: %v", r, err)
		}
	}
	return full, nil
}

// assembleAllToAll builds the new local buffer of rank me: for every rank q it
// takes the slice of q's buffer destined to me along send.Axis and places it
// at q's displacement along recv.Axis.
func assembleAllToAll(me int, send, recv Layout, result shapes.Shape, locals []*ndbuffer.Buffer) (*ndbuffer.Buffer, error) {
	size := len(locals)
	if err := validateLayout(CollectiveAllToAllV, send, size); err != nil {
		return nil, err
	}
	if err := validateLayout(CollectiveAllToAllV, recv, size); err != nil {
		return nil, err
	}
	if result.Dim(send.Axis) != send.Counts[me] {
		return nil, errors.Wrapf(ErrCommunication,
			"AllToAllV: result shape %s has %d elements along send axis %d, want %d (this rank's share)",
			result, result.Dim(send.Axis), send.Axis, send.Counts[me])
	}
	if result.Dim(recv.Axis) != recv.Total() {
		return nil, errors.Wrapf(ErrCommunication,
			"AllToAllV: result shape %s has %d elements along receive axis %d, want %d (whole axis)",
			result, result.Dim(recv.Axis), recv.Axis, recv.Total())
	}
	for q, local := range locals {
		if local.Dim(send.Axis) != send.Total() {
			return nil, errors.Wrapf(ErrCommunication,
				"AllToAllV: rank %d holds %d elements along send axis %d, want the whole axis (%d)",
				q, local.Dim(send.Axis), send.Axis, send.Total())
		}
		if local.Dim(recv.Axis) != recv.Counts[q] {
			return nil, errors.Wrapf(ErrCommunication,
				"AllToAllV: rank %d holds %d elements along receive axis %d, want %d",
				q, local.Dim(recv.Axis), recv.Axis, recv.Counts[q])
		}
	}

	full := ndbuffer.FromShape(result)
	for q, local := range locals {
		chunk, err := local.Slice(send.Axis, send.Displs[me], send.Displs[me]+send.Counts[me])
		if err != nil {
			return nil, errors.Wrapf(ErrCommunication, "AllToAllV: slicing chunk of rank %d: %v", q, err)
		}
		if err := full.CopyRangeFrom(chunk, recv.Axis, recv.Displs[q]); err != nil {
			return nil, errors.Wrapf(ErrCommunication, "AllToAllV: placing chunk of rank %d: %v", q, err)
		}
	}
	return full, nil
}
