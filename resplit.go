package dtensor

import (
	"github.com/pkg/errors"

	"github.com/gomlx/dtensor/comm"
	"github.com/gomlx/dtensor/partition"
)

// Resplit redistributes the content of the tensor in place: it gathers
// ("unsplits") all values onto every process when newSplit is NoSplit, or
// establishes a new split axis without changing any values.
//
// Four cases, selected by comparing the current and the new split:
//
//  1. newSplit equals the current split: identity, no communication.
//  2. newSplit is NoSplit: the per-process chunks are gathered onto every
//     process with a variable-length gather-to-all.
//  3. The tensor is currently unsplit: every process already holds the full
//     data, so it just slices out its share locally -- no communication.
//  4. Both axes are real and distinct: a variable-length all-to-all exchange
//     moves exactly the data that changes owner.
//
// The new local buffer is fully built before any field is updated, so the
// tensor is never observable in a half-migrated state: Resplit either fully
// succeeds (new layout established on every process) or returns an error
// with the tensor unchanged.
//
// It returns the tensor to allow chaining. Resplit can involve significant
// communication; use it sparingly and preferably for small tensors.
func (t *Tensor) Resplit(newSplit Split) (*Tensor, error) {
	if newSplit.IsAxis() && (newSplit < NoSplit || int(newSplit) >= t.global.Rank()) {
		return nil, errors.Wrapf(partition.ErrInvalidPartition,
			"resplit axis %s out-of-range for shape %s", newSplit, t.global)
	}

	// Early out for unchanged layout.
	if newSplit == t.split {
		return t, nil
	}

	rank, size := t.comm.Rank(), t.comm.Size()
	switch {
	case !newSplit.IsAxis():
		// Unsplit: gather the chunks of the current layout onto every process.
		counts, displs, err := partition.CountsAndDispls(t.global.Dim(int(t.split)), size)
		if err != nil {
			return nil, err
		}
		gathered, err := t.comm.AllGatherV(t.local, t.global, comm.Layout{
			Axis:   int(t.split),
			Counts: counts,
			Displs: displs,
		})
		if err != nil {
			return nil, err
		}
		t.local, t.split = gathered, NoSplit

	case !t.split.IsAxis():
		// Currently replicated: slice the local full copy, no communication.
		_, counts, displs, err := partition.Chunk(t.global, int(newSplit), rank, size)
		if err != nil {
			return nil, err
		}
		start := displs[rank]
		sliced, err := t.local.Slice(int(newSplit), start, start+counts[rank])
		if err != nil {
			return nil, err
		}
		t.local, t.split = sliced, newSplit

	default:
		// Entirely new split axis: redistribute with an all-to-all exchange.
		// The send side partitions the new axis (who will own what), the
		// receive side partitions the old axis (who currently owns what).
		sendCounts, sendDispls, err := partition.CountsAndDispls(t.global.Dim(int(newSplit)), size)
		if err != nil {
			return nil, err
		}
		recvCounts, recvDispls, err := partition.CountsAndDispls(t.global.Dim(int(t.split)), size)
		if err != nil {
			return nil, err
		}
		result := t.global.WithDim(int(newSplit), sendCounts[rank])
		redistributed, err := t.comm.AllToAllV(t.local,
			comm.Layout{Axis: int(newSplit), Counts: sendCounts, Displs: sendDispls},
			comm.Layout{Axis: int(t.split), Counts: recvCounts, Displs: recvDispls},
			result)
		if err != nil {
			return nil, err
		}
		t.local, t.split = redistributed, newSplit
	}
	return t, nil
}
