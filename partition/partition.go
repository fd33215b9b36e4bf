// Package partition computes how the extent of one axis of a global shape is
// divided among the processes of a group.
//
// The policy is an even division with the remainder going to the
// lowest-ranked processes: process r gets base+1 elements if r < remainder,
// else base, where base = extent / numProcs. This makes the partition table a
// pure function of (extent, numProcs): every process computes the identical
// full table locally, with no communication.
//
// Counts may be zero when there are more processes than elements; an empty
// local slice is a valid state, not an error.
package partition

import (
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/pkg/errors"
)

// ErrInvalidPartition is returned for malformed partition requests: a
// non-positive process count or a negative extent. It is always detected
// locally, before any collective call is issued.
var ErrInvalidPartition = errors.New("invalid partition")

// Counts returns the number of elements each process owns along an axis of
// the given global extent, ordered by rank.
//
// Invariants: the counts sum to extent, and max(counts)-min(counts) <= 1.
func Counts(extent, numProcs int) ([]int, error) {
	if numProcs <= 0 {
		return nil, errors.Wrapf(ErrInvalidPartition, "process count must be positive, got %d", numProcs)
	}
	if extent < 0 {
		return nil, errors.Wrapf(ErrInvalidPartition, "extent must be non-negative, got %d", extent)
	}
	base := extent / numProcs
	remainder := extent % numProcs
	counts := make([]int, numProcs)
	for rank := range counts {
		counts[rank] = base
		if rank < remainder {
			counts[rank]++
		}
	}
	return counts, nil
}

// CountsAndDispls returns the per-process counts along with their
// displacements: displs[r] == sum(counts[:r]), so displs[0] == 0 and the
// chunk owned by rank r spans [displs[r], displs[r]+counts[r]).
func CountsAndDispls(extent, numProcs int) (counts, displs []int, err error) {
	counts, err = Counts(extent, numProcs)
	if err != nil {
		return nil, nil, err
	}
	displs = Displacements(counts)
	return counts, displs, nil
}

// Displacements computes the exclusive prefix sum of counts.
func Displacements(counts []int) []int {
	displs := make([]int, len(counts))
	total := 0
	for r, count := range counts {
		displs[r] = total
		total += count
	}
	return displs
}

// Chunk computes, for a process of the given rank in a group of numProcs, the
// local shape of its slice of global along the split axis, together with the
// full per-process counts and displacements along that axis.
//
// The axis may be negative, counting from the end of the shape.
func Chunk(global shapes.Shape, axis, rank, numProcs int) (local shapes.Shape, counts, displs []int, err error) {
	axis, err = global.CheckAxis(axis)
	if err != nil {
		err = errors.Wrapf(ErrInvalidPartition, "%v", err)
		return
	}
	if rank < 0 || rank >= numProcs {
		err = errors.Wrapf(ErrInvalidPartition, "rank %d out of range for %d processes", rank, numProcs)
		return
	}
	counts, displs, err = CountsAndDispls(global.Dim(axis), numProcs)
	if err != nil {
		return
	}
	local = global.WithDim(axis, counts[rank])
	return
}
