// Package comm abstracts the group communication primitives used to
// redistribute a partitioned n-dimensional array: gather-to-all and all-to-all
// exchange, both variable-length and axis-aware, plus rank/size inquiry.
//
// A Communicator hides ranks and wire formats from the array layer. Every
// collective call is a group barrier: it must be issued by every process in
// the group with consistent metadata (global shape, dtype, partition counts)
// before any of them can proceed. Within one collective, assembly order is by
// rank: the chunk contributed by rank r always lands at its displacement along
// the target axis, which is what makes redistribution deterministic and
// order-preserving.
//
// Two adapters are provided: Single, for non-distributed execution (a group of
// one, where every collective degenerates to a local copy), and LocalGroup, an
// in-memory group of participants driven by goroutines, used both as a test
// harness and for single-binary multi-worker setups. LocalGroup cross-checks
// the metadata posted by every participant and fails all of them with
// ErrCommunication on any disagreement -- it never hangs on inconsistent
// metadata and never silently truncates.
package comm

import (
	"slices"

	"github.com/gomlx/dtensor/types/ndbuffer"
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/pkg/errors"
)

// ErrCommunication is returned when a collective call detects inconsistent
// metadata across the group (disagreeing shapes, dtypes or counts), or when
// the underlying transport fails. It is not recoverable within this layer:
// the group's collective state is no longer trustworthy for that array.
var ErrCommunication = errors.New("communication error")

// CollectiveType identifies a group communication primitive.
type CollectiveType int

//go:generate go tool enumer -type=CollectiveType -trimprefix=Collective -output=gen_collectivetype_enumer.go comm.go

const (
	CollectiveInvalid CollectiveType = iota
	CollectiveAllGatherV
	CollectiveAllToAllV
)

// Layout describes one side of a variable-length collective: the partition of
// an axis into per-rank chunks. Counts[r] is the number of elements rank r
// contributes (or receives) along Axis, and Displs[r] is where that chunk
// starts -- always sum(Counts[:r]), so chunks are contiguous and ordered by
// rank.
type Layout struct {
	Axis   int
	Counts []int
	Displs []int
}

// Equal reports whether two layouts describe the same partition.
func (l Layout) Equal(other Layout) bool {
	return l.Axis == other.Axis &&
		slices.Equal(l.Counts, other.Counts) &&
		slices.Equal(l.Displs, other.Displs)
}

// Total is the extent of the whole axis the layout partitions.
func (l Layout) Total() (total int) {
	for _, c := range l.Counts {
		total += c
	}
	return
}

// Communicator is the group communication handle shared by all distributed
// arrays created in the same process group. It is stateless except for its
// identity (rank and size), so it is safe to share freely.
type Communicator interface {
	// Rank of this process within the group, in [0, Size()).
	Rank() int

	// Size is the number of processes in the group.
	Size() int

	// AllGatherV assembles the full array from the per-rank chunks: every rank
	// contributes its local buffer, whose extent along layout.Axis must be
	// layout.Counts[Rank()], and every rank receives the complete buffer of
	// the given global shape, with rank r's chunk at layout.Displs[r].
	AllGatherV(local *ndbuffer.Buffer, global shapes.Shape, layout Layout) (*ndbuffer.Buffer, error)

	// AllToAllV is the general redistribution primitive: every rank
	// simultaneously sends a differently-sized slice of its local buffer to
	// every other rank and receives one from each, reassembling its new local
	// buffer of the given result shape.
	//
	// The slice sent by rank q to rank r is q's local buffer restricted to
	// [send.Displs[r], send.Displs[r]+send.Counts[r]) along send.Axis; at r it
	// is placed at recv.Displs[q] along recv.Axis. Both layouts must be
	// identical on every rank.
	AllToAllV(local *ndbuffer.Buffer, send, recv Layout, result shapes.Shape) (*ndbuffer.Buffer, error)
}
