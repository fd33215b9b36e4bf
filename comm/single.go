package comm

import (
	"github.com/gomlx/dtensor/types/ndbuffer"
	"github.com/gomlx/dtensor/types/shapes"
)

// Single is the Communicator of a non-distributed execution: a group with one
// process, rank 0. Every collective degenerates to a local copy, but metadata
// is still validated so caller bugs surface the same way they would in a real
// group.
type Single struct{}

// NewSingle returns the Communicator for a one-process group.
func NewSingle() Single { return Single{} }

// Rank implements Communicator.
func (Single) Rank() int { return 0 }

// Size implements Communicator.
func (Single) Size() int { return 1 }

// AllGatherV implements Communicator. With a single process the "gathered"
// buffer is a copy of the local one.
func (Single) AllGatherV(local *ndbuffer.Buffer, global shapes.Shape, layout Layout) (*ndbuffer.Buffer, error) {
	return assembleGather(global, layout, []*ndbuffer.Buffer{local})
}

// AllToAllV implements Communicator. With a single process the exchange is a
// local reassembly.
func (Single) AllToAllV(local *ndbuffer.Buffer, send, recv Layout, result shapes.Shape) (*ndbuffer.Buffer, error) {
	return assembleAllToAll(0, send, recv, result, []*ndbuffer.Buffer{local})
}

var _ Communicator = Single{}
