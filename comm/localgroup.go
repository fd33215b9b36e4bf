package comm

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/dtensor/types/ndbuffer"
	"github.com/gomlx/dtensor/types/shapes"
)

// LocalGroup is an in-memory process group: its participants are goroutines
// within one binary rather than separate OS processes, but they observe the
// exact collective semantics of this package -- every collective is a rendezvous of
// all participants, assembly is ordered by rank, and metadata is cross-checked
// before any data moves.
//
// Participants that post inconsistent metadata (different global shapes,
// dtypes or counts) all receive an ErrCommunication: a collective never hangs
// on a metadata disagreement and never partially completes.
//
// LocalGroup is the multi-participant test harness for the layout logic, and
// also serves single-binary multi-worker setups.
type LocalGroup struct {
	id   uuid.UUID
	size int

	mu      sync.Mutex
	current *collectiveOp
}

// localComm is the per-rank Communicator view of a LocalGroup.
type localComm struct {
	group *LocalGroup
	rank  int
}

// collectiveOp is one in-flight collective rendezvous. It is created by the
// first participant to arrive and completed by the last one, which validates
// the posted metadata for the whole group.
type collectiveOp struct {
	contribs []*contribution
	pending  int
	done     chan struct{}
	err      error
}

// contribution is what one participant posts into a rendezvous.
type contribution struct {
	kind   CollectiveType
	local  *ndbuffer.Buffer
	global shapes.Shape // Global shape (AllGatherV) or result shape (AllToAllV).
	send   Layout
	recv   Layout
}

// groupShape is the shape all participants must agree on. For AllGatherV that
// is the posted global shape itself; for AllToAllV each rank posts its own
// result shape, which differs along the send axis, so the shape is normalized
// back to the full extent of that axis before comparing.
func (contrib *contribution) groupShape() shapes.Shape {
	if contrib.kind != CollectiveAllToAllV {
		return contrib.global
	}
	if contrib.send.Axis < 0 || contrib.send.Axis >= contrib.global.Rank() {
		return contrib.global
	}
	return contrib.global.WithDim(contrib.send.Axis, contrib.send.Total())
}

// NewLocalGroup creates an in-memory group of the given size and returns one
// Communicator per rank, ordered by rank.
func NewLocalGroup(size int) ([]Communicator, error) {
	if size <= 0 {
		return nil, errors.Errorf("LocalGroup size must be positive, got %d", size)
	}
	g := &LocalGroup{id: uuid.New(), size: size}
	comms := make([]Communicator, size)
	for rank := range comms {
		comms[rank] = &localComm{group: g, rank: rank}
	}
	return comms, nil
}

// Rank implements Communicator.
func (c *localComm) Rank() int { return c.rank }

// Size implements Communicator.
func (c *localComm) Size() int { return c.group.size }

// AllGatherV implements Communicator.
func (c *localComm) AllGatherV(local *ndbuffer.Buffer, global shapes.Shape, layout Layout) (*ndbuffer.Buffer, error) {
	klog.V(2).Infof("group %s: rank %d/%d enters AllGatherV(global=%s, axis=%d)",
		c.group.id, c.rank, c.group.size, global, layout.Axis)
	op, err := c.group.rendezvous(c.rank, &contribution{
		kind:   CollectiveAllGatherV,
		local:  local,
		global: global,
		recv:   layout,
	})
	if err != nil {
		return nil, err
	}
	locals := make([]*ndbuffer.Buffer, c.group.size)
	for r, contrib := range op.contribs {
		locals[r] = contrib.local
	}
	return assembleGather(global, layout, locals)
}

// AllToAllV implements Communicator.
func (c *localComm) AllToAllV(local *ndbuffer.Buffer, send, recv Layout, result shapes.Shape) (*ndbuffer.Buffer, error) {
	klog.V(2).Infof("group %s: rank %d/%d enters AllToAllV(result=%s, sendAxis=%d, recvAxis=%d)",
		c.group.id, c.rank, c.group.size, result, send.Axis, recv.Axis)
	op, err := c.group.rendezvous(c.rank, &contribution{
		kind:   CollectiveAllToAllV,
		local:  local,
		global: result,
		send:   send,
		recv:   recv,
	})
	if err != nil {
		return nil, err
	}
	locals := make([]*ndbuffer.Buffer, c.group.size)
	for r, contrib := range op.contribs {
		locals[r] = contrib.local
	}
	return assembleAllToAll(c.rank, send, recv, result, locals)
}

// rendezvous blocks until every rank of the group has posted a contribution
// to the current collective. The last participant to arrive validates the
// group's metadata; on disagreement every participant receives the error.
//
// The returned op's contributions are immutable once the rendezvous
// completes, so each participant can assemble its own result from them
// without further synchronization.
func (g *LocalGroup) rendezvous(rank int, contrib *contribution) (*collectiveOp, error) {
	g.mu.Lock()
	op := g.current
	if op == nil {
		op = &collectiveOp{
			contribs: make([]*contribution, g.size),
			pending:  g.size,
			done:     make(chan struct{}),
		}
		g.current = op
	}
	if op.contribs[rank] != nil {
		g.mu.Unlock()
		return nil, errors.Wrapf(ErrCommunication,
			"group %s: rank %d entered the same collective twice -- some other rank must have skipped its call",
			g.id, rank)
	}
	op.contribs[rank] = contrib
	op.pending--
	if op.pending > 0 {
		g.mu.Unlock()
		<-op.done
		return op, op.err
	}

	// Last to arrive: validate, clear the slot for the next collective, wake everyone.
	op.err = g.validate(op)
	g.current = nil
	close(op.done)
	g.mu.Unlock()
	if op.err != nil {
		klog.Warningf("group %s: collective aborted: %v", g.id, op.err)
	}
	return op, op.err
}

// validate cross-checks the metadata posted by every participant. Called with
// g.mu held by the last participant to arrive.
func (g *LocalGroup) validate(op *collectiveOp) error {
	first := op.contribs[0]
	for r, contrib := range op.contribs[1:] {
		rank := r + 1
		if contrib.kind != first.kind {
			return errors.Wrapf(ErrCommunication,
				"group %s: rank 0 called %s but rank %d called %s",
				g.id, first.kind, rank, contrib.kind)
		}
		if !contrib.groupShape().Equal(first.groupShape()) {
			return errors.Wrapf(ErrCommunication,
				"group %s: %s metadata disagreement: rank 0 posted shape %s but rank %d posted %s",
				g.id, first.kind, first.groupShape(), rank, contrib.groupShape())
		}
		if !contrib.send.Equal(first.send) || !contrib.recv.Equal(first.recv) {
			return errors.Wrapf(ErrCommunication,
				"group %s: %s layout disagreement between rank 0 and rank %d",
				g.id, first.kind, rank)
		}
		if contrib.local.DType() != first.local.DType() {
			return errors.Wrapf(ErrCommunication,
				"group %s: %s dtype disagreement: rank 0 posted %s but rank %d posted %s",
				g.id, first.kind, first.local.DType(), rank, contrib.local.DType())
		}
	}
	return nil
}
