package comm

import (
	"golang.org/x/sync/errgroup"
)

// Run creates a fresh in-memory group of the given size and calls fn once per
// rank, each on its own goroutine, waiting for all of them to finish. It
// returns the first non-nil error returned by any participant.
//
// fn must issue the same sequence of collective calls on every rank --
// collectives are group barriers, so a rank that skips one would block the
// others. Metadata disagreements, on the other hand, are detected and
// reported on every rank rather than deadlocking.
func Run(size int, fn func(c Communicator) error) error {
	comms, err := NewLocalGroup(size)
	if err != nil {
		return err
	}
	var group errgroup.Group
	for _, c := range comms {
		group.Go(func() error {
			return fn(c)
		})
	}
	return group.Wait()
}
