package route

import (
	"container/heap"
	"context"

	"golang.org/x/sync/errgroup"

	"galnav/internal/graph"
)

// runBatched pops up to Workers frontier nodes per round and fetches their
// neighbors concurrently. Only the oracle calls run in parallel; every
// open/closed-set mutation happens here, on the calling goroutine, in pop
// order, so a node is still expanded at most once.
//
// Nodes popped in the same round are closed before their batch-mates'
// neighbors are known, so a batch can miss a relaxation the sequential
// search would have found. Routes stay valid; they may be a jump longer.
func (s *search[T]) runBatched(ctx context.Context) (Route[T], bool, error) {
	workers := s.opts.Workers
	batch := make([]*frontierItem, 0, workers)
	centers := make([]graph.Position, 0, workers)

	for s.open.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return s.partial(), false, err
		}

		batch, centers = batch[:0], centers[:0]
		for len(batch) < workers && s.open.Len() > 0 {
			item := s.pop()
			if s.closed[item.addr] {
				continue
			}
			if item.addr == s.goal {
				if len(batch) == 0 {
					return s.build(item.g), true, nil
				}
				// Expand what came before it first; the goal is popped again next round.
				s.requeue(item)
				break
			}
			if s.limitReached() {
				if len(batch) == 0 {
					r := s.partial()
					r.Truncated = true
					return r, false, nil
				}
				s.requeue(item)
				break
			}
			s.closed[item.addr] = true
			s.expanded++
			batch = append(batch, item)
			centers = append(centers, s.nodes[item.addr].Position())
		}
		if len(batch) == 0 {
			continue
		}

		results := make([][]T, len(batch))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for i := range batch {
			center := centers[i]
			eg.Go(func() error {
				got, err := query(egCtx, s.oracle, center, s.jumpRange)
				if err != nil {
					return err
				}
				results[i] = got
				return nil
			})
		}
		s.calls += len(batch)
		if err := eg.Wait(); err != nil {
			return s.partial(), false, err
		}

		for i, item := range batch {
			s.relax(item, results[i])
		}
	}
	return s.partial(), false, nil
}

// requeue returns a popped item to the open set with its original
// insertion order, so ties still break the same way.
func (s *search[T]) requeue(item *frontierItem) {
	heap.Push(&s.open, item)
	s.openIdx[item.addr] = item
}
