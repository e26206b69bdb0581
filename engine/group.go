package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunGroup runs every actor on its own goroutine and waits for all of them.
// The first failure cancels the context handed to the others and is the
// error returned.
func RunGroup(ctx context.Context, actors ...*Actor) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range actors {
		g.Go(func() error {
			return a.Run(gctx)
		})
	}
	return g.Wait()
}
