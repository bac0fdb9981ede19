/*
Package workers sizes and runs bounded worker pools.

Go sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU still
reports the host. Count and its helpers derive pool sizes from GOMAXPROCS:

	n := workers.ForIO(16) // 2 per CPU, at most 16

The gallery uses I/O-sized pools to fan out Bluesky stats lookups for a page
of photos:

	err := workers.ForEach(ctx, workers.ForIO(8), len(refs), func(ctx context.Context, i int) error {
		results[i] = lookup(ctx, refs[i])
		return nil
	})

Set FOTOS_WORKERS to pin the pool size.
*/
package workers
