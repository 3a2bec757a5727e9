// Package worker provides a generic worker pool for concurrent processing of
// independent items, such as checking many MMIF files at once.
//
// A Pool runs a fixed number of goroutines that take items from a bounded
// queue. Submit never blocks: it fails with ErrQueueFull when the queue is
// at capacity, so callers size the queue to the batch they submit.
//
//	pool, err := worker.NewPool(4, len(files), func(ctx context.Context, i int) error {
//	    reports[i] = check(files[i])
//	    return nil
//	})
//	if err != nil {
//	    return err
//	}
//	_ = pool.Start(ctx)
//	for i := range files {
//	    _ = pool.Submit(i)
//	}
//	err = pool.Stop(0) // drains the queue, then returns
//
// Statistics are always tracked. Prometheus metrics are opt-in through
// WithMetrics:
//
//	mmif_worker_items_total{pool,status}
//	mmif_worker_duration_seconds{pool}
package worker
