package montecarlo

import (
	"context"
	"sync"
)

// WorkerPool runs simulation chunks on a fixed number of goroutines
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10 // Default to 10 workers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// Size returns the number of workers
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// chunkFunc simulates one chunk; chunks write to disjoint regions of the output
type chunkFunc func(ctx context.Context, c chunk) error

// chunk is a contiguous range of simulation paths with its own random stream
type chunk struct {
	index int // also the stream id
	start int
	count int
}

// resultItem represents the outcome of one chunk
type resultItem struct {
	index int
	err   error
}

// RunChunks executes every chunk and returns the first error by chunk order.
// Workers stop picking up chunks once ctx is cancelled.
func (wp *WorkerPool) RunChunks(ctx context.Context, chunks []chunk, fn chunkFunc) error {
	if len(chunks) == 0 {
		return nil
	}

	jobs := make(chan chunk, len(chunks))
	results := make(chan resultItem, len(chunks))

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if len(chunks) < numActualWorkers {
		numActualWorkers = len(chunks) // Don't spawn more workers than chunks
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, fn)
		}()
	}

	for _, c := range chunks {
		jobs <- c
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	errs := make([]error, len(chunks))
	for result := range results {
		errs[result.index] = result.err
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func worker(ctx context.Context, jobs <-chan chunk, results chan<- resultItem, fn chunkFunc) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- resultItem{index: job.index, err: err}
			continue
		}
		results <- resultItem{index: job.index, err: fn(ctx, job)}
	}
}

// splitChunks partitions n paths into chunks of at most size paths
func splitChunks(n, size int) []chunk {
	if size <= 0 {
		size = n
	}
	chunks := make([]chunk, 0, (n+size-1)/size)
	for start, idx := 0, 0; start < n; start, idx = start+size, idx+1 {
		count := size
		if start+count > n {
			count = n - start
		}
		chunks = append(chunks, chunk{index: idx, start: start, count: count})
	}
	return chunks
}
