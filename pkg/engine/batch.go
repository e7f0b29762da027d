package engine

import (
	"context"
	"sync"
)

// DefaultParallel is the worker count used by RunBatch when none is given.
const DefaultParallel = 4

// BatchResult is the outcome of one component of a batch.
type BatchResult struct {
	Component string
	Result    *Result
	Err       error
}

// RunBatch runs script once per component, each in its own session, using
// at most parallel workers. Results are returned in component order. A
// failing component does not stop the others; cancelling ctx does.
func (r *Runner) RunBatch(ctx context.Context, script Script, vehicle string, components []string, parallel int) []BatchResult {
	results := make([]BatchResult, len(components))
	if len(components) == 0 {
		return results
	}

	workerCount := parallel
	if workerCount <= 0 {
		workerCount = DefaultParallel
	}
	if len(components) < workerCount {
		workerCount = len(components)
	}

	workQueue := make(chan int, len(components))
	for i := range components {
		workQueue <- i
	}
	close(workQueue)

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range workQueue {
				component := components[i]
				if err := ctx.Err(); err != nil {
					results[i] = BatchResult{
						Component: component,
						Err:       newError(ErrorKindEngineInit, "run cancelled before start", err).WithScript(script.Name()),
					}
					continue
				}
				res, err := r.Run(ctx, script, vehicle, component)
				results[i] = BatchResult{Component: component, Result: res, Err: err}
			}
		}()
	}

	wg.Wait()
	r.logger.Debugf("Batch of %d components completed with %d workers", len(components), workerCount)

	return results
}
