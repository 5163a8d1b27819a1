package pipeline

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/jackzampolin/leaflet/internal/types"
)

// Batch processes documents through a shared-queue worker pool bounded
// by cfg.Pipeline.MaxConcurrentDocs. All workers pull from one queue,
// so load balances naturally. Each document's state is exclusively
// owned by the worker processing it; results come back in input order.
// Failed documents yield their partial result and the batch continues.
func (p *Processor) Batch(ctx context.Context, paths []string) []*types.DocumentResult {
	if len(paths) == 0 {
		return nil
	}

	workers := p.cfgSource.Get().Pipeline.MaxConcurrentDocs
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	results := make([]*types.DocumentResult, len(paths))
	queue := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				result, err := p.ProcessDocument(ctx, paths[idx])
				if err != nil {
					p.logger.Error("document failed",
						"file", paths[idx],
						"error", err)
				}
				results[idx] = result
			}
		}()
	}

	for idx := range paths {
		select {
		case queue <- idx:
		case <-ctx.Done():
			// Unqueued documents get a failed placeholder below.
			goto drain
		}
	}
drain:
	close(queue)
	wg.Wait()

	for idx, r := range results {
		if r == nil {
			results[idx] = &types.DocumentResult{
				SourcePath:     paths[idx],
				SourceFilename: filepath.Base(paths[idx]),
				Status:         types.StatusFailed,
				Error:          "batch cancelled before processing",
			}
		}
	}
	return results
}
