package sources

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// BatchFetchFunc fetches detail records for one batch of ids. Ids that fail
// enrichment individually are simply absent from the returned map; an error
// return means the whole batch call failed.
type BatchFetchFunc[R any] func(ctx context.Context, ids []string) (map[string]R, error)

// EnrichRanked enriches a ranked candidate id list in fixed-size batches.
//
// Invariants:
//   - Output order equals the input rank order regardless of batch
//     completion timing - batches within a wave run concurrently but
//     results are merged by rank, never by completion.
//   - When limit > 0, only as many whole batches are issued per wave as a
//     full yield would need; when skipped ids under-fill a wave, further
//     waves go out until the limit is met or candidates run out.
//     Truncation to the limit happens only after merging whole batches.
//   - Ids missing from a batch result are skipped with a warning; they do
//     not fail the batch or the request.
func EnrichRanked[R any](ctx context.Context, ids []string, batchSize, limit int, fetch BatchFetchFunc[R], logger *zap.Logger) ([]R, error) {
	if len(ids) == 0 {
		return []R{}, nil
	}
	if batchSize <= 0 {
		batchSize = len(ids)
	}

	batches := partition(ids, batchSize)
	merged := make([]R, 0, len(ids))
	next := 0

	for next < len(batches) {
		take := len(batches) - next
		if limit > 0 {
			wanted := (limit - len(merged) + batchSize - 1) / batchSize
			if wanted < take {
				take = wanted
			}
		}
		wave := batches[next : next+take]
		next += take

		results := make([]map[string]R, len(wave))
		errs := make([]error, len(wave))

		var wg sync.WaitGroup
		for i, batch := range wave {
			wg.Add(1)
			go func(i int, batch []string) {
				defer wg.Done()
				results[i], errs[i] = fetch(ctx, batch)
			}(i, batch)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}

		// Merge in the original rank order.
		for i, batch := range wave {
			for _, id := range batch {
				r, ok := results[i][id]
				if !ok {
					logger.Warn("Skipping item missing from batch result", zap.String("id", id))
					continue
				}
				merged = append(merged, r)
			}
		}

		if limit > 0 && len(merged) >= limit {
			break
		}
	}

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func partition(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
