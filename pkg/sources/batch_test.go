package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%03d", i)
	}
	return ids
}

// echoFetch returns every id mapped to itself.
func echoFetch(delays map[string]time.Duration) BatchFetchFunc[string] {
	return func(ctx context.Context, ids []string) (map[string]string, error) {
		if d, ok := delays[ids[0]]; ok {
			time.Sleep(d)
		}
		out := make(map[string]string, len(ids))
		for _, id := range ids {
			out[id] = id
		}
		return out, nil
	}
}

func TestEnrichRanked_PreservesRankOrder(t *testing.T) {
	ids := makeIDs(25)
	// First batch finishes last; order must still follow rank.
	delays := map[string]time.Duration{"id-000": 30 * time.Millisecond}

	out, err := EnrichRanked(context.Background(), ids, 10, 0, echoFetch(delays), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ids, out)
}

func TestEnrichRanked_LimitCapsBatchCount(t *testing.T) {
	ids := makeIDs(120)
	var calls atomic.Int32
	var mu sync.Mutex
	var seen []string

	fetch := func(ctx context.Context, batch []string) (map[string]string, error) {
		calls.Add(1)
		mu.Lock()
		seen = append(seen, batch...)
		mu.Unlock()
		out := make(map[string]string, len(batch))
		for _, id := range batch {
			out[id] = id
		}
		return out, nil
	}

	// 120 candidates with batch size 50 and limit 50: one whole batch is
	// enough, so exactly one call goes out.
	out, err := EnrichRanked(context.Background(), ids, 50, 50, fetch, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, seen, 50)
	assert.Equal(t, ids[:50], out)
}

func TestEnrichRanked_TruncatesAfterWholeBatches(t *testing.T) {
	ids := makeIDs(100)

	// Limit 60 needs two whole batches of 50; the merge is then cut to 60.
	out, err := EnrichRanked(context.Background(), ids, 50, 60, echoFetch(nil), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ids[:60], out)
}

func TestEnrichRanked_SkipsMissingIDs(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	fetch := func(ctx context.Context, batch []string) (map[string]string, error) {
		out := make(map[string]string)
		for _, id := range batch {
			if id == "b" {
				continue // malformed item, absent from the result
			}
			out[id] = id
		}
		return out, nil
	}

	out, err := EnrichRanked(context.Background(), ids, 2, 0, fetch, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, out)
}

func TestEnrichRanked_RefillsAfterSkips(t *testing.T) {
	ids := makeIDs(100)
	var calls atomic.Int32

	// The first batch drops its last 10 ids, so a second batch must go out
	// to fill the limit.
	fetch := func(ctx context.Context, batch []string) (map[string]string, error) {
		calls.Add(1)
		out := make(map[string]string, len(batch))
		for _, id := range batch {
			if id >= "id-040" && id < "id-050" {
				continue
			}
			out[id] = id
		}
		return out, nil
	}

	out, err := EnrichRanked(context.Background(), ids, 50, 50, fetch, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, out, 50)
	assert.Equal(t, ids[:40], out[:40])
	assert.Equal(t, ids[50:60], out[40:])
}

func TestEnrichRanked_ExhaustsCandidatesUnderLimit(t *testing.T) {
	ids := makeIDs(30)
	fetch := func(ctx context.Context, batch []string) (map[string]string, error) {
		out := make(map[string]string, len(batch))
		for _, id := range batch {
			if id == "id-005" {
				continue
			}
			out[id] = id
		}
		return out, nil
	}

	out, err := EnrichRanked(context.Background(), ids, 10, 50, fetch, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, out, 29, "all candidates consumed, limit not reachable")
}

func TestEnrichRanked_BatchErrorFailsRequest(t *testing.T) {
	ids := makeIDs(10)
	boom := errors.New("upstream exploded")
	fetch := func(ctx context.Context, batch []string) (map[string]string, error) {
		if batch[0] == "id-005" {
			return nil, boom
		}
		return map[string]string{}, nil
	}

	_, err := EnrichRanked(context.Background(), ids, 5, 0, fetch, zap.NewNop())
	assert.ErrorIs(t, err, boom)
}

func TestEnrichRanked_EmptyInput(t *testing.T) {
	out, err := EnrichRanked(context.Background(), nil, 50, 10, echoFetch(nil), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, out)
}
