package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"holocron/internal/crawler"
)

const root = "https://swapi.dev/api/"

func newTestFrontier(t *testing.T) (*Frontier, *crawler.Scorer) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	scorer := crawler.NewScorer(root)
	return NewFrontier(client, "holocron", scorer.Score), scorer
}

func TestEnqueueIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f, scorer := newTestFrontier(t)

	inserted, err := f.EnqueueIfAbsent(ctx, root+"people/1/", 0)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = f.EnqueueIfAbsent(ctx, root+"people/1/", 0)
	require.NoError(t, err)
	require.False(t, inserted, "re-enqueue of a pending URL is a no-op")
	require.EqualValues(t, 1, scorer.Sequence(), "duplicate enqueue must not consume a sequence value")
}

func TestEnqueueIfAbsentRefusesCompletedURL(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t)

	url := root + "people/2/"
	require.NoError(t, f.MarkCompleted(ctx, url))

	inserted, err := f.EnqueueIfAbsent(ctx, url, 1)
	require.NoError(t, err)
	require.False(t, inserted)

	counts, err := f.Counts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, counts.Pending)
}

func TestPopMinReturnsLowestScore(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t)

	urls := []string{
		root + "species/1/",
		root + "films/1/",
		root + "people/1/",
		root + "films/2/",
	}
	for _, u := range urls {
		_, err := f.EnqueueIfAbsent(ctx, u, 0)
		require.NoError(t, err)
	}

	var popped []crawler.FrontierItem
	for {
		item, ok, err := f.PopMin(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		popped = append(popped, item)
	}

	require.Len(t, popped, 4)
	for i := 1; i < len(popped); i++ {
		require.LessOrEqual(t, popped[i-1].Score, popped[i].Score)
	}
	require.Equal(t, root+"films/1/", popped[0].URL)
	require.Equal(t, root+"films/2/", popped[1].URL, "FIFO within the same type and depth")
	require.Equal(t, root+"species/1/", popped[3].URL)
}

func TestPopMinCarriesDepth(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t)

	_, err := f.EnqueueIfAbsent(ctx, root+"planets/3/", 2)
	require.NoError(t, err)

	item, ok, err := f.PopMin(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, root+"planets/3/", item.URL)
	require.Equal(t, 2, item.Depth)

	_, ok, err = f.PopMin(ctx)
	require.NoError(t, err)
	require.False(t, ok, "frontier is empty after the only item is popped")
}

func TestCountsAndReset(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t)

	_, err := f.EnqueueIfAbsent(ctx, root+"people/1/", 0)
	require.NoError(t, err)
	require.NoError(t, f.MarkCompleted(ctx, root+"people/2/"))
	require.NoError(t, f.MarkFailed(ctx, root+"people/3/"))

	counts, err := f.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, crawler.Counts{Pending: 1, Completed: 1, Failed: 1}, counts)

	require.NoError(t, f.Reset(ctx))
	counts, err = f.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, crawler.Counts{}, counts)
}
