// Package redis provides Redis-backed frontier and record store
// implementations. The pending queue is a sorted set, the dedup sets are
// plain sets, and per-URL depth lives in a hash beside the queue.
package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"holocron/internal/crawler"
)

// enqueueScript performs the check-then-insert atomically: refuse URLs that
// are already completed or already pending, otherwise add them to the sorted
// set and remember their depth.
// KEYS: pending zset, completed set, depth hash. ARGV: url, score, depth.
var enqueueScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
  return 0
end
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
return 1
`)

// popScript pops the lowest-score member and claims its depth in the same
// round trip. KEYS: pending zset, depth hash.
var popScript = redis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1], 1)
if #popped == 0 then
  return false
end
local depth = redis.call('HGET', KEYS[2], popped[1])
redis.call('HDEL', KEYS[2], popped[1])
return {popped[1], popped[2], depth}
`)

// Frontier is the Redis-backed priority frontier.
type Frontier struct {
	client *redis.Client
	score  crawler.ScoreFunc
	keys   keySet
}

type keySet struct {
	pending   string
	completed string
	failed    string
	depth     string
}

func newKeySet(prefix string) keySet {
	return keySet{
		pending:   prefix + ":pending",
		completed: prefix + ":completed",
		failed:    prefix + ":failed",
		depth:     prefix + ":depth",
	}
}

// NewFrontier constructs a Frontier over client using prefix for all keys.
// score is invoked once per URL that passes the pre-check; the Lua script
// re-checks membership, so a lost race burns at most one sequence value.
func NewFrontier(client *redis.Client, prefix string, score crawler.ScoreFunc) *Frontier {
	return &Frontier{
		client: client,
		score:  score,
		keys:   newKeySet(prefix),
	}
}

// EnqueueIfAbsent inserts url at depth unless already pending or completed.
func (f *Frontier) EnqueueIfAbsent(ctx context.Context, url string, depth int) (bool, error) {
	// Cheap pre-check so the shared sequence counter is only consumed for
	// URLs that will actually be inserted.
	completed, err := f.IsCompleted(ctx, url)
	if err != nil {
		return false, err
	}
	if completed {
		return false, nil
	}
	if _, err := f.client.ZScore(ctx, f.keys.pending, url).Result(); err == nil {
		return false, nil
	} else if err != redis.Nil {
		return false, fmt.Errorf("pending check: %w", err)
	}

	score := f.score(url, depth)
	added, err := enqueueScript.Run(ctx, f.client,
		[]string{f.keys.pending, f.keys.completed, f.keys.depth},
		url, score, depth,
	).Int()
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", url, err)
	}
	return added == 1, nil
}

// PopMin atomically removes and returns the lowest-score item.
func (f *Frontier) PopMin(ctx context.Context) (crawler.FrontierItem, bool, error) {
	res, err := popScript.Run(ctx, f.client, []string{f.keys.pending, f.keys.depth}).Result()
	if err == redis.Nil {
		return crawler.FrontierItem{}, false, nil
	}
	if err != nil {
		return crawler.FrontierItem{}, false, fmt.Errorf("pop: %w", err)
	}

	fields, ok := res.([]interface{})
	if !ok || len(fields) < 2 {
		return crawler.FrontierItem{}, false, fmt.Errorf("pop: unexpected reply %v", res)
	}
	item := crawler.FrontierItem{URL: fmt.Sprint(fields[0])}
	if item.Score, err = strconv.ParseFloat(fmt.Sprint(fields[1]), 64); err != nil {
		return crawler.FrontierItem{}, false, fmt.Errorf("pop: parse score: %w", err)
	}
	if len(fields) > 2 && fields[2] != nil {
		if item.Depth, err = strconv.Atoi(fmt.Sprint(fields[2])); err != nil {
			return crawler.FrontierItem{}, false, fmt.Errorf("pop: parse depth: %w", err)
		}
	}
	return item, true, nil
}

// MarkCompleted adds url to the completed set. Idempotent.
func (f *Frontier) MarkCompleted(ctx context.Context, url string) error {
	if err := f.client.SAdd(ctx, f.keys.completed, url).Err(); err != nil {
		return fmt.Errorf("mark completed %s: %w", url, err)
	}
	return nil
}

// MarkFailed adds url to the failed set. Idempotent.
func (f *Frontier) MarkFailed(ctx context.Context, url string) error {
	if err := f.client.SAdd(ctx, f.keys.failed, url).Err(); err != nil {
		return fmt.Errorf("mark failed %s: %w", url, err)
	}
	return nil
}

// IsCompleted reports completed-set membership.
func (f *Frontier) IsCompleted(ctx context.Context, url string) (bool, error) {
	done, err := f.client.SIsMember(ctx, f.keys.completed, url).Result()
	if err != nil {
		return false, fmt.Errorf("completed check: %w", err)
	}
	return done, nil
}

// Counts returns pending/completed/failed cardinalities.
func (f *Frontier) Counts(ctx context.Context) (crawler.Counts, error) {
	pipe := f.client.Pipeline()
	pending := pipe.ZCard(ctx, f.keys.pending)
	completed := pipe.SCard(ctx, f.keys.completed)
	failed := pipe.SCard(ctx, f.keys.failed)
	if _, err := pipe.Exec(ctx); err != nil {
		return crawler.Counts{}, fmt.Errorf("counts: %w", err)
	}
	return crawler.Counts{
		Pending:   pending.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

// Reset deletes all frontier keys from a previous session.
func (f *Frontier) Reset(ctx context.Context) error {
	err := f.client.Del(ctx,
		f.keys.pending,
		f.keys.completed,
		f.keys.failed,
		f.keys.depth,
	).Err()
	if err != nil {
		return fmt.Errorf("reset frontier: %w", err)
	}
	return nil
}
