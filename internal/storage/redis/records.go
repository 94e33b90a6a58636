package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"holocron/internal/crawler"
)

// RecordStore persists completed records as JSON strings under
// <prefix>:data:<path>, where path is the URL with the crawl root stripped
// and slashes replaced by colons.
type RecordStore struct {
	client  *redis.Client
	rootURL string
	prefix  string
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore(client *redis.Client, prefix, rootURL string) *RecordStore {
	return &RecordStore{
		client:  client,
		rootURL: rootURL,
		prefix:  prefix + ":data:",
	}
}

func (s *RecordStore) key(url string) string {
	path := strings.TrimPrefix(url, s.rootURL)
	return s.prefix + strings.ReplaceAll(path, "/", ":")
}

// Save stores rec as its JSON envelope.
func (s *RecordStore) Save(ctx context.Context, rec crawler.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.URL, err)
	}
	if err := s.client.Set(ctx, s.key(rec.URL), payload, 0).Err(); err != nil {
		return fmt.Errorf("save record %s: %w", rec.URL, err)
	}
	return nil
}

// Each scans all stored records and invokes fn once per record. Records that
// fail to decode are skipped rather than aborting the enumeration.
func (s *RecordStore) Each(ctx context.Context, fn func(crawler.Record) error) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("get record %s: %w", iter.Val(), err)
		}
		var rec crawler.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	return nil
}

// Len counts stored records via key scan.
func (s *RecordStore) Len(ctx context.Context) (int64, error) {
	var n int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan records: %w", err)
	}
	return n, nil
}

// Reset deletes all stored records from a previous session.
func (s *RecordStore) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete record %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	return nil
}
