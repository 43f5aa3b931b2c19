package storage

import (
	"context"
	"sort"

	"github.com/spaolacci/murmur3"
	"go.uber.org/multierr"

	"github.com/luma/respd/protocol"
)

// ShardedStore spreads keys over several InmemoryStores by the MurmurHash3 of
// the key, so that operations on keys in different shards do not contend for
// the same lock.
type ShardedStore struct {
	shards []*InmemoryStore
}

func NewShardedStore(n int) *ShardedStore {
	if n < 1 {
		n = 1
	}

	shards := make([]*InmemoryStore, n)
	for i := range shards {
		shards[i] = NewInmemoryStore()
	}

	return &ShardedStore{shards: shards}
}

// NumShards returns the number of shards keys are spread over.
func (s *ShardedStore) NumShards() int {
	return len(s.shards)
}

func (s *ShardedStore) shardFor(key protocol.BinaryString) *InmemoryStore {
	return s.shards[murmur3.Sum32(key)%uint32(len(s.shards))]
}

func (s *ShardedStore) Get(ctx context.Context, key protocol.BinaryString) (protocol.BinaryString, bool, error) {
	return s.shardFor(key).Get(ctx, key)
}

func (s *ShardedStore) Set(ctx context.Context, key, value protocol.BinaryString) error {
	return s.shardFor(key).Set(ctx, key, value)
}

func (s *ShardedStore) Append(ctx context.Context, key, value protocol.BinaryString) (int, error) {
	return s.shardFor(key).Append(ctx, key, value)
}

func (s *ShardedStore) Exists(ctx context.Context, key protocol.BinaryString) (bool, error) {
	return s.shardFor(key).Exists(ctx, key)
}

// Keys walks the shards one at a time, it is not a snapshot of the whole
// store.
func (s *ShardedStore) Keys(ctx context.Context) ([]protocol.BinaryString, error) {
	var keys []protocol.BinaryString

	for _, shard := range s.shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		shardKeys, err := shard.Keys(ctx)
		if err != nil {
			return nil, err
		}

		keys = append(keys, shardKeys...)
	}

	return keys, nil
}

func (s *ShardedStore) Len() int {
	n := 0
	for _, shard := range s.shards {
		n += shard.Len()
	}

	return n
}

func (s *ShardedStore) Restore(values []byte) error {
	if !s.isRunning() {
		return ErrClosed
	}

	entries, err := decodeBackup(values)
	if err != nil {
		return err
	}

	restored := make([]map[string]protocol.BinaryString, len(s.shards))
	for i := range restored {
		restored[i] = make(map[string]protocol.BinaryString)
	}

	for _, e := range entries {
		idx := murmur3.Sum32(e.key) % uint32(len(s.shards))
		restored[idx][string(e.key)] = e.value
	}

	for i, shard := range s.shards {
		shard.mu.Lock()
		shard.values = restored[i]
		shard.mu.Unlock()
	}

	return nil
}

func (s *ShardedStore) Backup() ([]byte, error) {
	if !s.isRunning() {
		return nil, ErrClosed
	}

	var entries []entry
	for _, shard := range s.shards {
		entries = append(entries, shard.entries()...)
	}

	sort.Slice(entries, func(a, b int) bool {
		return string(entries[a].key) < string(entries[b].key)
	})

	return encodeBackup(entries)
}

// isRunning returns true while every shard is open.
func (s *ShardedStore) isRunning() bool {
	for _, shard := range s.shards {
		if !shard.isRunning() {
			return false
		}
	}

	return true
}

func (s *ShardedStore) Close() (err error) {
	for _, shard := range s.shards {
		err = multierr.Append(err, shard.Close())
	}

	return err
}

var _ Store = (*ShardedStore)(nil)
