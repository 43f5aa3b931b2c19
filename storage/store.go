package storage

import (
	"context"
	"errors"

	"github.com/luma/respd/protocol"
)

// ErrClosed is returned by every data operation once Close has been called.
var ErrClosed = errors.New("storage: store is closed")

// Store maps binary keys to binary values. Each method is atomic with respect
// to every other method on the same key.
type Store interface {
	// Get returns a copy of the value stored under key, ok is false when the
	// key is absent.
	Get(ctx context.Context, key protocol.BinaryString) (value protocol.BinaryString, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value protocol.BinaryString) error

	// Append appends value to the value under key, creating it when absent,
	// and returns the new length.
	Append(ctx context.Context, key, value protocol.BinaryString) (int, error)

	Exists(ctx context.Context, key protocol.BinaryString) (bool, error)

	// Keys returns a copy of every key. The order is unspecified.
	Keys(ctx context.Context) ([]protocol.BinaryString, error)

	// Len returns the number of keys.
	Len() int

	Restore(values []byte) error
	Backup() ([]byte, error)

	Close() error
}

// New returns an InmemoryStore when shards is 1 or less and a ShardedStore
// with that many shards otherwise.
func New(shards int) Store {
	if shards <= 1 {
		return NewInmemoryStore()
	}

	return NewShardedStore(shards)
}
