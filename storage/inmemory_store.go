package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/luma/respd/protocol"
)

// InmemoryStore keeps every key in one map behind one lock.
type InmemoryStore struct {
	mu     sync.Mutex
	values map[string]protocol.BinaryString

	// stop will be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: make(map[string]protocol.BinaryString),
		stop:   make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.stopOnce.Do(func() {
		close(i.stop)
	})

	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, key protocol.BinaryString) (protocol.BinaryString, bool, error) {
	if err := i.check(ctx); err != nil {
		return nil, false, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	value, ok := i.values[string(key)]
	if !ok {
		return nil, false, nil
	}

	// The caller may hold on to the result after the lock is released and
	// an APPEND writes into the stored slice.
	return value.Clone(), true, nil
}

func (i *InmemoryStore) Set(ctx context.Context, key, value protocol.BinaryString) error {
	if err := i.check(ctx); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values[string(key)] = value.Clone()
	return nil
}

func (i *InmemoryStore) Append(ctx context.Context, key, value protocol.BinaryString) (int, error) {
	if err := i.check(ctx); err != nil {
		return 0, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	current := i.values[string(key)]
	n := current.Append(value)
	i.values[string(key)] = current

	return n, nil
}

func (i *InmemoryStore) Exists(ctx context.Context, key protocol.BinaryString) (bool, error) {
	if err := i.check(ctx); err != nil {
		return false, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	_, ok := i.values[string(key)]
	return ok, nil
}

func (i *InmemoryStore) Keys(ctx context.Context) ([]protocol.BinaryString, error) {
	if err := i.check(ctx); err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	keys := make([]protocol.BinaryString, 0, len(i.values))
	for key := range i.values {
		keys = append(keys, protocol.BinaryString(key))
	}

	return keys, nil
}

func (i *InmemoryStore) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return len(i.values)
}

// Restore replaces the contents of the store with a document produced by
// Backup.
func (i *InmemoryStore) Restore(values []byte) error {
	if !i.isRunning() {
		return ErrClosed
	}

	entries, err := decodeBackup(values)
	if err != nil {
		return err
	}

	restored := make(map[string]protocol.BinaryString, len(entries))
	for _, e := range entries {
		restored[string(e.key)] = e.value
	}

	i.mu.Lock()
	i.values = restored
	i.mu.Unlock()

	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	if !i.isRunning() {
		return nil, ErrClosed
	}

	return encodeBackup(i.entries())
}

// entries copies out every key and value, sorted by key.
func (i *InmemoryStore) entries() []entry {
	i.mu.Lock()
	entries := make([]entry, 0, len(i.values))
	for key, value := range i.values {
		entries = append(entries, entry{key: protocol.BinaryString(key), value: value.Clone()})
	}
	i.mu.Unlock()

	sort.Slice(entries, func(a, b int) bool {
		return string(entries[a].key) < string(entries[b].key)
	})

	return entries
}

// check fails with ErrClosed after Close, or with the context's error once it
// is done.
func (i *InmemoryStore) check(ctx context.Context) error {
	if !i.isRunning() {
		return ErrClosed
	}

	return ctx.Err()
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
