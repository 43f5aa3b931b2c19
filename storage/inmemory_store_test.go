package storage_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respd/protocol"
	"github.com/luma/respd/storage"
)

func b(s string) protocol.BinaryString {
	return protocol.BinaryString(s)
}

func sortedKeys(keys []protocol.BinaryString) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}

	sort.Strings(out)
	return out
}

// behavesLikeAStore registers the specs every Store implementation must pass.
func behavesLikeAStore(newStore func() storage.Store) {
	var (
		ctx   context.Context
		store storage.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
	})

	AfterEach(func() {
		store.Close()
	})

	Describe("Close()", func() {
		It("does not panic when closed twice", func() {
			Expect(func() { store.Close() }).NotTo(Panic())
			Expect(func() { store.Close() }).NotTo(Panic())
		})

		It("refuses operations once closed", func() {
			Expect(store.Close()).To(Succeed())

			_, _, err := store.Get(ctx, b("foo"))
			Expect(err).To(MatchError(storage.ErrClosed))
			Expect(store.Set(ctx, b("foo"), b("bar"))).To(MatchError(storage.ErrClosed))
		})

		It("refuses to back up or restore once closed", func() {
			backup, err := store.Backup()
			Expect(err).To(Succeed())
			Expect(store.Close()).To(Succeed())

			_, err = store.Backup()
			Expect(err).To(MatchError(storage.ErrClosed))
			Expect(store.Restore(backup)).To(MatchError(storage.ErrClosed))
		})
	})

	Describe("cancelled contexts", func() {
		It("are refused without touching the data", func() {
			Expect(store.Set(ctx, b("a"), b("1"))).To(Succeed())

			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			Expect(store.Set(cancelled, b("a"), b("2"))).To(MatchError(context.Canceled))

			_, err := store.Append(cancelled, b("a"), b("2"))
			Expect(err).To(MatchError(context.Canceled))

			_, _, err = store.Get(cancelled, b("a"))
			Expect(err).To(MatchError(context.Canceled))

			_, err = store.Exists(cancelled, b("a"))
			Expect(err).To(MatchError(context.Canceled))

			_, err = store.Keys(cancelled)
			Expect(err).To(MatchError(context.Canceled))

			value, ok, err := store.Get(ctx, b("a"))
			Expect(err).To(Succeed())
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(b("1")))
		})
	})

	Describe("Set() / Get()", func() {
		It("can read a key that is written", func() {
			Expect(store.Set(ctx, b("foo"), b("bar"))).To(Succeed())

			value, ok, err := store.Get(ctx, b("foo"))
			Expect(err).To(Succeed())
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(b("bar")))
		})

		It("reports missing keys", func() {
			value, ok, err := store.Get(ctx, b("missing"))
			Expect(err).To(Succeed())
			Expect(ok).To(BeFalse())
			Expect(value).To(BeNil())
		})

		It("replaces the previous value", func() {
			Expect(store.Set(ctx, b("foo"), b("bar"))).To(Succeed())
			Expect(store.Set(ctx, b("foo"), b("baz"))).To(Succeed())

			value, _, _ := store.Get(ctx, b("foo"))
			Expect(value).To(Equal(b("baz")))
			Expect(store.Len()).To(Equal(1))
		})

		It("does not share memory with the caller", func() {
			in := b("bar")
			Expect(store.Set(ctx, b("foo"), in)).To(Succeed())
			in[0] = 'X'

			out, _, _ := store.Get(ctx, b("foo"))
			out[1] = 'Y'

			value, _, _ := store.Get(ctx, b("foo"))
			Expect(value).To(Equal(b("bar")))
		})

		It("stores binary keys and values byte for byte", func() {
			key := b("k\x00\xff\r\n")
			Expect(store.Set(ctx, key, b("\x00\x01"))).To(Succeed())

			value, ok, _ := store.Get(ctx, key)
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(b("\x00\x01")))

			_, ok, _ = store.Get(ctx, b("k\x00\xfe\r\n"))
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Append()", func() {
		It("treats a missing key as empty", func() {
			n, err := store.Append(ctx, b("foo"), b("abc"))
			Expect(err).To(Succeed())
			Expect(n).To(Equal(3))

			value, _, _ := store.Get(ctx, b("foo"))
			Expect(value).To(Equal(b("abc")))
		})

		It("accumulates onto the existing value", func() {
			Expect(store.Set(ctx, b("foo"), b("ab"))).To(Succeed())

			n, err := store.Append(ctx, b("foo"), b("cd"))
			Expect(err).To(Succeed())
			Expect(n).To(Equal(4))

			n, err = store.Append(ctx, b("foo"), b(""))
			Expect(err).To(Succeed())
			Expect(n).To(Equal(4))

			value, _, _ := store.Get(ctx, b("foo"))
			Expect(value).To(Equal(b("abcd")))
		})

		It("does not change values handed out earlier", func() {
			Expect(store.Set(ctx, b("foo"), b("ab"))).To(Succeed())
			before, _, _ := store.Get(ctx, b("foo"))

			_, err := store.Append(ctx, b("foo"), b("cd"))
			Expect(err).To(Succeed())
			Expect(before).To(Equal(b("ab")))
		})
	})

	Describe("Exists() / Keys()", func() {
		It("reports which keys exist", func() {
			Expect(store.Set(ctx, b("a"), b("1"))).To(Succeed())

			Expect(store.Exists(ctx, b("a"))).To(BeTrue())
			Expect(store.Exists(ctx, b("b"))).To(BeFalse())
		})

		It("lists every key", func() {
			keys, err := store.Keys(ctx)
			Expect(err).To(Succeed())
			Expect(keys).To(BeEmpty())

			for _, k := range []string{"a", "b", "c"} {
				Expect(store.Set(ctx, b(k), b("v"))).To(Succeed())
			}

			keys, err = store.Keys(ctx)
			Expect(err).To(Succeed())
			Expect(sortedKeys(keys)).To(Equal([]string{"a", "b", "c"}))
		})
	})

	Describe("Backup() / Restore()", func() {
		It("an empty store has no entries", func() {
			value, err := store.Backup()
			Expect(err).To(Succeed())
			Expect(string(value)).To(Equal(`{"entries":[]}`))
		})

		It("writes base64 encoded entries sorted by key", func() {
			Expect(store.Set(ctx, b("b"), b("2"))).To(Succeed())
			Expect(store.Set(ctx, b("a"), b("1"))).To(Succeed())

			value, err := store.Backup()
			Expect(err).To(Succeed())
			Expect(string(value)).To(Equal(
				`{"entries":[{"key":"YQ==","value":"MQ=="},{"key":"Yg==","value":"Mg=="}]}`))
		})

		It("restores what was backed up, binary keys included", func() {
			Expect(store.Set(ctx, b("\x00\xff"), b("bin"))).To(Succeed())
			Expect(store.Set(ctx, b("text"), b("\r\n"))).To(Succeed())

			backup, err := store.Backup()
			Expect(err).To(Succeed())

			other := newStore()
			defer other.Close()

			Expect(other.Set(ctx, b("stale"), b("x"))).To(Succeed())
			Expect(other.Restore(backup)).To(Succeed())

			Expect(other.Len()).To(Equal(2))
			Expect(other.Exists(ctx, b("stale"))).To(BeFalse())

			value, ok, _ := other.Get(ctx, b("\x00\xff"))
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(b("bin")))

			value, _, _ = other.Get(ctx, b("text"))
			Expect(value).To(Equal(b("\r\n")))
		})

		It("rejects documents that are not backups", func() {
			Expect(store.Restore([]byte(`{"entries":`))).NotTo(Succeed())
			Expect(store.Restore([]byte(`{"entries":{}}`))).NotTo(Succeed())
			Expect(store.Restore([]byte(`{"entries":[{"key":1,"value":"MQ=="}]}`))).NotTo(Succeed())
			Expect(store.Restore([]byte(`{"entries":[{"key":"YQ==","value":"%%%"}]}`))).NotTo(Succeed())
		})

		It("keeps its contents when a restore fails", func() {
			Expect(store.Set(ctx, b("a"), b("1"))).To(Succeed())
			Expect(store.Restore([]byte(`not json`))).NotTo(Succeed())
			Expect(store.Exists(ctx, b("a"))).To(BeTrue())
		})
	})

	It("serves disjoint keys from many goroutines", func() {
		var wg sync.WaitGroup

		for w := 0; w < 8; w++ {
			wg.Add(1)

			go func(w int) {
				defer GinkgoRecover()
				defer wg.Done()

				for i := 0; i < 200; i++ {
					key := b(fmt.Sprintf("w%d-k%d", w, i))
					value := b(fmt.Sprintf("v%d", i))

					Expect(store.Set(ctx, key, value)).To(Succeed())

					got, ok, err := store.Get(ctx, key)
					Expect(err).To(Succeed())
					Expect(ok).To(BeTrue())
					Expect(got).To(Equal(value))
				}
			}(w)
		}

		wg.Wait()
		Expect(store.Len()).To(Equal(8 * 200))
	})

	It("does not lose appends made concurrently to one key", func() {
		var wg sync.WaitGroup

		for w := 0; w < 8; w++ {
			wg.Add(1)

			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				for i := 0; i < 100; i++ {
					_, err := store.Append(ctx, b("shared"), b("x"))
					Expect(err).To(Succeed())
				}
			}()
		}

		wg.Wait()

		value, _, _ := store.Get(ctx, b("shared"))
		Expect(value).To(HaveLen(800))
	})
}

var _ = Describe("storage / InmemoryStore", func() {
	behavesLikeAStore(func() storage.Store {
		return storage.NewInmemoryStore()
	})
})

var _ = Describe("storage / New()", func() {
	It("returns a single lock store for one shard", func() {
		store := storage.New(1)
		defer store.Close()

		Expect(store).To(BeAssignableToTypeOf(&storage.InmemoryStore{}))
	})

	It("returns a sharded store for more than one shard", func() {
		store := storage.New(4)
		defer store.Close()

		Expect(store).To(BeAssignableToTypeOf(&storage.ShardedStore{}))
		Expect(store.(*storage.ShardedStore).NumShards()).To(Equal(4))
	})
})
