package cmd

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/respd/executor"
	"github.com/luma/respd/protocol"
	"github.com/luma/respd/storage"
	"github.com/luma/respd/transport"
)

var _ = Describe("writeReply()", func() {
	format := func(v protocol.Value) string {
		var out bytes.Buffer
		writeReply(&out, v, "")
		return out.String()
	}

	It("prints scalars like redis-cli", func() {
		Expect(format(protocol.SimpleString("OK"))).To(Equal("OK\n"))
		Expect(format(protocol.Integer(3))).To(Equal("(integer) 3\n"))
		Expect(format(protocol.BulkString("a b"))).To(Equal("\"a b\"\n"))
		Expect(format(protocol.Null{})).To(Equal("(nil)\n"))
		Expect(format(protocol.ErrorReply{Message: "NOT_IMPLEMENTED"})).To(Equal("(error) NOT_IMPLEMENTED\n"))
	})

	It("numbers array elements", func() {
		Expect(format(protocol.Array{})).To(Equal("(empty array)\n"))
		Expect(format(protocol.Array{protocol.BulkString("a"), protocol.BulkString("b")})).
			To(Equal("1) \"a\"\n2) \"b\"\n"))
	})

	It("indents nested arrays", func() {
		v := protocol.Array{
			protocol.Integer(1),
			protocol.Array{protocol.BulkString("x"), protocol.Null{}},
		}

		Expect(format(v)).To(Equal("1) (integer) 1\n2) 1) \"x\"\n   2) (nil)\n"))
	})
})

var _ = Describe("call", func() {
	It("sends the command and prints the reply", func() {
		store := storage.NewInmemoryStore()
		defer store.Close()

		log := zap.NewNop()
		tcp := transport.NewTCP(transport.Options{
			Host:     "127.0.0.1",
			Executor: executor.New(store, log, nil),
			Log:      log,
		})
		Expect(tcp.Start(context.Background())).To(Succeed())
		defer tcp.Close()

		run := func(args ...string) string {
			var out bytes.Buffer

			RootCmd.SetOut(&out)
			RootCmd.SetArgs(append([]string{"call", "--addr", tcp.Addr().String()}, args...))
			Expect(RootCmd.Execute()).To(Succeed())

			return out.String()
		}

		Expect(run("SET", "key", "value")).To(Equal("OK\n"))
		Expect(run("GET", "key")).To(Equal("\"value\"\n"))
		Expect(run("APPEND", "key", "!")).To(Equal("(integer) 6\n"))
		Expect(run("FOOO")).To(Equal("(error) Invalid command 'FOOO'\n"))
	})
})
