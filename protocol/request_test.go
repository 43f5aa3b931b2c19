package protocol_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respd/protocol"
)

func parseWire(data string) (protocol.Request, error) {
	v, _, err := protocol.NewDecoder(protocol.Limits{}).Decode([]byte(data))
	Expect(err).To(Succeed())
	Expect(v).NotTo(BeNil())

	return protocol.ParseRequest(v)
}

var _ = Describe("ParseRequest()", func() {
	It("matches command names case insensitively", func() {
		for _, name := range []string{"get", "Get", "GET", "gEt"} {
			req, err := protocol.ParseRequest(protocol.Array{bulk(name), bulk("key")})
			Expect(err).To(Succeed())
			Expect(req).To(Equal(&protocol.GetRequest{Key: protocol.BinaryString("key")}))
		}
	})

	It("parses SET", func() {
		req, err := parseWire("*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n")
		Expect(err).To(Succeed())
		Expect(req.GetCommand()).To(Equal(protocol.SET))

		setReq, ok := req.(*protocol.SetRequest)
		Expect(ok).To(BeTrue())
		Expect(setReq.Key).To(Equal(protocol.BinaryString("key")))
		Expect(setReq.Value).To(Equal(protocol.BinaryString("value")))
	})

	It("parses APPEND", func() {
		req, err := parseWire("APPEND key more\r\n")
		Expect(err).To(Succeed())
		Expect(req).To(Equal(&protocol.AppendRequest{
			Key:   protocol.BinaryString("key"),
			Value: protocol.BinaryString("more"),
		}))
	})

	It("parses KEYS with its pattern", func() {
		req, err := parseWire("KEYS *\r\n")
		Expect(err).To(Succeed())
		Expect(req).To(Equal(&protocol.KeysRequest{Pattern: protocol.BinaryString("*")}))
	})

	It("parses EXISTS", func() {
		req, err := parseWire("exists key\r\n")
		Expect(err).To(Succeed())
		Expect(req).To(Equal(&protocol.ExistsRequest{Key: protocol.BinaryString("key")}))
	})

	It("parses COMMAND", func() {
		req, err := parseWire("COMMAND DOCS\r\n")
		Expect(err).To(Succeed())
		Expect(req.GetCommand()).To(Equal(protocol.COMMAND))
	})

	Describe("PING", func() {
		It("parses PING without a message", func() {
			req, err := parseWire("PING\r\n")
			Expect(err).To(Succeed())
			Expect(req).To(Equal(&protocol.PingRequest{}))
		})

		It("parses PING with a message", func() {
			req, err := parseWire("*2\r\n$4\r\nPING\r\n$5\r\nhello\r\n")
			Expect(err).To(Succeed())
			Expect(req).To(Equal(&protocol.PingRequest{
				Message:    protocol.BinaryString("hello"),
				HasMessage: true,
			}))
		})

		It("ignores a message that is not a bulk string", func() {
			req, err := protocol.ParseRequest(protocol.Array{bulk("PING"), protocol.Integer(1)})
			Expect(err).To(Succeed())
			Expect(req).To(Equal(&protocol.PingRequest{}))
		})
	})

	It("ignores extra trailing arguments", func() {
		req, err := parseWire("GET key other things\r\n")
		Expect(err).To(Succeed())
		Expect(req).To(Equal(&protocol.GetRequest{Key: protocol.BinaryString("key")}))
	})

	Describe("errors", func() {
		It("rejects GET without a key instead of reading an empty key", func() {
			_, err := parseWire("*1\r\n$3\r\nGET\r\n")
			Expect(err).To(MatchError(protocol.ErrNotEnoughArguments))
			Expect(protocol.KindOf(err)).To(Equal(protocol.KindRequest))
		})

		It("rejects SET without a value", func() {
			_, err := parseWire("SET key\r\n")
			Expect(err).To(MatchError(protocol.ErrNotEnoughArguments))
		})

		It("rejects arguments that are not bulk strings", func() {
			_, err := protocol.ParseRequest(protocol.Array{bulk("GET"), protocol.Null{}})
			Expect(errors.Is(err, protocol.ErrInvalidArgument)).To(BeTrue())
			Expect(errors.Is(err, protocol.ErrRequest)).To(BeTrue())
		})

		It("tells an unknown command apart from no command", func() {
			_, unknown := parseWire("*1\r\n$4\r\nFOOO\r\n")
			_, empty := parseWire("*0\r\n")

			Expect(errors.Is(unknown, protocol.ErrUnknownCommand)).To(BeTrue())
			Expect(errors.Is(unknown, protocol.ErrNoCommand)).To(BeFalse())

			Expect(empty).To(MatchError(protocol.ErrNoCommand))
			Expect(errors.Is(empty, protocol.ErrUnknownCommand)).To(BeFalse())
		})

		It("names the unknown command in the reply", func() {
			_, err := parseWire("FOOO\r\n")
			Expect(protocol.ReplyFor(err)).To(Equal(protocol.ErrorReply{
				Message: "Invalid command",
				Detail:  "'FOOO'",
			}))
		})

		It("escapes line breaks in an unknown command name", func() {
			wire := "*1\r\n$9\r\nX\r\n:1\r\n+Y\r\n"
			_, err := parseWire(wire)
			Expect(errors.Is(err, protocol.ErrUnknownCommand)).To(BeTrue())

			encoded := protocol.Encode(protocol.ReplyFor(err))
			Expect(string(encoded)).To(Equal(`-Invalid command 'X\r\n:1\r\n+Y'` + "\r\n"))

			v, n, err := protocol.NewReplyDecoder(protocol.Limits{}).Decode(encoded)
			Expect(err).To(Succeed())
			Expect(n).To(Equal(len(encoded)), "the reply is a single value")
			Expect(v).To(BeAssignableToTypeOf(protocol.ErrorReply{}))
		})

		It("cuts long unknown command names short", func() {
			_, err := protocol.ParseRequest(protocol.Array{bulk(strings.Repeat("x", 1000))})

			reply := protocol.ReplyFor(err)
			Expect(reply.Detail).To(Equal("'" + strings.Repeat("x", 64) + "...'"))
		})

		It("rejects an empty command name", func() {
			_, err := protocol.ParseRequest(protocol.Array{bulk("")})
			Expect(err).To(MatchError(protocol.ErrNoCommand))
		})

		It("rejects a command name that is not a bulk string", func() {
			_, err := protocol.ParseRequest(protocol.Array{protocol.Integer(1)})
			Expect(err).To(MatchError(protocol.ErrNoCommand))
		})

		It("rejects values that are not arrays", func() {
			_, err := protocol.ParseRequest(protocol.Null{})
			Expect(errors.Is(err, protocol.ErrUnknownCommand)).To(BeTrue())

			_, err = protocol.ParseRequest(protocol.SimpleString("GET"))
			Expect(errors.Is(err, protocol.ErrUnknownCommand)).To(BeTrue())
		})
	})
})

var _ = Describe("BinaryString", func() {
	It("appends in place", func() {
		b := make(protocol.BinaryString, 2, 16)
		copy(b, "ab")

		Expect(b.Append(protocol.BinaryString("cd"))).To(Equal(4))
		Expect(b).To(Equal(protocol.BinaryString("abcd")))
		Expect(cap(b)).To(Equal(16))
	})

	It("compares bytes exactly", func() {
		Expect(protocol.BinaryString("a\x00").Equal(protocol.BinaryString("a\x00"))).To(BeTrue())
		Expect(protocol.BinaryString("a").Equal(protocol.BinaryString("A"))).To(BeFalse())
	})

	It("prints text as text and binary as a quoted string", func() {
		Expect(protocol.BinaryString("key").String()).To(Equal("key"))
		Expect(protocol.BinaryString("\xff").String()).To(Equal(`"\xff"`))
	})
})
