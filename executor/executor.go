// Package executor applies client requests to a store and builds the replies.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luma/respd/internal/metrics"
	"github.com/luma/respd/protocol"
	"github.com/luma/respd/storage"
)

// Executor is safe for use by many connections at once, all synchronisation
// happens inside the store.
type Executor struct {
	store   storage.Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New returns an Executor for store. m may be nil.
func New(store storage.Store, log *zap.Logger, m *metrics.Metrics) *Executor {
	return &Executor{
		store:   store,
		log:     log.Named("executor"),
		metrics: m,
	}
}

// Execute runs req and returns the reply to send. A non nil error is an
// execution failure, the caller replies with protocol.ReplyFor(err) and keeps
// the connection open.
func (e *Executor) Execute(ctx context.Context, req protocol.Request) (protocol.Value, error) {
	start := time.Now()
	v, err := e.execute(ctx, req)

	command := string(req.GetCommand())
	e.metrics.ObserveCommand(command, err, time.Since(start))

	if err != nil {
		e.log.Debug("command failed", zap.String("command", command), zap.Error(err))
	} else if ce := e.log.Check(zap.DebugLevel, "command executed"); ce != nil {
		ce.Write(zap.String("command", command), zap.Stringer("reply", valueString{v}))
	}

	return v, err
}

func (e *Executor) execute(ctx context.Context, req protocol.Request) (protocol.Value, error) {
	switch r := req.(type) {
	case *protocol.PingRequest:
		if r.HasMessage {
			return protocol.BulkString(r.Message), nil
		}

		return protocol.SimpleString(protocol.RespPong), nil

	case *protocol.GetRequest:
		value, ok, err := e.store.Get(ctx, r.Key)
		if err != nil {
			return nil, storeError(err)
		}

		if !ok {
			return protocol.Null{}, nil
		}

		return protocol.BulkString(value), nil

	case *protocol.SetRequest:
		if err := e.store.Set(ctx, r.Key, r.Value); err != nil {
			return nil, storeError(err)
		}

		return protocol.SimpleString(protocol.RespOk), nil

	case *protocol.AppendRequest:
		n, err := e.store.Append(ctx, r.Key, r.Value)
		if err != nil {
			return nil, storeError(err)
		}

		return protocol.Integer(n), nil

	case *protocol.KeysRequest:
		// The pattern is accepted but every key is returned.
		keys, err := e.store.Keys(ctx)
		if err != nil {
			return nil, storeError(err)
		}

		reply := make(protocol.Array, len(keys))
		for i, key := range keys {
			reply[i] = protocol.BulkString(key)
		}

		return reply, nil

	case *protocol.ExistsRequest:
		ok, err := e.store.Exists(ctx, r.Key)
		if err != nil {
			return nil, storeError(err)
		}

		if ok {
			return protocol.Integer(1), nil
		}

		return protocol.Integer(0), nil

	default:
		// COMMAND and anything added to the protocol without an
		// implementation here.
		return nil, protocol.ErrNotImplemented
	}
}

func storeError(err error) error {
	return &protocol.Error{Kind: protocol.KindExecution, Msg: "Storage error", Detail: err.Error()}
}

// valueString defers formatting a reply until the log entry is written.
type valueString struct {
	v protocol.Value
}

func (s valueString) String() string {
	switch v := s.v.(type) {
	case protocol.BulkString:
		return v.String()

	case protocol.Array:
		return fmt.Sprintf("array of %d", len(v))

	default:
		return fmt.Sprintf("%v", v)
	}
}
