package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/respd/executor"
	"github.com/luma/respd/internal/metrics"
	"github.com/luma/respd/protocol"
)

const (
	readBufferSize  = 4096
	writeQueueDepth = 127
)

// ErrConnClosed is returned by TCPConn.Write once the connection is shutting
// down.
var ErrConnClosed = errors.New("transport: connection closed")

type connOptions struct {
	trace   bool
	limits  protocol.Limits
	metrics *metrics.Metrics
	log     *zap.Logger
}

// TCPConn drives one client connection. The read loop decodes requests,
// executes them and queues the replies, the write loop writes queued replies
// to the socket in the order they were queued.
type TCPConn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	loopWaiter sync.WaitGroup
	closeOnce  sync.Once

	conn     net.Conn
	executor *executor.Executor
	decoder  *protocol.Decoder

	writeQueue chan []byte

	metrics *metrics.Metrics
	trace   bool
	log     *zap.Logger
}

func NewTCPConn(
	parentCtx context.Context,
	conn net.Conn,
	exec *executor.Executor,
	options connOptions,
) *TCPConn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &TCPConn{
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		executor:   exec,
		decoder:    protocol.NewDecoder(options.limits),
		writeQueue: make(chan []byte, writeQueueDepth),
		metrics:    options.metrics,
		trace:      options.trace,
		log:        options.log,
	}
}

// Close stops both loops without waiting for queued replies to be written.
// The socket itself is closed by Start once the loops have exited.
func (t *TCPConn) Close() error {
	t.cancel()
	return nil
}

// Start runs the read and write loops and blocks until both have exited and
// the socket is closed.
func (t *TCPConn) Start() {
	t.metrics.ConnectionOpened()
	t.log.Info("Client connected")

	// A blocked Read only returns once the socket has a deadline in the past.
	go func() {
		<-t.ctx.Done()
		t.conn.SetReadDeadline(time.Now())
	}()

	t.loopWaiter.Add(2)

	go func() {
		defer t.loopWaiter.Done()
		t.ReadLoop()
	}()

	go func() {
		defer t.loopWaiter.Done()
		t.WriteLoop()
	}()

	t.loopWaiter.Wait()
	t.cancel()

	t.closeOnce.Do(func() {
		if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.log.Warn("Connection did not close cleanly", zap.Error(err))
		}
	})

	t.metrics.ConnectionClosed()
	t.log.Info("Client disconnected")
}

func (t *TCPConn) ReadLoop() {
	log := t.log.Named("readLoop")

	defer func() {
		// Tell the write loop to stop once it has written everything queued
		// before this point.
		select {
		case t.writeQueue <- nil:
		case <-t.ctx.Done():
		}

		log.Debug("Read loop exited")
	}()

	var (
		chunk   = make([]byte, readBufferSize)
		pending bytes.Buffer
	)

	for {
		n, err := t.conn.Read(chunk)

		if n > 0 {
			if t.trace {
				log.Debug("Read", zap.ByteString("data", chunk[:n]))
			}

			pending.Write(chunk[:n])

			if !t.process(&pending) {
				return
			}
		}

		if err != nil {
			switch {
			case t.ctx.Err() != nil:
				log.Debug("Context cancelled, exiting...")

			case errors.Is(err, io.EOF):
				log.Debug("Client closed the connection")

			default:
				log.Warn("Failed to read from client", zap.Error(err))
			}

			return
		}
	}
}

// process decodes and handles every complete value buffered in pending. Bytes
// of an incomplete value stay in pending, the decoder remembers how far it got
// through them. It returns false when the connection must be closed.
func (t *TCPConn) process(pending *bytes.Buffer) bool {
	for pending.Len() > 0 {
		v, n, err := t.decoder.Decode(pending.Bytes())
		if err != nil {
			t.log.Info("Closing connection after protocol error", zap.Error(err))
			t.replyError(err)
			return false
		}

		if v == nil {
			return true
		}

		pending.Next(n)
		t.handle(v)
	}

	return true
}

func (t *TCPConn) handle(v protocol.Value) {
	req, err := protocol.ParseRequest(v)
	if err != nil {
		t.log.Debug("Invalid request", zap.Error(err))
		t.replyError(err)
		return
	}

	reply, err := t.executor.Execute(t.ctx, req)
	if err != nil {
		t.replyError(err)
		return
	}

	t.reply(reply)
}

func (t *TCPConn) replyError(err error) {
	t.metrics.ObserveError(protocol.KindOf(err).String())
	t.reply(protocol.ReplyFor(err))
}

func (t *TCPConn) reply(v protocol.Value) {
	if err := protocol.WriteValue(t, v); err != nil {
		t.log.Debug("Dropped reply", zap.Error(err))
	}
}

func (t *TCPConn) WriteLoop() {
	log := t.log.Named("writeLoop")

	defer func() {
		log.Debug("Write loop exited")
	}()

	for {
		select {
		case <-t.ctx.Done():
			return

		// These are responses from client requests handled by the read loop
		case data := <-t.writeQueue:
			if data == nil {
				// Our read loop has terminated, we should too
				return
			}

			if t.trace {
				log.Debug("Write", zap.ByteString("data", data))
			}

			if _, err := t.conn.Write(data); err != nil {
				log.Error("Failed to write from write queue", zap.Error(err))

				// Without the reply the client can no longer match responses to
				// requests, so the connection is finished.
				t.cancel()
				return
			}
		}
	}
}

// Write queues a copy of data for the write loop to write into the connection.
// It blocks while the queue is full.
func (t *TCPConn) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case t.writeQueue <- buf:
		return len(data), nil

	case <-t.ctx.Done():
		return 0, ErrConnClosed
	}
}
