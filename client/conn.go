package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/respd/protocol"
)

const (
	readBufferSize = 4096

	// maxPending is how many requests may wait for a reply at once.
	maxPending = 255
)

// ErrDisconnected is returned for requests made on, or still waiting on, a
// connection that has gone away.
var ErrDisconnected = errors.New("client: disconnected")

// ServerError is an error reply sent by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// Response is one reply, or the reason there is none.
type Response struct {
	Value protocol.Value
	Err   error
}

// Conn is a connection to a RESP server. It is safe for concurrent use,
// requests are written in the order their callers get the write lock and
// replies are handed back in the same order.
type Conn struct {
	conn   net.Conn
	limits protocol.Limits

	// writeMu keeps writes and respChans in the same order.
	writeMu   sync.Mutex
	respChans chan chan *Response

	// done is closed when the read loop exits, err says why.
	done chan struct{}
	err  error

	closeOnce sync.Once

	log *zap.Logger
}

func New(log *zap.Logger) *Conn {
	return &Conn{
		log:       log,
		respChans: make(chan chan *Response, maxPending),
		done:      make(chan struct{}),
	}
}

// WithLimits sets the limits replies are decoded with. It must be called
// before Connect.
func (c *Conn) WithLimits(limits protocol.Limits) *Conn {
	c.limits = limits
	return c
}

func (c *Conn) Connect(ctx context.Context, addr string) error {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	c.conn = conn
	go c.readLoop()

	return nil
}

// Disconnect closes the connection and waits for the read loop to exit.
// Requests still waiting for a reply fail with ErrDisconnected.
func (c *Conn) Disconnect() error {
	if c.conn == nil {
		return nil
	}

	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})

	<-c.done

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

// Do sends one command and waits for its reply. Error replies are returned
// as a *ServerError.
func (c *Conn) Do(ctx context.Context, args ...[]byte) (protocol.Value, error) {
	if len(args) == 0 {
		return nil, errors.New("client: no command given")
	}

	respChan := make(chan *Response, 1)
	data := protocol.Encode(protocol.NewCommand(args...))

	select {
	case <-c.done:
		return nil, c.disconnectErr()
	default:
	}

	c.writeMu.Lock()

	select {
	case c.respChans <- respChan:
	case <-c.done:
		c.writeMu.Unlock()
		return nil, c.disconnectErr()
	case <-ctx.Done():
		c.writeMu.Unlock()
		return nil, ctx.Err()
	}

	_, err := c.conn.Write(data)
	c.writeMu.Unlock()

	if err != nil {
		// A partial write leaves the server mid request, the connection
		// cannot be used any more.
		c.closeOnce.Do(func() { c.conn.Close() })
		return nil, fmt.Errorf("%w: write %s: %v", ErrDisconnected, args[0], err)
	}

	select {
	case resp := <-respChan:
		return resp.Value, resp.Err

	case <-c.done:
		// The reply may have been delivered just before the loop exited.
		select {
		case resp := <-respChan:
			return resp.Value, resp.Err
		default:
			return nil, c.disconnectErr()
		}

	case <-ctx.Done():
		// The reply is still read and dropped into respChan when it arrives.
		return nil, ctx.Err()
	}
}

func (c *Conn) Ping(ctx context.Context) error {
	v, err := c.Do(ctx, []byte(protocol.PING))
	if err != nil {
		return err
	}

	if s, ok := v.(protocol.SimpleString); !ok || s != protocol.RespPong {
		return unexpected(protocol.PING, v)
	}

	return nil
}

// Echo sends PING with a message, the server replies with the message.
func (c *Conn) Echo(ctx context.Context, message []byte) ([]byte, error) {
	v, err := c.Do(ctx, []byte(protocol.PING), message)
	if err != nil {
		return nil, err
	}

	bulk, ok := v.(protocol.BulkString)
	if !ok {
		return nil, unexpected(protocol.PING, v)
	}

	return bulk, nil
}

// Get returns the value stored under key, ok is false when there is none.
func (c *Conn) Get(ctx context.Context, key []byte) (value []byte, ok bool, err error) {
	v, err := c.Do(ctx, []byte(protocol.GET), key)
	if err != nil {
		return nil, false, err
	}

	switch r := v.(type) {
	case protocol.BulkString:
		return r, true, nil

	case protocol.Null:
		return nil, false, nil

	default:
		return nil, false, unexpected(protocol.GET, v)
	}
}

func (c *Conn) Set(ctx context.Context, key, value []byte) error {
	v, err := c.Do(ctx, []byte(protocol.SET), key, value)
	if err != nil {
		return err
	}

	if s, ok := v.(protocol.SimpleString); !ok || s != protocol.RespOk {
		return unexpected(protocol.SET, v)
	}

	return nil
}

// Append returns the length of the value after appending.
func (c *Conn) Append(ctx context.Context, key, value []byte) (int64, error) {
	v, err := c.Do(ctx, []byte(protocol.APPEND), key, value)
	if err != nil {
		return 0, err
	}

	n, ok := v.(protocol.Integer)
	if !ok {
		return 0, unexpected(protocol.APPEND, v)
	}

	return int64(n), nil
}

func (c *Conn) Exists(ctx context.Context, key []byte) (bool, error) {
	v, err := c.Do(ctx, []byte(protocol.EXISTS), key)
	if err != nil {
		return false, err
	}

	n, ok := v.(protocol.Integer)
	if !ok {
		return false, unexpected(protocol.EXISTS, v)
	}

	return n == 1, nil
}

func (c *Conn) Keys(ctx context.Context, pattern []byte) ([][]byte, error) {
	v, err := c.Do(ctx, []byte(protocol.KEYS), pattern)
	if err != nil {
		return nil, err
	}

	arr, ok := v.(protocol.Array)
	if !ok {
		return nil, unexpected(protocol.KEYS, v)
	}

	keys := make([][]byte, 0, len(arr))
	for _, elem := range arr {
		bulk, ok := elem.(protocol.BulkString)
		if !ok {
			return nil, unexpected(protocol.KEYS, v)
		}

		keys = append(keys, bulk)
	}

	return keys, nil
}

func (c *Conn) readLoop() {
	log := c.log.Named("readLoop")

	defer close(c.done)

	var (
		decoder = protocol.NewReplyDecoder(c.limits)
		chunk   = make([]byte, readBufferSize)
		pending bytes.Buffer
	)

	for {
		n, err := c.conn.Read(chunk)

		if n > 0 {
			pending.Write(chunk[:n])

			for pending.Len() > 0 {
				v, used, derr := decoder.Decode(pending.Bytes())
				if derr != nil {
					log.Warn("Failed to decode server reply", zap.Error(derr))
					c.err = derr
					c.closeOnce.Do(func() { c.conn.Close() })
					return
				}

				if v == nil {
					break
				}

				pending.Next(used)
				c.deliver(log, v)
			}
		}

		if err != nil {
			log.Debug("Connection closed", zap.Error(err))
			c.err = err
			return
		}
	}
}

func (c *Conn) deliver(log *zap.Logger, v protocol.Value) {
	resp := &Response{Value: v}
	if e, ok := v.(protocol.ErrorReply); ok {
		resp = &Response{Err: &ServerError{Message: e.String()}}
	}

	select {
	case respChan := <-c.respChans:
		respChan <- resp

	default:
		log.Warn("Dropped a reply nobody asked for", zap.Stringer("type", v.Type()))
	}
}

func (c *Conn) disconnectErr() error {
	if c.err == nil {
		return ErrDisconnected
	}

	return fmt.Errorf("%w: %v", ErrDisconnected, c.err)
}

func unexpected(cmd protocol.Command, v protocol.Value) error {
	return fmt.Errorf("client: unexpected %s reply to %s", v.Type(), cmd)
}
