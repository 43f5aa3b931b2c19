package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/respd/executor"
	"github.com/luma/respd/internal/metrics"
	"github.com/luma/respd/protocol"
)

// TCP serves RESP clients on one or more listeners bound to the same address.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter conc.WaitGroup
	stopOnce   sync.Once

	addr      string
	reuseport bool
	trace     bool
	limits    protocol.Limits
	executor  *executor.Executor
	metrics   *metrics.Metrics
	log       *zap.Logger

	numListeners int
	listeners    []*TCPListener
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	if !options.Reuseport {
		numListeners = 1
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		reuseport:    options.Reuseport,
		trace:        options.Trace,
		limits:       options.Limits,
		executor:     options.Executor,
		metrics:      options.Metrics,
		log:          options.Log,
	}
}

// Start binds every listener and returns once they all accept connections.
// If any of them fails to bind, the ones already bound are closed again.
func (w *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel

	w.log.Info("Starting tcp listeners",
		zap.Int("count", w.numListeners),
		zap.Bool("reuseport", w.reuseport))

	for i := 0; i < w.numListeners; i++ {
		if err := w.startListener(ctx, i); err != nil {
			return multierr.Append(err, w.Close())
		}
	}

	return nil
}

// Addr returns the address the first listener is bound to. It is mostly
// useful when listening on port 0.
func (w *TCP) Addr() net.Addr {
	if len(w.listeners) == 0 {
		return nil
	}

	return w.listeners[0].Addr()
}

// NumConns returns the number of client connections open across all listeners.
func (w *TCP) NumConns() int {
	n := 0
	for _, listener := range w.listeners {
		n += listener.NumConns()
	}

	return n
}

func (w *TCP) startListener(ctx context.Context, id int) error {
	var (
		l   net.Listener
		err error
	)

	if w.reuseport {
		l, err = reuseport.Listen("tcp", w.addr)
	} else {
		l, err = net.Listen("tcp", w.addr)
	}

	if err != nil {
		return fmt.Errorf("listen on %s: %w", w.addr, err)
	}

	listener := NewTCPListener(ctx, l, listenerOptions{
		trace:    w.trace,
		limits:   w.limits,
		executor: w.executor,
		metrics:  w.metrics,
		log:      w.log.Named("listener").With(zap.Int("listener", id)),
	})

	w.listeners = append(w.listeners, listener)

	w.stopWaiter.Go(func() {
		if err := listener.Serve(); err != nil {
			// The remaining listeners carry on serving
			w.log.Error("Listener failed", zap.Int("listener", id), zap.Error(err))
		}
	})

	return nil
}

// Close immediately closes all listeners and active connections and waits
// for their goroutines to exit.
func (w *TCP) Close() (err error) {
	w.stopOnce.Do(func() {
		w.log.Info("Stopping TCP server")

		if w.cancel != nil {
			w.cancel()
		}

		for _, listener := range w.listeners {
			err = multierr.Append(err, listener.Close())
		}

		w.stopWaiter.Wait()
		w.log.Info("TCP server stopped")
	})

	return err
}

type listenerOptions struct {
	trace    bool
	limits   protocol.Limits
	executor *executor.Executor
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// TCPListener accepts connections on one bound socket and runs a TCPConn for
// each of them.
type TCPListener struct {
	ctx      context.Context
	cancel   context.CancelFunc
	listener net.Listener
	options  listenerOptions
	log      *zap.Logger

	activeConns *xsync.MapOf[*TCPConn, struct{}]
	connWaiter  sync.WaitGroup
}

func NewTCPListener(parentCtx context.Context, listener net.Listener, options listenerOptions) *TCPListener {
	ctx, cancel := context.WithCancel(parentCtx)

	return &TCPListener{
		ctx:         ctx,
		cancel:      cancel,
		listener:    listener,
		options:     options,
		log:         options.log,
		activeConns: xsync.NewMapOf[*TCPConn, struct{}](),
	}
}

func (t *TCPListener) Addr() net.Addr {
	return t.listener.Addr()
}

// NumConns returns the number of connections currently being served.
func (t *TCPListener) NumConns() int {
	return t.activeConns.Size()
}

// Serve accepts connections until the listener is closed. It returns once
// every connection it accepted has finished.
func (t *TCPListener) Serve() error {
	t.log.Info("Accepting connections", zap.Stringer("addr", t.listener.Addr()))

	defer func() {
		t.log.Info("Waiting for connections to stop")
		t.connWaiter.Wait()
		t.log.Info("Listener stopped")
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || t.ctx.Err() != nil {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				t.log.Info("Stopped accepting new connections")
				return nil
			}

			return err
		}

		tcpConn := NewTCPConn(t.ctx, conn, t.options.executor, connOptions{
			trace:   t.options.trace,
			limits:  t.options.limits,
			metrics: t.options.metrics,
			log:     t.log.Named("conn").With(zap.Stringer("remote", conn.RemoteAddr())),
		})

		t.activeConns.Store(tcpConn, struct{}{})
		t.connWaiter.Add(1)

		go func() {
			defer t.connWaiter.Done()
			defer t.activeConns.Delete(tcpConn)

			tcpConn.Start()
		}()
	}
}

// Close stops accepting and closes every active connection. Connections
// accepted concurrently with Close see the cancelled context and stop on their
// own.
func (t *TCPListener) Close() error {
	t.cancel()

	err := t.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	t.activeConns.Range(func(conn *TCPConn, _ struct{}) bool {
		conn.Close()
		return true
	})

	return err
}
