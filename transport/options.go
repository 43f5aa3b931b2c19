package transport

import (
	"go.uber.org/zap"

	"github.com/luma/respd/executor"
	"github.com/luma/respd/internal/metrics"
	"github.com/luma/respd/protocol"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on, 0 picks a free port
	Port int

	// Reuseport controls setting SO_REUSEPORT. Without it only one listener
	// can bind the address, NumListeners is ignored.
	Reuseport bool

	// Trace will log every chunk read from and written to clients. This is
	// only useful in local debugging
	Trace bool

	// NumListeners defaults to the number of CPUs
	NumListeners int

	// Limits bounds what a client may send, zero values use the protocol
	// defaults
	Limits protocol.Limits

	Executor *executor.Executor

	// Metrics may be nil
	Metrics *metrics.Metrics

	Log *zap.Logger
}
