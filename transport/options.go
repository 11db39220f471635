package transport

import (
	"go.uber.org/zap"

	"github.com/luma/keydir/storage"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on. 0 picks a free port, see TCP.Addr()
	Port int

	// Reuseport controls setting SO_REUSEPORT so that several listeners can
	// share the port. Without it only a single listener is started.
	Reuseport bool

	// NumListeners defaults to the number of CPUs
	NumListeners int

	Store storage.Directory

	Log *zap.Logger
}
