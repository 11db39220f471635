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
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/keydir/protocol"
	"github.com/luma/keydir/storage"
)

type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr string

	// listen binds one listener, reuseport.Listen or net.Listen
	listen func(network, address string) (net.Listener, error)

	numListeners int
	listeners    []*TCPListener

	store storage.Directory

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	if !options.Reuseport {
		// Without SO_REUSEPORT a second bind on the same port would fail
		numListeners = 1
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	listen := net.Listen
	if options.Reuseport {
		listen = reuseport.Listen
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		listen:       listen,
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		store:        options.Store,
		log:          log,
	}
}

// Start binds every listener and then accepts connections in the background.
// It returns once the listeners are bound, so Addr() is usable straight away.
func (t *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	t.cancel = cancel

	t.log.Info("Starting tcp listeners", zap.Int("count", t.numListeners))

	for i := 0; i < t.numListeners; i++ {
		ln, err := t.listen("tcp", t.addr)
		if err != nil {
			cancel()
			err = multierr.Append(
				fmt.Errorf("Failed to listen on %s: %w", t.addr, err),
				t.closeListeners(),
			)

			t.stopWaiter.Wait()
			return err
		}

		if i == 0 {
			// Later listeners must share the port picked for the first one
			t.addr = ln.Addr().String()
		}

		t.startListener(ctx, ln)
	}

	return nil
}

// Addr returns the address the listeners are bound to.
func (t *TCP) Addr() string {
	return t.addr
}

func (t *TCP) Store() storage.Directory {
	return t.store
}

func (t *TCP) startListener(ctx context.Context, ln net.Listener) {
	t.stopWaiter.Add(1)
	listener := NewTCPListener(
		ctx,
		ln,
		t.store,
		t.log.Named("listener").With(zap.Int("listener", len(t.listeners))),
	)

	t.listeners = append(t.listeners, listener)

	go func() {
		defer t.stopWaiter.Done()

		if err := listener.Listen(); err != nil {
			// TODO(rolly) a listener whose accept loop fails is not restarted, so we can
			//             end up serving with fewer listeners than configured
			t.log.Error("Failed to listen", zap.Error(err))
		}
	}()
}

// Close immediately stops accepting, closes active connections and waits
// for every connection goroutine to exit.
func (t *TCP) Close() error {
	t.log.Info("Stopping TCP server")

	if t.cancel != nil {
		t.cancel()
	}

	err := t.closeListeners()

	t.stopWaiter.Wait()
	t.log.Info("Listeners stopped")

	return err
}

func (t *TCP) closeListeners() (err error) {
	for _, listener := range t.listeners {
		err = multierr.Append(err, listener.Close())
	}

	return err
}

type TCPListener struct {
	ctx context.Context

	listener net.Listener
	log      *zap.Logger

	mu          sync.Mutex
	closed      bool
	activeConns map[*TCPConn]struct{}
	connWaiter  sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	store storage.Directory
}

func NewTCPListener(
	ctx context.Context,
	listener net.Listener,
	store storage.Directory,
	log *zap.Logger,
) *TCPListener {
	return &TCPListener{
		ctx:         ctx,
		listener:    listener,
		activeConns: make(map[*TCPConn]struct{}),
		store:       store,
		log:         log,
	}
}

// Close stops accepting and closes every active connection. It is safe to
// call more than once.
func (t *TCPListener) Close() error {
	t.closeOnce.Do(func() {
		t.log.Info("Closing listener")

		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.closeErr = err
		}

		t.mu.Lock()
		defer t.mu.Unlock()

		t.closed = true
		for conn := range t.activeConns {
			if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				t.closeErr = multierr.Append(t.closeErr, err)
			}
		}
	})

	return t.closeErr
}

// Listen accepts connections until the listener is closed, handing each one
// to its own goroutine. It waits for those goroutines before returning.
func (t *TCPListener) Listen() error {
	defer func() {
		t.log.Info("Waiting for connections to finish")
		t.connWaiter.Wait()
		t.log.Info("Listener stopped")
	}()

	go func() {
		<-t.ctx.Done()
		t.Close()
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || t.ctx.Err() != nil {
				// The listener was closed while we were waiting for new connections
				// that's fine.
				return nil
			}

			return err
		}

		tcpConn := NewTCPConn(t.ctx, conn, t.store, t.log.Named("conn"))

		if !t.addConn(tcpConn) {
			// Close raced with Accept
			conn.Close()
			return nil
		}

		go func() {
			defer t.connWaiter.Done()
			defer t.removeConn(tcpConn)

			tcpConn.Start()
		}()
	}
}

// addConn tracks conn so Close can reach it. It returns false once the
// listener has been closed.
func (t *TCPListener) addConn(conn *TCPConn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}

	t.activeConns[conn] = struct{}{}
	t.connWaiter.Add(1)

	return true
}

func (t *TCPListener) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

// TCPConn serves the single request carried by an accepted connection.
type TCPConn struct {
	ctx context.Context

	conn  net.Conn
	store storage.Directory

	log *zap.Logger
}

func NewTCPConn(
	ctx context.Context,
	conn net.Conn,
	store storage.Directory,
	log *zap.Logger,
) *TCPConn {
	return &TCPConn{
		ctx:   ctx,
		conn:  conn,
		store: store,
		log:   log.With(zap.String("remote", conn.RemoteAddr().String())),
	}
}

func (t *TCPConn) Close() error {
	return t.conn.Close()
}

// Start handles one request and closes the connection. A panic while
// handling is contained here, the client gets a lock unavailable response.
func (t *TCPConn) Start() {
	defer func() {
		if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.log.Warn("Failed to close connection cleanly", zap.Error(err))
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			t.log.Error("Recovered from panic while handling request",
				zap.Any("panic", r),
				zap.Stack("stack"))

			if err := protocol.WriteOutcome(t.conn, protocol.Outcome{Err: storage.ErrLockUnavailable}); err != nil {
				t.log.Warn("Failed to report panic to client", zap.Error(err))
			}
		}
	}()

	ex, err := Handle(t.ctx, t.conn, t.store)

	status, _ := protocol.Encode(ex.Outcome)
	log := t.log.With(
		zap.Stringer("op", ex.Op),
		zap.String("username", string(ex.Username)),
		zap.Int("status", int(status)))

	if err != nil {
		log.Warn("Failed to respond to client", zap.Error(err))
		return
	}

	if ex.Outcome.Err != nil {
		log.Info("Request failed", zap.NamedError("reason", ex.Outcome.Err))
		return
	}

	log.Debug("Request handled")
}
