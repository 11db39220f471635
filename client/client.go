package client

import (
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/luma/keydir/protocol"
	"github.com/luma/keydir/storage"
)

// DefaultPause is how long Add waits between sending the username and the
// key.
const DefaultPause = 50 * time.Millisecond

type Options struct {
	// Addr of the keydir server, host:port
	Addr string

	// Pause between the username and key writes of an Add. The server reads
	// the username with a single read, so the key must not arrive with it.
	// Zero means DefaultPause, a negative value disables the pause.
	Pause time.Duration

	Log *zap.Logger
}

// Client talks to a keydir server. Every call uses its own connection, as
// the server answers a single request per connection.
type Client struct {
	addr   string
	pause  time.Duration
	dialer net.Dialer

	log *zap.Logger
}

func New(options Options) *Client {
	pause := options.Pause
	if pause == 0 {
		pause = DefaultPause
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		addr:  options.Addr,
		pause: pause,
		log:   log,
	}
}

// Get sends a lookup for username and returns the decoded response.
func (c *Client) Get(ctx context.Context, username storage.Username) (*protocol.Response, error) {
	return c.roundTrip(ctx, protocol.OpGet, username, nil)
}

// Add sends a registration of key for username and returns the decoded
// response.
func (c *Client) Add(ctx context.Context, username storage.Username, key storage.PublicKey) (*protocol.Response, error) {
	return c.roundTrip(ctx, protocol.OpAdd, username, &key)
}

// Lookup is Get with the response status converted into an error.
func (c *Client) Lookup(ctx context.Context, username storage.Username) (storage.PublicKey, error) {
	resp, err := c.Get(ctx, username)
	if err != nil {
		return storage.PublicKey{}, err
	}

	if err := resp.ErrorOrNil(); err != nil {
		return storage.PublicKey{}, err
	}

	return resp.Key()
}

// Register is Add with the response status converted into an error.
func (c *Client) Register(ctx context.Context, username storage.Username, key storage.PublicKey) error {
	resp, err := c.Add(ctx, username, key)
	if err != nil {
		return err
	}

	return resp.ErrorOrNil()
}

func (c *Client) roundTrip(
	ctx context.Context,
	op protocol.Operation,
	username storage.Username,
	key *storage.PublicKey,
) (*protocol.Response, error) {
	log := c.log.With(zap.Stringer("op", op), zap.String("username", string(username)))

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	// Unblock any read or write in flight if the context is cancelled
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := protocol.WriteRequestHeader(conn, op, username); err != nil {
		return nil, fmt.Errorf("Failed to send request: %w", err)
	}

	if key != nil {
		if c.pause > 0 {
			select {
			case <-time.After(c.pause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := protocol.WriteKey(conn, *key); err != nil {
			return nil, fmt.Errorf("Failed to send key: %w", err)
		}
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.CloseWrite(); err != nil {
			log.Debug("Failed to half-close connection", zap.Error(err))
		}
	}

	// The server closes the connection once it has responded
	data, err := ioutil.ReadAll(conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("Failed to read response: %w", err)
	}

	resp, err := protocol.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	log.Debug("Received response", zap.Int("status", int(resp.Status)))

	return resp, nil
}
