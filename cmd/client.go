package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luma/keydir/client"
	"github.com/luma/keydir/internal/env"
	"github.com/luma/keydir/protocol"
	"github.com/luma/keydir/storage"
)

var (
	// The keydir server to talk to
	addr string

	// How long a client command may take in total
	timeout time.Duration
)

func init() {
	for _, c := range []*cobra.Command{GetCmd, AddCmd} {
		flags := c.Flags()

		flags.StringVar(&addr, "addr", "127.0.0.1:7363", "The keydir server to connect to")
		flags.DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the server")
	}
}

var GetCmd = &cobra.Command{
	Use:   "get USERNAME",
	Short: "Look up the public key registered for a username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(cmd, func(ctx context.Context, c *client.Client) (*protocol.Response, error) {
			return c.Get(ctx, storage.Username(args[0]))
		})
	},
}

var AddCmd = &cobra.Command{
	Use:   "add USERNAME HEXKEY",
	Short: "Register a 32 byte, hex encoded, public key for a username",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseHexKey(args[1])
		if err != nil {
			return err
		}

		return runClient(cmd, func(ctx context.Context, c *client.Client) (*protocol.Response, error) {
			return c.Add(ctx, storage.Username(args[0]), key)
		})
	},
}

// runClient sends one request and prints the raw response envelope. A
// failure status is returned as an error so the exit code reflects it.
func runClient(cmd *cobra.Command, send func(context.Context, *client.Client) (*protocol.Response, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return err
	}

	c := client.New(client.Options{
		Addr:  addr,
		Pause: clientPause(conf),
	})

	resp, err := send(ctx, c)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), protocol.Envelope(resp.Status, resp.Payload))

	return resp.ErrorOrNil()
}

func parseHexKey(s string) (storage.PublicKey, error) {
	var key storage.PublicKey

	raw, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("key must be hex encoded: %w", err)
	}

	if len(raw) != storage.PublicKeySize {
		return key, fmt.Errorf("key must be %d bytes, got %d", storage.PublicKeySize, len(raw))
	}

	copy(key[:], raw)

	return key, nil
}

// clientPause maps the configured pause onto client.Options. The config
// already defaults to 50ms, so a zero there was set on purpose and turns the
// pause off.
func clientPause(conf *env.Config) time.Duration {
	if conf.ClientPause <= 0 {
		return -1
	}

	return conf.ClientPause
}
