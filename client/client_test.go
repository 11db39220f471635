package client_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/keydir/client"
	"github.com/luma/keydir/protocol"
	"github.com/luma/keydir/storage"
	"github.com/luma/keydir/transport"
)

func keyOf(b byte) storage.PublicKey {
	var key storage.PublicKey
	for i := range key {
		key[i] = b
	}
	return key
}

var _ = Describe("Client", func() {
	var (
		ctx   context.Context
		store *storage.InmemoryStore
		tcp   *transport.TCP
		c     *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = storage.NewInmemoryStore()

		tcp = transport.NewTCP(transport.Options{
			Host:  "127.0.0.1",
			Store: store,
		})
		Expect(tcp.Start(ctx)).To(Succeed())

		c = client.New(client.Options{Addr: tcp.Addr()})
	})

	AfterEach(func() {
		Expect(tcp.Close()).To(Succeed())
		Expect(store.Close()).To(Succeed())
	})

	It("registers and looks up a key", func() {
		Expect(c.Register(ctx, "alice", keyOf(9))).To(Succeed())
		Expect(c.Lookup(ctx, "alice")).To(Equal(keyOf(9)))
	})

	It("returns the raw responses", func() {
		resp, err := c.Add(ctx, "alice", keyOf(9))
		Expect(err).To(Succeed())
		Expect(resp).To(Equal(&protocol.Response{Status: protocol.StatusOK}))

		resp, err = c.Get(ctx, "bob")
		Expect(err).To(Succeed())
		Expect(resp).To(Equal(&protocol.Response{
			Status:  protocol.StatusUsernameNotFound,
			Payload: "Given username already exists",
		}))
	})

	It("surfaces failure statuses as errors", func() {
		_, err := c.Lookup(ctx, "bob")
		Expect(err).To(MatchError(storage.ErrUsernameNotFound))

		Expect(c.Register(ctx, "alice", keyOf(1))).To(Succeed())
		Expect(c.Register(ctx, "alice", keyOf(2))).To(MatchError(storage.ErrUsernameAlreadyExists))
		Expect(c.Lookup(ctx, "alice")).To(Equal(keyOf(1)))
	})

	It("refuses usernames longer than the server reads", func() {
		long := make([]byte, storage.MaxUsernameSize+1)
		for i := range long {
			long[i] = 'a'
		}

		_, err := c.Get(ctx, storage.Username(long))
		Expect(err).To(MatchError(protocol.ErrUsernameTooLong))
	})

	It("fails when the server is unreachable", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(Succeed())
		addr := ln.Addr().String()
		Expect(ln.Close()).To(Succeed())

		_, err = client.New(client.Options{Addr: addr}).Get(ctx, "alice")
		Expect(err).To(HaveOccurred())
	})

	It("gives up when the context is cancelled during the pause", func() {
		slow := client.New(client.Options{Addr: tcp.Addr(), Pause: time.Minute})

		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		_, err := slow.Add(cctx, "alice", keyOf(1))
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(store.Len()).To(Equal(0))
	})

	It("sends the key straight away when the pause is disabled", func() {
		eager := client.New(client.Options{Addr: tcp.Addr(), Pause: -1})

		cctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		// Without the pause the key may land in the username read, either
		// outcome is a response rather than a timeout
		resp, err := eager.Add(cctx, "alice", keyOf(1))
		Expect(err).To(Succeed())
		Expect(resp.Status).To(BeElementOf(protocol.StatusOK, protocol.StatusCannotReadPublicKey))
	})
})
