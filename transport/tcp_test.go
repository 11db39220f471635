package transport_test

import (
	"context"
	"io/ioutil"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/keydir/protocol"
	"github.com/luma/keydir/storage"
	"github.com/luma/keydir/transport"
)

// panickingDirectory panics on every lookup.
type panickingDirectory struct {
	storage.Directory
}

func (panickingDirectory) Get(context.Context, storage.Username) (storage.PublicKey, error) {
	panic("lookup exploded")
}

var _ = Describe("transport", func() {
	Describe("TCP", func() {
		var (
			store *storage.InmemoryStore
			tcp   *transport.TCP
		)

		BeforeEach(func() {
			store = storage.NewInmemoryStore()
		})

		AfterEach(func() {
			Expect(tcp.Close()).To(Succeed())
			Expect(store.Close()).To(Succeed())
		})

		It("listens on the desired address", func() {
			tcp = makeTCPServer(store, false)

			conn, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			conn.Close()
		})

		It("serves one request per connection and then closes it", func() {
			tcp = makeTCPServer(store, false)
			Expect(store.Add(context.Background(), "alice", keyOf(9))).To(Succeed())

			resp := get(tcp.Addr(), "alice")
			Expect(resp).To(Equal(envelopeFor(keyOf(9))))
		})

		It("registers keys sent by a client that pauses before the key", func() {
			tcp = makeTCPServer(store, false)

			resp := add(tcp.Addr(), "alice", keyOf(4))
			Expect(resp).To(Equal("{ 'code':200, 'response': }"))
			Expect(store.Get(context.Background(), "alice")).To(Equal(keyOf(4)))

			resp = get(tcp.Addr(), "alice")
			Expect(resp).To(Equal(envelopeFor(keyOf(4))))
		})

		It("shares the port between several listeners when reuseport is enabled", func() {
			tcp = makeTCPServer(store, true)
			Expect(store.Add(context.Background(), "alice", keyOf(2))).To(Succeed())

			for i := 0; i < 8; i++ {
				Expect(get(tcp.Addr(), "alice")).To(Equal(envelopeFor(keyOf(2))))
			}
		})

		It("lets exactly one of many concurrent clients register a username", func() {
			tcp = makeTCPServer(store, true)

			const clients = 16

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				responses = make(map[string]int)
			)

			for i := 0; i < clients; i++ {
				wg.Add(1)

				go func(b byte) {
					defer GinkgoRecover()
					defer wg.Done()

					resp := add(tcp.Addr(), "contended", keyOf(b))

					mu.Lock()
					responses[resp]++
					mu.Unlock()
				}(byte(i))
			}

			wg.Wait()

			Expect(responses).To(HaveKeyWithValue("{ 'code':200, 'response': }", 1))
			Expect(responses).To(HaveKeyWithValue("{ 'code':504, 'response':Given username not found }", clients-1))
		})

		It("contains a panic to the connection that caused it", func() {
			tcp = makeTCPServer(panickingDirectory{store}, false)

			resp := get(tcp.Addr(), "alice")
			Expect(resp).To(Equal("{ 'code':505, 'response':Mutex cannot be locked }"))

			conn, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			conn.Close()
		})

		It("closes connections that are still waiting for a request", func() {
			tcp = makeTCPServer(store, false)

			conn, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			defer conn.Close()

			// Give the server a moment to accept and start reading
			time.Sleep(50 * time.Millisecond)

			closed := make(chan error, 1)
			go func() {
				closed <- tcp.Close()
			}()

			Eventually(closed, 5*time.Second).Should(Receive(BeNil()))

			Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
			_, err = ioutil.ReadAll(conn)
			Expect(err).To(Succeed())
		})
	})
})

func makeTCPServer(dir storage.Directory, reuseport bool) *transport.TCP {
	log, err := zap.NewDevelopment()
	Expect(err).To(Succeed())

	tcp := transport.NewTCP(transport.Options{
		Host:         "127.0.0.1",
		Port:         0,
		NumListeners: 2,
		Reuseport:    reuseport,
		Store:        dir,
		Log:          log,
	})

	Expect(tcp.Start(context.Background())).To(Succeed())

	return tcp
}

func get(addr, username string) string {
	conn, err := net.Dial("tcp", addr)
	Expect(err).To(Succeed())
	defer conn.Close()

	_, err = conn.Write(header(byte(protocol.OpGet), username))
	Expect(err).To(Succeed())

	return readResponse(conn)
}

func add(addr, username string, key storage.PublicKey) string {
	conn, err := net.Dial("tcp", addr)
	Expect(err).To(Succeed())
	defer conn.Close()

	_, err = conn.Write(header(byte(protocol.OpAdd), username))
	Expect(err).To(Succeed())

	// The server reads the username with a single read, so let it land first
	time.Sleep(50 * time.Millisecond)

	_, err = conn.Write(key[:])
	Expect(err).To(Succeed())

	return readResponse(conn)
}

func readResponse(conn net.Conn) string {
	Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

	response, err := ioutil.ReadAll(conn)
	Expect(err).To(Succeed())

	return string(response)
}
