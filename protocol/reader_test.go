package protocol_test

import (
	"bytes"
	"errors"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/keydir/protocol"
	"github.com/luma/keydir/storage"
)

var _ = Describe("Reader", func() {
	Describe("ReadOperation()", func() {
		It("decodes 0 as Get", func() {
			op, err := protocol.ReadOperation(bytes.NewReader([]byte{0}))
			Expect(err).To(Succeed())
			Expect(op).To(Equal(protocol.OpGet))
		})

		It("decodes 1 as Add", func() {
			op, err := protocol.ReadOperation(bytes.NewReader([]byte{1}))
			Expect(err).To(Succeed())
			Expect(op).To(Equal(protocol.OpAdd))
		})

		It("rejects every other selector", func() {
			for _, b := range []byte{2, 3, 'G', 127, 255} {
				op, err := protocol.ReadOperation(bytes.NewReader([]byte{b}))
				Expect(err).To(MatchError(protocol.ErrInvalidRequestType))
				Expect(op).To(Equal(protocol.OpInvalid))
			}
		})

		It("reports a read failure as an invalid request type", func() {
			op, err := protocol.ReadOperation(bytes.NewReader(nil))
			Expect(err).To(MatchError(protocol.ErrInvalidRequestType))
			Expect(op).To(Equal(protocol.OpInvalid))

			op, err = protocol.ReadOperation(iotest.ErrReader(errors.New("connection reset")))
			Expect(err).To(MatchError(protocol.ErrInvalidRequestType))
			Expect(op).To(Equal(protocol.OpInvalid))
		})

		It("consumes only the selector byte", func() {
			r := bytes.NewReader([]byte{1, 'b', 'o', 'b'})
			_, err := protocol.ReadOperation(r)
			Expect(err).To(Succeed())
			Expect(r.Len()).To(Equal(3))
		})
	})

	Describe("ReadUsername()", func() {
		It("reads a username", func() {
			username, err := protocol.ReadUsername(strings.NewReader("alice"))
			Expect(err).To(Succeed())
			Expect(username).To(Equal(storage.Username("alice")))
		})

		It("accepts multi byte UTF-8", func() {
			username, err := protocol.ReadUsername(strings.NewReader("zoë 🔑"))
			Expect(err).To(Succeed())
			Expect(username).To(Equal(storage.Username("zoë 🔑")))
		})

		It("yields the empty username when the stream is already at EOF", func() {
			username, err := protocol.ReadUsername(bytes.NewReader(nil))
			Expect(err).To(Succeed())
			Expect(username).To(Equal(storage.Username("")))
		})

		It("reads at most 256 bytes", func() {
			r := strings.NewReader(strings.Repeat("a", 300))
			username, err := protocol.ReadUsername(r)
			Expect(err).To(Succeed())
			Expect(username).To(HaveLen(storage.MaxUsernameSize))
			Expect(r.Len()).To(Equal(44))
		})

		It("performs a single read and does not wait for more data", func() {
			r := iotest.OneByteReader(strings.NewReader("alice"))
			username, err := protocol.ReadUsername(r)
			Expect(err).To(Succeed())
			Expect(username).To(Equal(storage.Username("a")))
		})

		It("rejects invalid UTF-8", func() {
			_, err := protocol.ReadUsername(bytes.NewReader([]byte{0xff, 0xfe, 'a'}))
			Expect(err).To(MatchError(protocol.ErrCannotReadUsername))
		})

		It("fails on I/O errors", func() {
			_, err := protocol.ReadUsername(iotest.ErrReader(errors.New("connection reset")))
			Expect(err).To(MatchError(protocol.ErrCannotReadUsername))
		})
	})

	Describe("ReadPublicKey()", func() {
		It("reads exactly 32 bytes", func() {
			data := append(bytes.Repeat([]byte{7}, 32), 'x')
			r := bytes.NewReader(data)

			key, err := protocol.ReadPublicKey(r)
			Expect(err).To(Succeed())
			Expect(key[:]).To(Equal(bytes.Repeat([]byte{7}, 32)))
			Expect(r.Len()).To(Equal(1))
		})

		It("assembles the key across several reads", func() {
			r := iotest.OneByteReader(bytes.NewReader(bytes.Repeat([]byte{3}, 32)))

			key, err := protocol.ReadPublicKey(r)
			Expect(err).To(Succeed())
			Expect(key[31]).To(Equal(byte(3)))
		})

		It("fails on a short read", func() {
			_, err := protocol.ReadPublicKey(bytes.NewReader(bytes.Repeat([]byte{7}, 31)))
			Expect(err).To(MatchError(protocol.ErrCannotReadPublicKey))
		})

		It("fails when there is nothing to read", func() {
			_, err := protocol.ReadPublicKey(bytes.NewReader(nil))
			Expect(err).To(MatchError(protocol.ErrCannotReadPublicKey))
		})
	})
})
