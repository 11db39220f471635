package protocol

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/luma/keydir/storage"
)

// ReadOperation reads the single operation selector byte.
//
// A failed read is reported as ErrInvalidRequestType, the same as an unknown
// selector, and returns OpInvalid.
func ReadOperation(r io.Reader) (Operation, error) {
	var buf [1]byte

	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return OpInvalid, fmt.Errorf("%w: %v", ErrInvalidRequestType, err)
	}

	switch op := Operation(buf[0]); op {
	case OpGet, OpAdd:
		return op, nil
	default:
		return OpInvalid, fmt.Errorf("%w: unknown operation %d", ErrInvalidRequestType, buf[0])
	}
}

// ReadUsername performs one read of at most storage.MaxUsernameSize bytes
// and decodes it as UTF-8.
//
// It does not loop to fill the buffer, so a username split across several
// writes is truncated to whatever the first read returns. A read that hits
// EOF without data yields the empty username.
func ReadUsername(r io.Reader) (storage.Username, error) {
	buf := make([]byte, storage.MaxUsernameSize)

	n, err := r.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %v", ErrCannotReadUsername, err)
	}

	if !utf8.Valid(buf[:n]) {
		return "", fmt.Errorf("%w: username is not valid UTF-8", ErrCannotReadUsername)
	}

	return storage.Username(buf[:n]), nil
}

// ReadPublicKey reads exactly storage.PublicKeySize bytes.
func ReadPublicKey(r io.Reader) (storage.PublicKey, error) {
	var key storage.PublicKey

	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("%w: %v", ErrCannotReadPublicKey, err)
	}

	return key, nil
}
