package protocol

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/luma/keydir/storage"
)

var (
	ErrUsernameTooLong = fmt.Errorf("username is longer than %d bytes", storage.MaxUsernameSize)
	ErrUsernameInvalid = errors.New("username is not valid UTF-8")
)

// WriteRequestHeader writes the operation byte and the username as one
// chunk. For OpAdd the caller follows up with WriteKey once the server has
// had a chance to read the username.
func WriteRequestHeader(w io.Writer, op Operation, username storage.Username) error {
	if len(username) > storage.MaxUsernameSize {
		return ErrUsernameTooLong
	}

	if !utf8.ValidString(string(username)) {
		return ErrUsernameInvalid
	}

	b := make([]byte, 0, 1+len(username))
	b = append(b, byte(op))
	b = append(b, username...)

	_, err := w.Write(b)
	return err
}

func WriteKey(w io.Writer, key storage.PublicKey) error {
	_, err := w.Write(key[:])
	return err
}
