package storage

import (
	"context"
	"errors"
)

const (
	// MaxUsernameSize is the largest username, in bytes, the directory accepts.
	MaxUsernameSize = 256

	// PublicKeySize is the size, in bytes, of every registered public key.
	PublicKeySize = 32
)

var (
	ErrUsernameNotFound      = errors.New("username not found")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrLockUnavailable       = errors.New("directory lock cannot be acquired")
	ErrInvalidSnapshot       = errors.New("invalid directory snapshot")
)

// Username is the key of the directory. It is always valid UTF-8.
type Username string

// PublicKey is an opaque 32 byte key. Its contents are never validated.
type PublicKey [PublicKeySize]byte

// Directory maps usernames to public keys. Implementations must be safe for
// concurrent use by every connection handler.
type Directory interface {
	// Get returns the key registered for username, or ErrUsernameNotFound.
	Get(ctx context.Context, username Username) (PublicKey, error)

	// Add registers key for username. It fails with ErrUsernameAlreadyExists
	// if the username is taken; an existing key is never overwritten.
	Add(ctx context.Context, username Username, key PublicKey) error

	// Len returns the number of registered usernames.
	Len() (int, error)

	Restore(values []byte) error
	Backup() ([]byte, error)

	Close() error
}
