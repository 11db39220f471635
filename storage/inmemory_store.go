package storage

import (
	"context"
	"sync"
)

type InmemoryStore struct {
	mu       sync.Mutex
	values   map[Username]PublicKey
	poisoned bool

	// stop will be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: make(map[Username]PublicKey),
		stop:   make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.stopOnce.Do(func() {
		close(i.stop)
	})

	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, username Username) (key PublicKey, err error) {
	err = i.withLock(func() error {
		value, ok := i.values[username]
		if !ok {
			return ErrUsernameNotFound
		}

		key = value
		return nil
	})

	return key, err
}

func (i *InmemoryStore) Add(ctx context.Context, username Username, key PublicKey) error {
	return i.withLock(func() error {
		if _, ok := i.values[username]; ok {
			return ErrUsernameAlreadyExists
		}

		i.values[username] = key
		return nil
	})
}

func (i *InmemoryStore) Len() (n int, err error) {
	err = i.withLock(func() error {
		n = len(i.values)
		return nil
	})

	return n, err
}

// withLock runs fn while holding the store lock. A panic inside fn poisons the
// store: the panic is re-raised and every later call fails with
// ErrLockUnavailable. A closed store is also unavailable.
func (i *InmemoryStore) withLock(fn func() error) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.poisoned || !i.isRunning() {
		return ErrLockUnavailable
	}

	defer func() {
		if r := recover(); r != nil {
			i.poisoned = true
			panic(r)
		}
	}()

	return fn()
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Directory = (*InmemoryStore)(nil)
