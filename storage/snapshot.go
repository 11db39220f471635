package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/multierr"
)

const emptySnapshot = `{"entries":[]}`

type snapshotEntry struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// Backup serialises the directory as
//
//   {"entries":[{"username":"alice","key":"<hex>"}, ...]}
//
// with entries ordered by username.
func (i *InmemoryStore) Backup() ([]byte, error) {
	var entries []snapshotEntry

	err := i.withLock(func() error {
		entries = make([]snapshotEntry, 0, len(i.values))
		for username, key := range i.values {
			entries = append(entries, snapshotEntry{
				Username: string(username),
				Key:      hex.EncodeToString(key[:]),
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].Username < entries[b].Username
	})

	values := []byte(emptySnapshot)
	for _, entry := range entries {
		var err error
		values, err = sjson.SetBytes(values, "entries.-1", entry)
		if err != nil {
			return nil, err
		}
	}

	return values, nil
}

// Restore imports a snapshot produced by Backup. Either every entry is added
// or, if any entry is invalid or already registered, none are.
func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) {
		return fmt.Errorf("%w: not valid JSON", ErrInvalidSnapshot)
	}

	entries := gjson.GetBytes(values, "entries")
	if !entries.IsArray() {
		return fmt.Errorf("%w: missing entries array", ErrInvalidSnapshot)
	}

	var (
		errs   error
		n      int
		parsed = make(map[Username]PublicKey)
	)

	entries.ForEach(func(_, entry gjson.Result) bool {
		n++

		username, key, err := parseSnapshotEntry(entry)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: %w", n-1, err))
			return true
		}

		if _, ok := parsed[username]; ok {
			errs = multierr.Append(errs, fmt.Errorf("entry %q: %w", username, ErrUsernameAlreadyExists))
			return true
		}

		parsed[username] = key
		return true
	})

	if errs != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, errs)
	}

	return i.withLock(func() error {
		for username := range parsed {
			if _, ok := i.values[username]; ok {
				return fmt.Errorf("%w: entry %q: %v", ErrInvalidSnapshot, username, ErrUsernameAlreadyExists)
			}
		}

		for username, key := range parsed {
			i.values[username] = key
		}

		return nil
	})
}

func parseSnapshotEntry(entry gjson.Result) (Username, PublicKey, error) {
	var key PublicKey

	username := entry.Get("username")
	if username.Type != gjson.String {
		return "", key, errors.New("username must be a string")
	}

	if !utf8.ValidString(username.Str) {
		return "", key, errors.New("username is not valid UTF-8")
	}

	if len(username.Str) > MaxUsernameSize {
		return "", key, fmt.Errorf("username is longer than %d bytes", MaxUsernameSize)
	}

	raw, err := hex.DecodeString(entry.Get("key").String())
	if err != nil {
		return "", key, fmt.Errorf("key is not hex encoded: %w", err)
	}

	if len(raw) != PublicKeySize {
		return "", key, fmt.Errorf("key is %d bytes, expected %d", len(raw), PublicKeySize)
	}

	copy(key[:], raw)

	return Username(username.Str), key, nil
}
