package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/luma/keydir/storage"
)

var (
	ErrMalformedResponse = errors.New("Response is malformed")
	ErrMalformedKey      = errors.New("Response key is malformed")

	envelopePrefix = []byte("{ 'code':")
	envelopeInfix  = []byte(", 'response':")
	envelopeSuffix = []byte(" }")
)

// Response is a decoded response envelope.
type Response struct {
	Status  Status
	Payload string
}

// ParseEnvelope decodes a response record produced by Envelope.
func ParseEnvelope(data []byte) (*Response, error) {
	if !bytes.HasPrefix(data, envelopePrefix) || !bytes.HasSuffix(data, envelopeSuffix) {
		return nil, fmt.Errorf("Failed to parse '%s': %w", string(data), ErrMalformedResponse)
	}

	body := data[len(envelopePrefix) : len(data)-len(envelopeSuffix)]

	idx := bytes.Index(body, envelopeInfix)
	if idx < 0 {
		return nil, fmt.Errorf("Failed to parse '%s': %w", string(data), ErrMalformedResponse)
	}

	code, err := strconv.Atoi(string(body[:idx]))
	if err != nil {
		return nil, fmt.Errorf("Failed to parse code '%s': %w", string(body[:idx]), ErrMalformedResponse)
	}

	return &Response{
		Status:  Status(code),
		Payload: string(body[idx+len(envelopeInfix):]),
	}, nil
}

// Key decodes the payload of a successful Get response.
func (r *Response) Key() (storage.PublicKey, error) {
	return ParseKey(r.Payload)
}

// ErrorOrNil returns the error matching a failure status. Otherwise it
// returns nil.
func (r *Response) ErrorOrNil() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusInvalidRequestType:
		return ErrInvalidRequestType
	case StatusCannotReadUsername:
		return ErrCannotReadUsername
	case StatusCannotReadPublicKey:
		return ErrCannotReadPublicKey
	case StatusUsernameNotFound:
		return storage.ErrUsernameNotFound
	case StatusUsernameAlreadyExists:
		return storage.ErrUsernameAlreadyExists
	case StatusLockUnavailable:
		return storage.ErrLockUnavailable
	case StatusCannotWriteToStream:
		return ErrCannotWriteToStream
	default:
		return fmt.Errorf("unknown status %d: %s", int(r.Status), r.Payload)
	}
}

// ParseKey decodes the "[b0, b1, ...]" rendering produced by FormatKey.
func ParseKey(payload string) (storage.PublicKey, error) {
	var key storage.PublicKey

	if !strings.HasPrefix(payload, "[") || !strings.HasSuffix(payload, "]") {
		return key, fmt.Errorf("Failed to parse '%s': %w", payload, ErrMalformedKey)
	}

	parts := strings.Split(payload[1:len(payload)-1], ", ")
	if len(parts) != storage.PublicKeySize {
		return key, fmt.Errorf("Failed to parse '%s', found %d bytes: %w", payload, len(parts), ErrMalformedKey)
	}

	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return key, fmt.Errorf("Failed to parse byte %d '%s': %w", i, part, ErrMalformedKey)
		}
		key[i] = byte(v)
	}

	return key, nil
}
