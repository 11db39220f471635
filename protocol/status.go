package protocol

import (
	"errors"

	"github.com/luma/keydir/storage"
)

// Status is the numeric code carried by every response envelope.
type Status int

const (
	StatusOK                    Status = 200
	StatusInvalidRequestType    Status = 500
	StatusCannotReadUsername    Status = 501
	StatusCannotReadPublicKey   Status = 502
	StatusUsernameNotFound      Status = 503
	StatusUsernameAlreadyExists Status = 504
	StatusLockUnavailable       Status = 505
	StatusCannotWriteToStream   Status = 506
)

var (
	ErrInvalidRequestType  = errors.New("invalid request type")
	ErrCannotReadUsername  = errors.New("cannot read username")
	ErrCannotReadPublicKey = errors.New("cannot read public key")
	ErrCannotWriteToStream = errors.New("cannot write response to stream")
)

// statusMessages are the payloads sent for each failure status.
//
// The 503 and 504 texts are deliberately crossed relative to the statuses
// they belong to. Deployed clients match on these exact strings.
var statusMessages = map[Status]string{
	StatusInvalidRequestType:    "Invalid Request",
	StatusCannotReadUsername:    "Cannot read inputed username",
	StatusCannotReadPublicKey:   "Cannot read inputed key",
	StatusUsernameNotFound:      "Given username already exists",
	StatusUsernameAlreadyExists: "Given username not found",
	StatusLockUnavailable:       "Mutex cannot be locked",
	StatusCannotWriteToStream:   "Cannot return to user",
}

// Message returns the payload text for a failure status and "" for
// StatusOK or unknown statuses.
func (s Status) Message() string {
	return statusMessages[s]
}

// StatusOf classifies err into the status sent on the wire. A nil error is
// StatusOK. Errors outside the known taxonomy can only come from the store
// layer and are reported as StatusLockUnavailable.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidRequestType):
		return StatusInvalidRequestType
	case errors.Is(err, ErrCannotReadUsername):
		return StatusCannotReadUsername
	case errors.Is(err, ErrCannotReadPublicKey):
		return StatusCannotReadPublicKey
	case errors.Is(err, storage.ErrUsernameNotFound):
		return StatusUsernameNotFound
	case errors.Is(err, storage.ErrUsernameAlreadyExists):
		return StatusUsernameAlreadyExists
	case errors.Is(err, ErrCannotWriteToStream):
		return StatusCannotWriteToStream
	default:
		return StatusLockUnavailable
	}
}
