package protocol

import "fmt"

// Operation is the action selected by the first byte of a request.
type Operation byte

const (
	OpGet Operation = 0
	OpAdd Operation = 1

	// OpInvalid never appears on the wire as a valid selector. It marks a
	// request whose selector could not be decoded.
	OpInvalid Operation = 0xff
)

func (o Operation) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpAdd:
		return "ADD"
	case OpInvalid:
		return "INVALID"
	default:
		return fmt.Sprintf("Operation(%d)", byte(o))
	}
}
