package protocol

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/luma/keydir/storage"
)

// Outcome is the result of handling one request. Key is only set for a
// successful Get.
type Outcome struct {
	Key *storage.PublicKey
	Err error
}

// Encode maps an outcome to its status and payload.
func Encode(o Outcome) (Status, string) {
	status := StatusOf(o.Err)

	if status != StatusOK {
		return status, status.Message()
	}

	if o.Key == nil {
		return StatusOK, ""
	}

	return StatusOK, FormatKey(*o.Key)
}

// Envelope formats the response record. The payload is not quoted or
// escaped.
func Envelope(status Status, payload string) string {
	return fmt.Sprintf("{ 'code':%d, 'response':%s }", int(status), payload)
}

// FormatKey renders key as a decimal byte array, e.g. "[0, 1, 255]".
func FormatKey(key storage.PublicKey) string {
	var b strings.Builder

	b.WriteByte('[')
	for i, v := range key {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	b.WriteByte(']')

	return b.String()
}

// WriteOutcome encodes o and writes the envelope to w in a single write.
func WriteOutcome(w io.Writer, o Outcome) error {
	status, payload := Encode(o)

	if _, err := io.WriteString(w, Envelope(status, payload)); err != nil {
		return fmt.Errorf("%w: %v", ErrCannotWriteToStream, err)
	}

	return nil
}
