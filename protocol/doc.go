// Package protocol implements the wire format keydir uses to talk to its
// clients.
//
// Each connection carries exactly one request and one response.
//
// === Requests
//
//   [1 byte operation][payload]
//
// - operation 0 (Get): payload is the username, at most 256 bytes of UTF-8,
//                      sent as a single chunk.
// - operation 1 (Add): payload is the username, sent as a single chunk,
//                      followed by exactly 32 bytes of public key.
//
// Any other operation byte is a protocol error.
//
// The username is read with one best-effort read rather than up to a
// delimiter or length prefix. Clients must send the username as its own write
// and then pause (or half-close) before sending anything else, otherwise the
// key bytes can be swallowed into the username.
//
// === Responses
//
// A single text record, with no trailing newline:
//
//   { 'code':<int>, 'response':<payload> }
//
// The payload is inserted verbatim. It is not quoted or escaped, so the
// envelope is not JSON. A successful Get renders the key as a decimal byte
// array, e.g. `[9, 9, ..., 9]`.
//
// === Status codes
//
//   200 success
//   500 invalid request type
//   501 cannot read username
//   502 cannot read public key
//   503 username not found
//   504 username already exists
//   505 directory lock unavailable
//   506 cannot write the response
//
package protocol
