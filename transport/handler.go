package transport

import (
	"context"
	"io"

	"github.com/luma/keydir/protocol"
	"github.com/luma/keydir/storage"
)

// Exchange records what happened to a single request.
type Exchange struct {
	// Op is OpInvalid and Username empty until they have been read.
	Op       protocol.Operation
	Username storage.Username
	Outcome  protocol.Outcome
}

// Handle reads one request from rw, applies it to dir and writes the
// response back to rw.
//
//   AwaitOperation -> AwaitUsername [-> AwaitKey] -> Encode -> Write -> Done
//
// A failed read skips the directory and goes straight to Encode. The
// returned error is only set when the response could not be written, in
// which case it wraps protocol.ErrCannotWriteToStream. No step is retried.
func Handle(ctx context.Context, rw io.ReadWriter, dir storage.Directory) (*Exchange, error) {
	ex := &Exchange{Op: protocol.OpInvalid}
	ex.Outcome = serve(ctx, rw, dir, ex)

	if err := protocol.WriteOutcome(rw, ex.Outcome); err != nil {
		return ex, err
	}

	return ex, nil
}

func serve(ctx context.Context, r io.Reader, dir storage.Directory, ex *Exchange) protocol.Outcome {
	op, err := protocol.ReadOperation(r)
	if err != nil {
		return protocol.Outcome{Err: err}
	}
	ex.Op = op

	username, err := protocol.ReadUsername(r)
	if err != nil {
		return protocol.Outcome{Err: err}
	}
	ex.Username = username

	switch op {
	case protocol.OpGet:
		key, err := dir.Get(ctx, username)
		if err != nil {
			return protocol.Outcome{Err: err}
		}

		return protocol.Outcome{Key: &key}

	default:
		key, err := protocol.ReadPublicKey(r)
		if err != nil {
			return protocol.Outcome{Err: err}
		}

		return protocol.Outcome{Err: dir.Add(ctx, username, key)}
	}
}
