package protocol

import (
	stderrors "errors"

	"github.com/vango-dev/livesync/internal/errors"
)

// Decoding errors.
var (
	// ErrDecode matches every frame decode failure under errors.Is.
	ErrDecode = errors.New(errors.CodeDecode)

	// ErrUnknownOpcode matches frames whose opcode is not understood.
	ErrUnknownOpcode = errors.New(errors.CodeUnknownOpcode)

	ErrFrameTooLarge      = stderrors.New("protocol: frame too large")
	ErrEmptyFrame         = stderrors.New("protocol: empty frame")
	ErrMaxDepthExceeded   = stderrors.New("protocol: maximum nesting depth exceeded")
	ErrCollectionTooLarge = stderrors.New("protocol: collection count exceeds limit")
)

// decodeError wraps cause as a structured E101 error.
func decodeError(op Opcode, cause error) error {
	return errors.New(errors.CodeDecode).
		With("opcode", op.String()).
		Wrap(cause)
}
