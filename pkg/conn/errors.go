package conn

import (
	"github.com/vango-dev/livesync/internal/errors"
)

var (
	// ErrClosed matches operations on a closed or unopened channel (E301).
	ErrClosed = errors.New(errors.CodeChannelClosed)

	// ErrExhausted matches a reconnect sequence that ran out of attempts (E302).
	ErrExhausted = errors.New(errors.CodeReconnectFailed)
)
