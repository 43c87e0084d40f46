package jsexec

import (
	stderrors "errors"

	"github.com/vango-dev/livesync/internal/errors"
)

var (
	// ErrExec matches script failures (E401).
	ErrExec = errors.New(errors.CodeExecFailed)

	// ErrTimeout matches executions that lost the timeout race (E402).
	ErrTimeout = errors.New(errors.CodeExecTimeout)

	// ErrDuplicate is returned when a correlation UID is already outstanding.
	ErrDuplicate = stderrors.New("jsexec: correlation uid already outstanding")

	// ErrClosed is returned after Close.
	ErrClosed = stderrors.New("jsexec: bridge closed")
)
