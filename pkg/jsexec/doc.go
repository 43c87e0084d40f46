// Package jsexec runs authority-supplied JavaScript in a session-scoped
// goja runtime and reports results back over the channel.
//
// Requests run one at a time, in arrival order, on a dedicated worker
// goroutine; the runtime is never touched concurrently. Each request races
// its optional timeout: on expiry the runtime is interrupted and no feedback
// is sent. Feedback (result, error, correlation UID) is sent only when the
// request asked for it and finished in time.
package jsexec
