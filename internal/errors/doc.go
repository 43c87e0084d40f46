// Package errors provides structured error values for livesync.
//
// Every error that crosses a component boundary carries a stable code
// (e.g. "E201") mapped to a category, a short message and a longer detail.
// Codes are grouped by component:
//
//   - E1xx: wire protocol (decode failures, unknown opcodes)
//   - E2xx: node registry (collisions, unknown UIDs)
//   - E3xx: connection (closed channel, reconnect exhausted)
//   - E4xx: remote execution
//   - E5xx: navigation and authority desync
//   - E6xx: drift
//
// # Usage
//
//	err := errors.New(errors.CodeCollision).
//	    WithDetail("uid \"b1\" already registered").
//	    WithSuggestion("unregister the previous node first")
//
//	if errors.Is(err, registry.ErrCollision) {
//	    // authority and client disagree about the tree
//	}
//
// Two *SyncError values match under errors.Is when their codes are equal,
// so package-level sentinels can be built with New(code).
package errors
