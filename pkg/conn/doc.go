// Package conn manages the WebSocket channel between a client session and
// its authority.
//
// A Manager dials the authority, runs one read and one write goroutine per
// connection (read/write deadlines plus ping keepalive), decodes inbound
// frames and hands them to a Handler. When the link drops it runs a single
// bounded exponential backoff sequence:
//
//	m := conn.New(conn.Options{
//	    URL:     "wss://example.com/_live",
//	    Handler: func(f protocol.Frame) { session.Post(...) },
//	})
//	if err := m.Connect(ctx); err != nil { ... }
//	m.Send(ev.Frame())
//
// Send never returns an error: when the channel is not open it reconnects
// once and retries, logging if the frame is dropped.
package conn
