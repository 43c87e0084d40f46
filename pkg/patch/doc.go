// Package patch applies authority patch batches to the displayed document.
//
// Each patch instruction is turned into a mutation closure. Closures are
// queued in receipt order and drained together on the next tick of an
// injected Ticker, so a batch is always applied as a unit:
//
//	eng := patch.New(doc, reg, dispatcher, patch.Options{Ticker: ticker})
//	eng.Apply(patches)
//	eng.AfterBatch(func() { ... }) // runs once the batch above has drained
//
// A patch that targets an unregistered UID is a no-op. A closure that fails
// or panics is logged and skipped; the rest of the batch still runs.
package patch
