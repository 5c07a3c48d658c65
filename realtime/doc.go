// Package realtime runs the two-loop harness around a guarded handlerswitch.State.
//
// A Runtime owns two goroutines that share one *handlerswitch.Guarded:
//   - the mutator loop applies the next scripted Message every Config.MutateEvery
//   - the actor loop invokes the active handler every Config.ActEvery and
//     observes the outcome
//
// # Example Usage
//
//	g := handlerswitch.NewGuarded(handlerswitch.NewState())
//	rt := realtime.NewRuntime(g, realtime.Config{
//		MutateEvery: 2 * time.Second,
//		ActEvery:    500 * time.Millisecond,
//	})
//	if err := rt.Start(ctx); err != nil {
//		return err
//	}
//	defer rt.Stop()
//
// # Locking
//
// Each iteration takes the lock fresh, does its work, and releases it before
// waiting for the next tick. Neither loop holds a reference into the State
// between iterations, so the other loop is never blocked for a whole interval.
//
// # Ordering Guarantees
//
// The two loops interleave freely. The only guarantee is mutual exclusion:
// the actor may miss transitions, and transitions and actions do not
// alternate in any fixed pattern.
//
// # Shutdown
//
// Both loops check their context once per iteration. Cancelling the context
// passed to Start, or calling Stop, ends both. If the guarded State is
// poisoned (a panic while the lock was held), the loop that sees it logs the
// *handlerswitch.LockError and exits; the other loop is unaffected until it
// hits the same error.
package realtime
