// Package reactor implements a single-threaded event reactor multiplexing
// software timers and I/O readiness into callback dispatch.
//
// The reactor is the runtime substrate for an embedded scripting environment:
// it provides setTimeout/setInterval-style timers and non-blocking descriptor
// readiness without native threads. Each loop iteration expires due timers,
// computes a wait deadline from the nearest pending timer, blocks on the
// readiness primitive, then dispatches ready descriptors in watched-list
// order.
//
// # Re-entrancy
//
// Callbacks run synchronously on the loop goroutine and may freely call
// [Loop.CreateTimer], [Loop.DeleteTimer], [Loop.WatchFD], and
// [Loop.RequestExit], including cancelling the timer whose callback is
// currently executing and unwatching the descriptor currently being
// dispatched. The timer being fired is isolated in a single-slot holder for
// the duration of its callback; descriptors removed mid-dispatch are
// tombstoned and compacted out before the next blocking wait, so index
// positions stay stable for the remainder of the pass.
//
// # Termination
//
// The loop stops on [Loop.RequestExit], on context cancellation, or when no
// pending timers and no watched descriptors remain. Once stopped it never
// dispatches again.
//
// # Threading
//
// The loop is single-threaded by design. With the exception of
// [Loop.RequestExit], which is safe from any goroutine, all operations must
// be invoked either before [Loop.Run] or from within callbacks running on
// the loop goroutine.
package reactor
