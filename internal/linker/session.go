package linker

import (
	"context"

	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/interrupt"
)

// Session is the per-program-call context threaded through a wazero
// execution via context.Context, standing in for wasmi's Caller<T> where T
// is shared transaction state. wazero host functions cannot close over
// per-instance data the way wasmi's func_wrap closures do once a host
// module is registered once per runtime (see internal/code/cache.go's
// per-engine compiled-module note) — so instead every call into a
// program's exported entry point is made with a ctx carrying a *Session,
// and host functions pull what they need from it, the same way a
// wazero runtime wrapper does for its ExecutionContext.
type Session struct {
	// ThisCode is the content hash of the program currently executing,
	// answering starstream_this_code.
	ThisCode code.Hash

	// Interrupts receives the Interrupt a host import raises; the
	// program's goroutine sends on it and then blocks on Resume.
	Interrupts chan<- interrupt.Interrupt
	// Resume delivers the values the scheduler resumes this program with
	// after handling an Interrupt.
	Resume <-chan []uint64

	// Identities resolves the scrambled i64 aliases a host import receives
	// back into the UtxoId/TokenId they stand for. Shared across every
	// program in the transaction, since aliases are minted transaction-wide.
	Identities *identity.Table
}

type sessionKey struct{}

// WithSession returns a context carrying sess, retrievable with FromContext.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// FromContext retrieves the Session stashed by WithSession. Panics if
// absent: every exported call into a program's WASM instance must be made
// through a context produced by WithSession, so a missing Session is a
// wiring bug in the scheduler, not a reachable runtime condition.
func FromContext(ctx context.Context) *Session {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	if !ok {
		panic("linker: context has no Session; host import called outside a scheduled program call")
	}
	return sess
}

// Raise sends i on the session's Interrupts channel and blocks for the
// scheduler's resume values. It is the single choke point every host
// import uses to hand control back to the scheduler, mirroring the
// original's `host(interrupt)` helper that turns an Interrupt into a
// wasmi trap.
func (s *Session) Raise(i interrupt.Interrupt) []uint64 {
	s.Interrupts <- i
	return <-s.Resume
}
