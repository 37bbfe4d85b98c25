// Package effect implements the dynamically registered algebraic effect
// handler stack: a name-indexed stack of (owning
// program, handler address) pairs that a program can push onto, pop from,
// and that a Raise interrupt walks to find who handles it.
package effect

import (
	"errors"
	"fmt"

	"github.com/PaimaStudios/starstream/internal/program"
)

var (
	// ErrNoHandler is returned when Raise finds no registered handler for
	// a name.
	ErrNoHandler = errors.New("effect: no handler registered")

	// ErrNotRegistered is returned by Unregister when the owner has no
	// handler currently on the stack for that name.
	ErrNotRegistered = errors.New("effect: handler not registered for owner")

	// ErrUnregisterOutOfOrder is returned when a program that has a handler
	// for a name attempts to unregister it while the topmost entry for that
	// name belongs to another program. Only the topmost entry of a name's
	// stack can ever be removed, so the stack's structure always matches
	// nested dynamic scopes; silently allowing out-of-order removal would
	// let a program tear down a handler frame before an inner one completed.
	ErrUnregisterOutOfOrder = errors.New("effect: handlers must be unregistered in reverse registration order")

	// ErrAlreadyThrown is returned when a program raises under a name that
	// already has an in-flight raise pending resolution.
	ErrAlreadyThrown = errors.New("effect: an effect is already raised under this name")

	// ErrNotThrown is returned by ResumeThrowing when no raise is pending
	// under a name.
	ErrNotThrown = errors.New("effect: no effect raised under this name")
)

// registration is one entry in a name's handler stack: which program
// installed it, and the WASM address of its handler function.
type registration struct {
	owner       program.Idx
	handlerAddr uint32
}

// Stack is the per-transaction table of registered effect handlers and
// in-flight raises (the original's registered_effect_handler and
// raised_effects maps on TransactionInner).
type Stack struct {
	handlers map[string][]registration
	raised   map[string]program.Idx
}

// NewStack constructs an empty effect-handler stack.
func NewStack() *Stack {
	return &Stack{
		handlers: make(map[string][]registration),
		raised:   make(map[string]program.Idx),
	}
}

// Register pushes owner's handler for name onto the stack, becoming the
// innermost (most recently installed) handler for that name.
func (s *Stack) Register(name string, owner program.Idx, handlerAddr uint32) {
	s.handlers[name] = append(s.handlers[name], registration{owner: owner, handlerAddr: handlerAddr})
}

// Unregister removes owner's handler for name. It must be the most
// recently registered entry for that name; otherwise ErrUnregisterOutOfOrder,
// or ErrNotRegistered when owner has no entry for that name at all.
func (s *Stack) Unregister(name string, owner program.Idx) error {
	entries := s.handlers[name]
	owned := false
	for _, e := range entries {
		if e.owner == owner {
			owned = true
			break
		}
	}
	if !owned {
		return fmt.Errorf("%w: name=%q", ErrNotRegistered, name)
	}
	top := entries[len(entries)-1]
	if top.owner != owner {
		return fmt.Errorf("%w: name=%q", ErrUnregisterOutOfOrder, name)
	}
	s.handlers[name] = entries[:len(entries)-1]
	return nil
}

// Handler returns the innermost registered handler for name, if any.
func (s *Stack) Handler(name string) (owner program.Idx, handlerAddr uint32, ok bool) {
	entries := s.handlers[name]
	if len(entries) == 0 {
		return 0, 0, false
	}
	top := entries[len(entries)-1]
	return top.owner, top.handlerAddr, true
}

// Raise records that thrower has raised an effect under name, pending a
// matching handler calling ResumeThrowing. Fails if name already has a
// pending raise — a program cannot raise the same named effect twice
// before the first is resolved.
func (s *Stack) Raise(name string, thrower program.Idx) error {
	if _, ok := s.raised[name]; ok {
		return fmt.Errorf("%w: name=%q", ErrAlreadyThrown, name)
	}
	s.raised[name] = thrower
	return nil
}

// RaisedBy returns the program currently raised under name, if any. Used
// by GetRaisedEffectData to locate whose memory to read.
func (s *Stack) RaisedBy(name string) (program.Idx, bool) {
	p, ok := s.raised[name]
	return p, ok
}

// ResumeThrowing clears the pending raise for name and returns the program
// that had raised it, so the scheduler can resume it with the handler's
// result.
func (s *Stack) ResumeThrowing(name string) (program.Idx, error) {
	p, ok := s.raised[name]
	if !ok {
		return 0, fmt.Errorf("%w: name=%q", ErrNotThrown, name)
	}
	delete(s.raised, name)
	return p, nil
}
