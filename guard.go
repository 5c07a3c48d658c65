//go:generate go test ./... -race

package handlerswitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrLockPoisoned = errors.New("state lock poisoned")

// LockError reports that exclusive access to a State could not be granted
// because an earlier holder panicked while holding the lock.
type LockError struct {
	Op    string
	Panic any
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%v: panic during %s: %v", ErrLockPoisoned, e.Op, e.Panic)
}

func (e *LockError) Unwrap() error {
	return ErrLockPoisoned
}

// Guarded provides exclusive access to a single State.
// Every read and write happens inside Do while the lock is held; callers must
// not keep the *State passed to fn after fn returns.
type Guarded struct {
	mu       sync.Mutex
	state    *State
	poisoned *LockError
}

// NewGuarded wraps s. A nil s is replaced by NewState().
func NewGuarded(s *State) *Guarded {
	if s == nil {
		s = NewState()
	}
	return &Guarded{state: s}
}

// Do runs fn with the lock held. A panic in fn poisons the container and is
// returned as *LockError; every later call fails the same way.
func (g *Guarded) Do(ctx context.Context, fn func(*State) error) error {
	return g.do(ctx, "do", fn)
}

// DoSomething invokes the active handler under the lock.
func (g *Guarded) DoSomething(ctx context.Context, input int) (Outcome, error) {
	var o Outcome
	err := g.do(ctx, "do_something", func(s *State) error {
		o = s.DoSomething(input)
		return nil
	})
	return o, err
}

// AdvanceHandler applies msg under the lock and returns the new variant.
func (g *Guarded) AdvanceHandler(ctx context.Context, msg Message) (HandlerKind, error) {
	var kind HandlerKind
	err := g.do(ctx, "advance_handler", func(s *State) error {
		if err := s.AdvanceHandler(msg); err != nil {
			return err
		}
		kind = s.Kind()
		return nil
	})
	return kind, err
}

func (g *Guarded) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := g.do(ctx, "snapshot", func(s *State) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

// Poisoned reports whether a panic has poisoned the container.
func (g *Guarded) Poisoned() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.poisoned != nil
}

func (g *Guarded) do(ctx context.Context, op string, fn func(*State) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.poisoned != nil {
		return g.poisoned
	}

	defer func() {
		if r := recover(); r != nil {
			g.poisoned = &LockError{Op: op, Panic: r}
			err = g.poisoned
		}
	}()

	return fn(g.state)
}
