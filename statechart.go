// Package handlerswitch holds a shared State whose active handler variant
// switches according to a fixed transition table.
// Core package is stdlib-only.
package handlerswitch

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid transition")

// State owns the active handler and the shared record. All interaction goes
// through DoSomething and AdvanceHandler.
type State struct {
	handler HandlerWrapper
	shared  SharedState
}

// Outcome describes one DoSomething call.
type Outcome struct {
	Kind    HandlerKind
	Input   int
	Value   int
	ZBefore int
	ZAfter  int
}

// Transition is one row of the transition table.
type Transition struct {
	From    HandlerKind
	Message Message
	To      HandlerKind
}

// Snapshot is the serializable view of a State.
type Snapshot struct {
	Handler string         `json:"handler" yaml:"handler"`
	Fancy   *FancyHandler  `json:"fancy,omitempty" yaml:"fancy,omitempty"`
	Simple  *SimpleHandler `json:"simple,omitempty" yaml:"simple,omitempty"`
	Shared  SharedState    `json:"shared" yaml:"shared"`
}

//
// Public API
//

// NewState starts in Simple(x=2, y=3) with z = 5.
func NewState() *State {
	return &State{
		handler: NewSimpleHandler(),
		shared:  NewSharedState(),
	}
}

// DoSomething invokes the active handler with mutable access to the shared record.
func (s *State) DoSomething(input int) Outcome {
	o := Outcome{Kind: s.handler.Kind(), Input: input, ZBefore: s.shared.Z}
	o.Value = Dispatch(s.handler, input, &s.shared)
	o.ZAfter = s.shared.Z
	return o
}

// AdvanceHandler replaces the active handler with the fresh instance the
// transition table prescribes. The shared record is never touched.
func (s *State) AdvanceHandler(msg Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message from %s", ErrInvalidTransition, s.handler.Kind())
	}
	s.handler = next(s.handler, msg)
	return nil
}

// Kind reports the active variant.
func (s *State) Kind() HandlerKind {
	return s.handler.Kind()
}

// Handler returns a copy of the active handler.
func (s *State) Handler() HandlerWrapper {
	c := &copier{}
	s.handler.Accept(c)
	return c.out
}

// Shared returns a copy of the shared record.
func (s *State) Shared() SharedState {
	return s.shared
}

func (s *State) Snapshot() Snapshot {
	snap := snapshotter{snap: Snapshot{Shared: s.shared}}
	s.handler.Accept(&snap)
	return snap.snap
}

func (s *State) String() string {
	return fmt.Sprintf("State { handler: %v, shared: SharedState { z: %d } }", s.handler, s.shared.Z)
}

// Transitions enumerates every (variant, message) pair of the table.
func Transitions() []Transition {
	from := []HandlerWrapper{NewFancyHandler(), NewSimpleHandler()}
	msgs := []Message{Stay{}, Change{}}
	out := make([]Transition, 0, len(from)*len(msgs))
	for _, h := range from {
		for _, m := range msgs {
			out = append(out, Transition{From: h.Kind(), Message: m, To: next(h, m).Kind()})
		}
	}
	return out
}

//
// Transition table (internal API)
//

// next returns the fresh handler for (current, msg).
func next(current HandlerWrapper, msg Message) HandlerWrapper {
	t := &transition{msg: msg}
	current.Accept(t)
	return t.next
}

type transition struct {
	msg  Message
	next HandlerWrapper
}

func (t *transition) VisitFancy(*FancyHandler)   { t.msg.Accept(fromFancy{t}) }
func (t *transition) VisitSimple(*SimpleHandler) { t.msg.Accept(fromSimple{t}) }

type fromFancy struct{ t *transition }

func (f fromFancy) VisitStay(Stay)     { f.t.next = NewFancyHandler() }
func (f fromFancy) VisitChange(Change) { f.t.next = NewSimpleHandler() }

type fromSimple struct{ t *transition }

func (f fromSimple) VisitStay(Stay)     { f.t.next = NewSimpleHandler() }
func (f fromSimple) VisitChange(Change) { f.t.next = NewFancyHandler() }

type copier struct{ out HandlerWrapper }

func (c *copier) VisitFancy(h *FancyHandler)   { cp := *h; c.out = &cp }
func (c *copier) VisitSimple(h *SimpleHandler) { cp := *h; c.out = &cp }

type snapshotter struct{ snap Snapshot }

func (s *snapshotter) VisitFancy(h *FancyHandler) {
	cp := *h
	s.snap.Handler = KindFancy.String()
	s.snap.Fancy = &cp
}

func (s *snapshotter) VisitSimple(h *SimpleHandler) {
	cp := *h
	s.snap.Handler = KindSimple.String()
	s.snap.Simple = &cp
}
