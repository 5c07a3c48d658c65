package handlerswitch

import "fmt"

// FancyMutatesShared records that FancyHandler.DoSomething increments
// SharedState.Z on every call. The behavior is fixed; the constant exists so
// callers and tests can state the assumption explicitly.
const FancyMutatesShared = true

// SharedState is the single mutable record visible to the active handler.
type SharedState struct {
	Z int `json:"z" yaml:"z"`
}

// NewSharedState returns the initial shared record (z = 5).
func NewSharedState() SharedState {
	return SharedState{Z: 5}
}

// ActionHandler computes an output from input and the shared state.
// The returned value is the emitted output. Implementations may mutate shared.
type ActionHandler interface {
	DoSomething(input int, shared *SharedState) int
}

// HandlerKind tags the active handler variant.
type HandlerKind int

const (
	KindFancy HandlerKind = iota + 1
	KindSimple
)

func (k HandlerKind) String() string {
	switch k {
	case KindFancy:
		return "fancy"
	case KindSimple:
		return "simple"
	default:
		return fmt.Sprintf("HandlerKind(%d)", int(k))
	}
}

func (k HandlerKind) MarshalText() ([]byte, error) {
	switch k {
	case KindFancy, KindSimple:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("unknown handler kind %d", int(k))
	}
}

func (k *HandlerKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "fancy":
		*k = KindFancy
	case "simple":
		*k = KindSimple
	default:
		return fmt.Errorf("unknown handler kind %q", text)
	}
	return nil
}

// HandlerVisitor has one arm per handler variant. Adding a variant adds a
// method here, which breaks every visitor until it handles the new case.
type HandlerVisitor interface {
	VisitFancy(h *FancyHandler)
	VisitSimple(h *SimpleHandler)
}

// HandlerWrapper is the closed set of handler variants. Only *FancyHandler
// and *SimpleHandler implement it.
type HandlerWrapper interface {
	ActionHandler
	Accept(v HandlerVisitor)
	Kind() HandlerKind
	sealedHandler()
}

// FancyHandler multiplies its input and bumps the shared counter.
type FancyHandler struct {
	Value int `json:"value" yaml:"value"`
}

func NewFancyHandler() *FancyHandler {
	return &FancyHandler{Value: 5}
}

// DoSomething returns Value*input*3 and increments shared.Z.
func (h *FancyHandler) DoSomething(input int, shared *SharedState) int {
	out := h.Value * input * 3
	if FancyMutatesShared {
		shared.Z++
	}
	return out
}

func (h *FancyHandler) Accept(v HandlerVisitor) { v.VisitFancy(h) }
func (h *FancyHandler) Kind() HandlerKind       { return KindFancy }
func (h *FancyHandler) sealedHandler()          {}

func (h *FancyHandler) String() string {
	return fmt.Sprintf("Fancy(FancyHandler { value: %d })", h.Value)
}

// SimpleHandler sums its fields, the input and shared.Z. It never writes shared.
type SimpleHandler struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func NewSimpleHandler() *SimpleHandler {
	return &SimpleHandler{X: 2, Y: 3}
}

func (h *SimpleHandler) DoSomething(input int, shared *SharedState) int {
	return h.X + h.Y + input + shared.Z
}

func (h *SimpleHandler) Accept(v HandlerVisitor) { v.VisitSimple(h) }
func (h *SimpleHandler) Kind() HandlerKind       { return KindSimple }
func (h *SimpleHandler) sealedHandler()          {}

func (h *SimpleHandler) String() string {
	return fmt.Sprintf("Simple(SimpleHandler { x: %d, y: %d })", h.X, h.Y)
}

// dispatch forwards DoSomething to whichever variant accepts it.
type dispatch struct {
	input  int
	shared *SharedState
	out    int
}

func (d *dispatch) VisitFancy(h *FancyHandler)   { d.out = h.DoSomething(d.input, d.shared) }
func (d *dispatch) VisitSimple(h *SimpleHandler) { d.out = h.DoSomething(d.input, d.shared) }

// Dispatch runs the active variant's action through the visitor.
func Dispatch(h HandlerWrapper, input int, shared *SharedState) int {
	d := &dispatch{input: input, shared: shared}
	h.Accept(d)
	return d.out
}
