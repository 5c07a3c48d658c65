package handlerswitch

// MessageVisitor has one arm per transition trigger.
type MessageVisitor interface {
	VisitStay(m Stay)
	VisitChange(m Change)
}

// Message is the closed set of transition triggers: Stay and Change.
type Message interface {
	Accept(v MessageVisitor)
	String() string
	sealedMessage()
}

// Stay keeps the current variant but rebuilds it with default fields.
// Name is carried for callers and is never consulted by the transition table.
type Stay struct {
	Name string `json:"name" yaml:"name"`
}

func (m Stay) Accept(v MessageVisitor) { v.VisitStay(m) }
func (m Stay) String() string          { return "Stay{name: " + m.Name + "}" }
func (Stay) sealedMessage()            {}

// Change switches to the other variant.
type Change struct{}

func (m Change) Accept(v MessageVisitor) { v.VisitChange(m) }
func (Change) String() string            { return "Change" }
func (Change) sealedMessage()            {}
