package production

import (
	"bytes"
	"fmt"

	"github.com/comalice/handlerswitch"
)

// DefaultVisualizer is the stdlib-only DOT exporter for the transition table.
type DefaultVisualizer struct{}

// ExportDOT generates Graphviz DOT source for the table, highlighting current.
func (v *DefaultVisualizer) ExportDOT(transitions []handlerswitch.Transition, current handlerswitch.HandlerKind) string {
	var buf bytes.Buffer
	buf.WriteString(`digraph Handlers {
  rankdir=LR;
  node [shape=box, fontsize=10, style=rounded];
  edge [fontsize=9];
`)

	for _, kind := range collectNodes(transitions) {
		style := ""
		if kind == current {
			style = ` style=filled fillcolor=lightgreen`
		}
		buf.WriteString(fmt.Sprintf("  %q [label=%q%s];\n", kind.String(), kind.String(), style))
	}

	for _, t := range transitions {
		buf.WriteString(fmt.Sprintf("  %q -> %q [label=%q];\n", t.From.String(), t.To.String(), messageLabel(t.Message)))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// collectNodes returns each kind once, in first-seen order.
func collectNodes(transitions []handlerswitch.Transition) []handlerswitch.HandlerKind {
	seen := make(map[handlerswitch.HandlerKind]bool)
	var nodes []handlerswitch.HandlerKind
	for _, t := range transitions {
		for _, k := range []handlerswitch.HandlerKind{t.From, t.To} {
			if !seen[k] {
				seen[k] = true
				nodes = append(nodes, k)
			}
		}
	}
	return nodes
}

type labeler struct{ label string }

func (l *labeler) VisitStay(handlerswitch.Stay)     { l.label = "Stay" }
func (l *labeler) VisitChange(handlerswitch.Change) { l.label = "Change" }

// messageLabel drops the Stay payload, which the table ignores.
func messageLabel(m handlerswitch.Message) string {
	l := &labeler{}
	m.Accept(l)
	return l.label
}
