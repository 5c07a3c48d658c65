package realtime

import (
	"time"

	"github.com/comalice/handlerswitch"
)

// Loop names the harness loop that produced an observation.
type Loop string

const (
	LoopMutator Loop = "mutator"
	LoopActor   Loop = "actor"
)

// Observation records one completed iteration of either loop.
// Message is set for mutator iterations; Input and Value for actor iterations.
type Observation struct {
	RunID   string                    `json:"runID" yaml:"runID"`
	Loop    Loop                      `json:"loop" yaml:"loop"`
	Seq     uint64                    `json:"seq" yaml:"seq"`
	Kind    handlerswitch.HandlerKind `json:"kind" yaml:"kind"`
	Message string                    `json:"message,omitempty" yaml:"message,omitempty"`
	Input   int                       `json:"input,omitempty" yaml:"input,omitempty"`
	Value   int                       `json:"value,omitempty" yaml:"value,omitempty"`
	Z       int                       `json:"z" yaml:"z"`
	At      time.Time                 `json:"at" yaml:"at"`
}

// Stats counts completed iterations.
// FancyActions cross-checks the shared counter: with z starting at z0,
// z == z0 + FancyActions whenever both loops are idle.
type Stats struct {
	Transitions  uint64
	Actions      uint64
	FancyActions uint64
}
