package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/comalice/handlerswitch/realtime"
)

// Recorder is a realtime.Observer that keeps every observation in memory.
type Recorder struct {
	mu     sync.Mutex
	obs    []realtime.Observation
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

func (r *Recorder) OnObservation(ctx context.Context, obs realtime.Observation) {
	r.mu.Lock()
	r.obs = append(r.obs, obs)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Observations returns a copy of everything recorded so far.
func (r *Recorder) Observations() []realtime.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Observation(nil), r.obs...)
}

// Count returns how many observations came from loop.
func (r *Recorder) Count(loop realtime.Loop) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.obs {
		if o.Loop == loop {
			n++
		}
	}
	return n
}

// WaitFor blocks until loop has produced at least n observations.
func (r *Recorder) WaitFor(loop realtime.Loop, n int, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if got := r.Count(loop); got >= n {
			return nil
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return fmt.Errorf("timed out after %v waiting for %d %s observations, got %d",
				timeout, n, loop, r.Count(loop))
		}
	}
}
