package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comalice/handlerswitch"
)

// step performs one iteration of a loop. The lock is taken and released inside.
type step func(ctx context.Context, iter uint64) error

// runLoop runs s immediately, then once per interval, until ctx is done or
// s reports a lock failure.
func (rt *Runtime) runLoop(ctx context.Context, loop Loop, every time.Duration, s step) {
	defer rt.wg.Done()

	log := rt.logger.With("loop", string(loop))
	defer log.Debug("loop stopped")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for iter := uint64(0); ; iter++ {
		err := rt.safeStep(ctx, iter, s)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return
		case errors.Is(err, handlerswitch.ErrLockPoisoned):
			log.Error("state lock unavailable, stopping loop", "iter", iter, "err", err)
			rt.recordErr(fmt.Errorf("%s loop: %w", loop, err))
			return
		default:
			log.Warn("iteration failed", "iter", iter, "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// safeStep recovers panics raised outside the guarded section.
func (rt *Runtime) safeStep(ctx context.Context, iter uint64, s step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iteration %d panicked: %v", iter, r)
		}
	}()
	return s(ctx, iter)
}

// mutate applies the next scripted message.
func (rt *Runtime) mutate(ctx context.Context, iter uint64) error {
	msg := rt.cfg.Script[iter%uint64(len(rt.cfg.Script))]
	obs := Observation{Loop: LoopMutator}
	if msg != nil {
		obs.Message = msg.String()
	}

	err := rt.guarded.Do(ctx, func(s *handlerswitch.State) error {
		if err := s.AdvanceHandler(msg); err != nil {
			return err
		}
		obs.Kind = s.Kind()
		obs.Z = s.Shared().Z
		return nil
	})
	if err != nil {
		return err
	}

	rt.transitions.Add(1)
	rt.emit(ctx, obs)
	return nil
}

// act invokes the active handler and observes the result.
func (rt *Runtime) act(ctx context.Context, iter uint64) error {
	o, err := rt.guarded.DoSomething(ctx, rt.cfg.Input)
	if err != nil {
		return err
	}

	rt.actions.Add(1)
	if o.Kind == handlerswitch.KindFancy {
		rt.fancyActions.Add(1)
	}
	rt.emit(ctx, Observation{
		Loop:  LoopActor,
		Kind:  o.Kind,
		Input: o.Input,
		Value: o.Value,
		Z:     o.ZAfter,
	})
	return nil
}

// emit stamps obs and hands it to history, publisher and observer.
func (rt *Runtime) emit(ctx context.Context, obs Observation) {
	obs.RunID = rt.runID
	obs.Seq = rt.seq.Add(1)
	obs.At = time.Now()

	if rt.historySize > 0 {
		rt.histMu.Lock()
		for rt.history.Length() >= rt.historySize {
			rt.history.Remove()
		}
		rt.history.Add(obs)
		rt.histMu.Unlock()
	}

	if rt.publisher != nil {
		if err := rt.publisher.Publish(ctx, obs); err != nil {
			rt.logger.Debug("publish failed", "seq", obs.Seq, "err", err)
		}
	}
	rt.observer.OnObservation(ctx, obs)
}
