package realtime_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/handlerswitch"
	"github.com/comalice/handlerswitch/realtime"
	"github.com/comalice/handlerswitch/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fastConfig() realtime.Config {
	return realtime.Config{
		MutateEvery: 10 * time.Millisecond,
		ActEvery:    2 * time.Millisecond,
	}
}

// TestRuntimeBothLoopsRun checks that both loops make progress and that the
// shared counter matches the number of fancy actions once they stop.
func TestRuntimeBothLoopsRun(t *testing.T) {
	g := handlerswitch.NewGuarded(nil)
	rec := testutil.NewRecorder()
	rt := realtime.NewRuntime(g, fastConfig(),
		realtime.WithLogger(quietLogger()),
		realtime.WithObserver(rec))

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rec.WaitFor(realtime.LoopMutator, 4, 2*time.Second))
	require.NoError(t, rec.WaitFor(realtime.LoopActor, 10, 2*time.Second))
	require.NoError(t, rt.Stop())

	stats := rt.Stats()
	assert.GreaterOrEqual(t, stats.Transitions, uint64(4))
	assert.GreaterOrEqual(t, stats.Actions, uint64(10))

	snap, err := g.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5+int(stats.FancyActions), snap.Shared.Z)

	for _, obs := range rec.Observations() {
		assert.Equal(t, rt.RunID(), obs.RunID)
		if obs.Loop != realtime.LoopActor {
			continue
		}
		switch obs.Kind {
		case handlerswitch.KindFancy:
			assert.Equal(t, 5*4*3, obs.Value)
		case handlerswitch.KindSimple:
			assert.Equal(t, 2+3+4+obs.Z, obs.Value)
		default:
			t.Errorf("unexpected kind %v", obs.Kind)
		}
	}
}

// TestRuntimeScriptOrder checks the default script alternates Stay and Change.
func TestRuntimeScriptOrder(t *testing.T) {
	rec := testutil.NewRecorder()
	rt := realtime.NewRuntime(nil, fastConfig(),
		realtime.WithLogger(quietLogger()),
		realtime.WithObserver(rec))

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rec.WaitFor(realtime.LoopMutator, 4, 2*time.Second))
	require.NoError(t, rt.Stop())

	var muts []realtime.Observation
	for _, obs := range rec.Observations() {
		if obs.Loop == realtime.LoopMutator {
			muts = append(muts, obs)
		}
	}
	// Stay keeps Simple, Change flips to Fancy, Stay keeps Fancy, Change flips back.
	wantMsg := []string{"Stay{name: bla}", "Change", "Stay{name: bla}", "Change"}
	wantKind := []handlerswitch.HandlerKind{
		handlerswitch.KindSimple, handlerswitch.KindFancy,
		handlerswitch.KindFancy, handlerswitch.KindSimple,
	}
	for i := range wantMsg {
		assert.Equal(t, wantMsg[i], muts[i].Message)
		assert.Equal(t, wantKind[i], muts[i].Kind)
	}
}

func TestRuntimeLifecycleErrors(t *testing.T) {
	rt := realtime.NewRuntime(nil, fastConfig(), realtime.WithLogger(quietLogger()))

	assert.ErrorIs(t, rt.Stop(), realtime.ErrNotStarted)
	assert.ErrorIs(t, rt.Wait(), realtime.ErrNotStarted)

	require.NoError(t, rt.Start(context.Background()))
	assert.ErrorIs(t, rt.Start(context.Background()), realtime.ErrAlreadyStarted)
	require.NoError(t, rt.Stop())
	require.NoError(t, rt.Stop(), "second Stop is harmless")
}

func TestRuntimeConcurrentStartStop(t *testing.T) {
	for i := 0; i < 200; i++ {
		rt := realtime.NewRuntime(nil, fastConfig(), realtime.WithLogger(quietLogger()))

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- rt.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			errs <- rt.Stop()
		}()
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, realtime.ErrNotStarted)
			}
		}
		// Stop may have lost the race to Start; make sure the loops end.
		require.NoError(t, rt.Stop())
	}
}

func TestRuntimeZeroInput(t *testing.T) {
	rec := testutil.NewRecorder()
	rt := realtime.NewRuntime(nil, fastConfig(),
		realtime.WithLogger(quietLogger()),
		realtime.WithObserver(rec),
		realtime.WithInput(0))

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rec.WaitFor(realtime.LoopActor, 3, 2*time.Second))
	require.NoError(t, rt.Stop())

	for _, obs := range rec.Observations() {
		if obs.Loop != realtime.LoopActor {
			continue
		}
		assert.Zero(t, obs.Input)
		if obs.Kind == handlerswitch.KindFancy {
			assert.Zero(t, obs.Value)
		} else {
			assert.Equal(t, 2+3+obs.Z, obs.Value)
		}
	}
}

func TestRuntimeContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := realtime.NewRuntime(nil, fastConfig(), realtime.WithLogger(quietLogger()))
	require.NoError(t, rt.Start(ctx))

	cancel()
	select {
	case <-rt.Done():
	case <-time.After(time.Second):
		t.Fatal("loops did not stop after cancel")
	}
	assert.NoError(t, rt.Wait())
}

func TestRuntimeStopsOnPoisonedLock(t *testing.T) {
	g := handlerswitch.NewGuarded(nil)
	_ = g.Do(context.Background(), func(*handlerswitch.State) error {
		panic("poison")
	})
	require.True(t, g.Poisoned())

	rt := realtime.NewRuntime(g, fastConfig(), realtime.WithLogger(quietLogger()))
	require.NoError(t, rt.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- rt.Wait() }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, handlerswitch.ErrLockPoisoned)
		assert.Contains(t, err.Error(), "mutator loop")
		assert.Contains(t, err.Error(), "actor loop")
	case <-time.After(time.Second):
		t.Fatal("loops kept running on a poisoned lock")
	}
	assert.Zero(t, rt.Stats().Actions)
	assert.Zero(t, rt.Stats().Transitions)
}

func TestRuntimePoisonedWhileRunning(t *testing.T) {
	g := handlerswitch.NewGuarded(nil)
	rec := testutil.NewRecorder()
	rt := realtime.NewRuntime(g, fastConfig(),
		realtime.WithLogger(quietLogger()),
		realtime.WithObserver(rec))

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rec.WaitFor(realtime.LoopActor, 3, 2*time.Second))

	_ = g.Do(context.Background(), func(*handlerswitch.State) error {
		panic("poison")
	})

	select {
	case <-rt.Done():
	case <-time.After(time.Second):
		t.Fatal("loops kept running on a poisoned lock")
	}
	assert.ErrorIs(t, rt.Err(), handlerswitch.ErrLockPoisoned)
}

func TestRuntimeNilScriptEntry(t *testing.T) {
	rec := testutil.NewRecorder()
	rt := realtime.NewRuntime(nil, realtime.Config{
		MutateEvery: 2 * time.Millisecond,
		ActEvery:    time.Hour,
		Script:      []handlerswitch.Message{nil, handlerswitch.Change{}},
	}, realtime.WithLogger(quietLogger()), realtime.WithObserver(rec))

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rec.WaitFor(realtime.LoopMutator, 3, 2*time.Second))
	require.NoError(t, rt.Stop(), "invalid messages are not fatal")

	for _, obs := range rec.Observations() {
		if obs.Loop == realtime.LoopMutator {
			assert.Equal(t, "Change", obs.Message)
		}
	}
}

func TestRuntimeHistoryBounded(t *testing.T) {
	rec := testutil.NewRecorder()
	rt := realtime.NewRuntime(nil, fastConfig(),
		realtime.WithLogger(quietLogger()),
		realtime.WithObserver(rec),
		realtime.WithHistorySize(3))

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rec.WaitFor(realtime.LoopActor, 10, 2*time.Second))
	require.NoError(t, rt.Stop())

	hist := rt.History()
	require.Len(t, hist, 3)
	all := rec.Observations()
	assert.Equal(t, len(all), int(rt.Stats().Actions+rt.Stats().Transitions))

	var maxSeq uint64
	for _, o := range all {
		maxSeq = max(maxSeq, o.Seq)
	}
	var histMax uint64
	for _, o := range hist {
		histMax = max(histMax, o.Seq)
	}
	assert.Equal(t, maxSeq, histMax, "history keeps the newest observations")
}

func TestRuntimeHistoryDisabled(t *testing.T) {
	rec := testutil.NewRecorder()
	rt := realtime.NewRuntime(nil, fastConfig(),
		realtime.WithLogger(quietLogger()),
		realtime.WithObserver(rec),
		realtime.WithHistorySize(0))

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rec.WaitFor(realtime.LoopActor, 2, 2*time.Second))
	require.NoError(t, rt.Stop())

	assert.Empty(t, rt.History())
}

func TestSlogObserver(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := realtime.NewSlogObserver(log)

	obs.OnObservation(context.Background(), realtime.Observation{
		RunID: "r1", Loop: realtime.LoopActor, Seq: 7,
		Kind: handlerswitch.KindSimple, Input: 4, Value: 14, Z: 5,
	})
	obs.OnObservation(context.Background(), realtime.Observation{
		RunID: "r1", Loop: realtime.LoopMutator, Seq: 8,
		Kind: handlerswitch.KindFancy, Message: "Change", Z: 5,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "msg=actor")
	assert.Contains(t, lines[0], "handler=simple")
	assert.Contains(t, lines[0], "value=14")
	assert.Contains(t, lines[1], "msg=mutator")
	assert.Contains(t, lines[1], "message=Change")
	assert.NotContains(t, lines[1], "value=")
}

func TestMultiObserver(t *testing.T) {
	a, b := testutil.NewRecorder(), testutil.NewRecorder()
	multi := realtime.NewMultiObserver(a, nil, b)

	multi.OnObservation(context.Background(), realtime.Observation{Loop: realtime.LoopActor})

	assert.Len(t, a.Observations(), 1)
	assert.Len(t, b.Observations(), 1)
}

func TestRuntimeLogsLifecycle(t *testing.T) {
	var buf syncBuffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rt := realtime.NewRuntime(nil, fastConfig(), realtime.WithLogger(log))

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rt.Stop())

	out := buf.String()
	assert.Contains(t, out, "runtime started")
	assert.Contains(t, out, "run="+rt.RunID())
	assert.Contains(t, out, "loop=mutator")
	assert.Contains(t, out, "loop=actor")
	assert.Contains(t, out, "loop stopped")
}
