package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	"github.com/comalice/handlerswitch"
)

var (
	ErrAlreadyStarted = errors.New("runtime already started")
	ErrNotStarted     = errors.New("runtime not started")
)

// Runtime drives one guarded State from a mutator loop and an actor loop.
type Runtime struct {
	guarded *handlerswitch.Guarded
	cfg     Config
	runID   string

	logger    *slog.Logger
	publisher Publisher
	observer  Observer
	closeOnce sync.Once

	// Bounded observation history, oldest first
	histMu      sync.Mutex
	history     *queue.Queue
	historySize int

	seq          atomic.Uint64
	transitions  atomic.Uint64
	actions      atomic.Uint64
	fancyActions atomic.Uint64

	errMu sync.Mutex
	errs  []error

	// Control; ctlMu guards cancel
	ctlMu   sync.Mutex
	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped chan struct{}
}

// Config configures the harness loops.
type Config struct {
	MutateEvery time.Duration           // Interval between transitions (default 2s)
	ActEvery    time.Duration           // Interval between actions (default 500ms)
	Input       int                     // Input passed to DoSomething (zero means 4; use WithInput for 0)
	Script      []handlerswitch.Message // Messages applied in order, cycled (default Stay{"bla"}, Change)
}

// DefaultScript is one Stay{"bla"} followed by one Change.
func DefaultScript() []handlerswitch.Message {
	return []handlerswitch.Message{
		handlerswitch.Stay{Name: "bla"},
		handlerswitch.Change{},
	}
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger replaces the package logger for this runtime.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = l
	}
}

// WithPublisher forwards every observation to p. p is closed by Stop.
func WithPublisher(p Publisher) Option {
	return func(rt *Runtime) {
		rt.publisher = p
	}
}

func WithObserver(o Observer) Option {
	return func(rt *Runtime) {
		rt.observer = o
	}
}

// WithInput sets the actor input, including zero, overriding Config.Input.
func WithInput(n int) Option {
	return func(rt *Runtime) {
		rt.cfg.Input = n
	}
}

// WithHistorySize bounds the observation history (default 64, 0 disables it).
func WithHistorySize(n int) Option {
	return func(rt *Runtime) {
		if n < 0 {
			n = 0
		}
		rt.historySize = n
	}
}

// NewRuntime creates a runtime around g. A nil g gets a fresh State.
func NewRuntime(g *handlerswitch.Guarded, cfg Config, opts ...Option) *Runtime {
	if g == nil {
		g = handlerswitch.NewGuarded(nil)
	}
	if cfg.MutateEvery <= 0 {
		cfg.MutateEvery = 2 * time.Second
	}
	if cfg.ActEvery <= 0 {
		cfg.ActEvery = 500 * time.Millisecond
	}
	if cfg.Input == 0 {
		cfg.Input = 4
	}
	if len(cfg.Script) == 0 {
		cfg.Script = DefaultScript()
	}

	rt := &Runtime{
		guarded:     g,
		cfg:         cfg,
		runID:       uuid.New().String(),
		logger:      logger,
		observer:    NoOpObserver{},
		history:     queue.New(),
		historySize: 64,
		stopped:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(rt)
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	if rt.observer == nil {
		rt.observer = NoOpObserver{}
	}

	rt.logger = rt.logger.With("run", rt.runID)
	return rt
}

// Start launches both loops. They run until ctx is cancelled or Stop is called.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.ctlMu.Lock()
	defer rt.ctlMu.Unlock()

	if rt.started.Load() {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.started.Store(true)

	rt.wg.Add(2)
	go rt.runLoop(loopCtx, LoopMutator, rt.cfg.MutateEvery, rt.mutate)
	go rt.runLoop(loopCtx, LoopActor, rt.cfg.ActEvery, rt.act)

	go func() {
		rt.wg.Wait()
		close(rt.stopped)
	}()

	rt.logger.Info("runtime started",
		"mutate_every", rt.cfg.MutateEvery,
		"act_every", rt.cfg.ActEvery,
		"input", rt.cfg.Input)
	return nil
}

// Stop cancels both loops, waits for them, and closes the publisher.
// It returns the errors that ended the loops, if any.
func (rt *Runtime) Stop() error {
	rt.ctlMu.Lock()
	cancel := rt.cancel
	rt.ctlMu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()
	<-rt.stopped

	rt.closeOnce.Do(func() {
		if rt.publisher == nil {
			return
		}
		if err := rt.publisher.Close(); err != nil {
			rt.logger.Warn("publisher close failed", "err", err)
		}
	})
	return rt.Err()
}

// Wait blocks until both loops have exited.
func (rt *Runtime) Wait() error {
	if !rt.started.Load() {
		return ErrNotStarted
	}
	<-rt.stopped
	return rt.Err()
}

// Done is closed once both loops have exited.
func (rt *Runtime) Done() <-chan struct{} {
	return rt.stopped
}

// Err joins the errors that terminated a loop. Cancellation is not an error.
func (rt *Runtime) Err() error {
	rt.errMu.Lock()
	defer rt.errMu.Unlock()
	return errors.Join(rt.errs...)
}

func (rt *Runtime) RunID() string {
	return rt.runID
}

func (rt *Runtime) Stats() Stats {
	return Stats{
		Transitions:  rt.transitions.Load(),
		Actions:      rt.actions.Load(),
		FancyActions: rt.fancyActions.Load(),
	}
}

// History returns the retained observations, oldest first.
func (rt *Runtime) History() []Observation {
	rt.histMu.Lock()
	defer rt.histMu.Unlock()

	out := make([]Observation, rt.history.Length())
	for i := range out {
		out[i] = rt.history.Get(i).(Observation)
	}
	return out
}

func (rt *Runtime) recordErr(err error) {
	rt.errMu.Lock()
	defer rt.errMu.Unlock()
	rt.errs = append(rt.errs, err)
}
