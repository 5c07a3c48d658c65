package realtime

import (
	"context"
	"log/slog"
)

// Observer receives every observation produced by a Runtime.
type Observer interface {
	OnObservation(ctx context.Context, obs Observation)
}

// Publisher forwards observations to an external sink.
type Publisher interface {
	Publish(ctx context.Context, obs Observation) error
	Close() error
}

// NoOpObserver discards all observations.
type NoOpObserver struct{}

func (NoOpObserver) OnObservation(ctx context.Context, obs Observation) {}

// SlogObserver emits one log record per observation at debug level.
type SlogObserver struct {
	logger *slog.Logger
}

func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnObservation(ctx context.Context, obs Observation) {
	attrs := []slog.Attr{
		slog.String("run", obs.RunID),
		slog.Uint64("seq", obs.Seq),
		slog.String("handler", obs.Kind.String()),
		slog.Int("z", obs.Z),
	}
	switch obs.Loop {
	case LoopMutator:
		attrs = append(attrs, slog.String("message", obs.Message))
	case LoopActor:
		attrs = append(attrs, slog.Int("input", obs.Input), slog.Int("value", obs.Value))
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, string(obs.Loop), attrs...)
}

// MultiObserver fans out to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver skips nil observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) OnObservation(ctx context.Context, obs Observation) {
	for _, o := range m.observers {
		o.OnObservation(ctx, obs)
	}
}
