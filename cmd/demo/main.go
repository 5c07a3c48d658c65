package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comalice/handlerswitch"
	"github.com/comalice/handlerswitch/internal/production"
	"github.com/comalice/handlerswitch/realtime"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	encoder := production.YAMLEncoder{}
	visualizer := &production.DefaultVisualizer{}

	state := handlerswitch.NewState()
	fmt.Println("DOT:\n" + visualizer.ExportDOT(handlerswitch.Transitions(), state.Kind()))

	// Scripted walk through the table before the loops start.
	printState(encoder, state)
	for _, msg := range []handlerswitch.Message{
		handlerswitch.Stay{Name: "bla"},
		handlerswitch.Change{},
		handlerswitch.Change{},
	} {
		if err := state.AdvanceHandler(msg); err != nil {
			log.Error("advance failed", "message", msg, "err", err)
			os.Exit(1)
		}
		printState(encoder, state)
		o := state.DoSomething(4)
		fmt.Printf("%s calculated %d\n", o.Kind, o.Value)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publishChan := make(chan realtime.Observation, 100)
	rt := realtime.NewRuntime(
		handlerswitch.NewGuarded(state),
		realtime.Config{
			MutateEvery: 2 * time.Second,
			ActEvery:    500 * time.Millisecond,
			Input:       4,
		},
		realtime.WithLogger(log),
		realtime.WithPublisher(production.NewChannelPublisher(publishChan)),
		realtime.WithObserver(realtime.NewSlogObserver(log)),
	)

	if err := rt.Start(ctx); err != nil {
		log.Error("start failed", "err", err)
		os.Exit(1)
	}

	go func() {
		for obs := range publishChan {
			switch obs.Loop {
			case realtime.LoopMutator:
				fmt.Printf("[%d] %s -> %s (z=%d)\n", obs.Seq, obs.Message, obs.Kind, obs.Z)
			case realtime.LoopActor:
				fmt.Printf("[%d] %s calculated %d (z=%d)\n", obs.Seq, obs.Kind, obs.Value, obs.Z)
			}
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("\nShutting down gracefully...")
	case <-rt.Done():
	}

	if err := rt.Stop(); err != nil {
		log.Error("runtime stopped with error", "err", err)
		os.Exit(1)
	}
	stats := rt.Stats()
	fmt.Printf("transitions=%d actions=%d fancy=%d\n", stats.Transitions, stats.Actions, stats.FancyActions)
}

func printState(enc production.SnapshotEncoder, s *handlerswitch.State) {
	fmt.Println("state =")
	if err := enc.Encode(os.Stdout, s.Snapshot()); err != nil {
		fmt.Fprintf(os.Stderr, "encode state: %v\n", err)
	}
}
