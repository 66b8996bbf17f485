package core_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"PrimeBoard/internal/core"
	"PrimeBoard/internal/event"
	"PrimeBoard/internal/ingestion"
	"PrimeBoard/internal/state"
)

// captureSink records every snapshot the aggregator publishes.
type captureSink struct {
	snaps []state.Snapshot
}

func (c *captureSink) Publish(s state.Snapshot) {
	c.snaps = append(c.snaps, s)
}

// drainEvents runs the aggregator over a fixed event sequence to completion.
func drainEvents(t *testing.T, store *state.Store, seen *state.SeenSet, sink core.Sink, outbound chan<- ingestion.Outbound, events ...event.Event) {
	t.Helper()

	ch := make(chan event.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)

	agg := core.NewAggregator(store, seen, ch, sink, outbound, zerolog.Nop(), nil)
	if err := agg.Run(context.Background()); err != nil {
		t.Fatalf("aggregator run: %v", err)
	}
}

func TestAggregatorBroadcastsOnChange(t *testing.T) {
	store := state.NewStore()
	sink := &captureSink{}

	drainEvents(t, store, state.NewSeenSet(16), sink, nil,
		&event.LeaderboardUpdate{User: "Alice", Points: 50},
		&event.BalanceUpdate{Name: event.BalanceTreasury, Value: 100},
	)

	if len(sink.snaps) != 2 {
		t.Fatalf("snapshots published: got %d, want 2", len(sink.snaps))
	}

	last := sink.snaps[1]
	if last.Leaderboard[0] != (state.LeaderboardEntry{User: "Alice", Points: 50}) {
		t.Errorf("leaderboard: got %+v", last.Leaderboard)
	}
	if last.Balances[event.BalanceTreasury] != 100 {
		t.Errorf("treasury: got %d, want 100", last.Balances[event.BalanceTreasury])
	}
}

func TestAggregatorSkipsNoOpMutations(t *testing.T) {
	store := state.NewStore()
	sink := &captureSink{}

	drainEvents(t, store, state.NewSeenSet(16), sink, nil,
		&event.LeaderboardUpdate{User: "Alice", Points: 50},
		&event.LeaderboardUpdate{User: "Alice", Points: 50}, // replay
		&event.BalanceUpdate{Name: event.BalanceTreasury, Value: 9},
		&event.BalanceUpdate{Name: event.BalanceTreasury, Value: 9}, // same value
	)

	if len(sink.snaps) != 2 {
		t.Errorf("snapshots published: got %d, want 2 (no-ops must not broadcast)", len(sink.snaps))
	}
}

func TestAggregatorRejectsBadEventKeepsGoing(t *testing.T) {
	store := state.NewStore()
	sink := &captureSink{}

	drainEvents(t, store, state.NewSeenSet(16), sink, nil,
		&event.LeaderboardUpdate{User: "Alice", Points: 50},
		&event.LeaderboardUpdate{User: "Mallory", Points: -7}, // rejected
		&event.LeaderboardUpdate{User: "Bob", Points: 80},
	)

	if len(sink.snaps) != 2 {
		t.Fatalf("snapshots published: got %d, want 2", len(sink.snaps))
	}

	snap := store.Snapshot()
	if len(snap.Leaderboard) != 2 {
		t.Fatalf("leaderboard length: got %d, want 2", len(snap.Leaderboard))
	}
	for _, e := range snap.Leaderboard {
		if e.User == "Mallory" {
			t.Error("rejected event must not reach the leaderboard")
		}
	}
}

func TestAggregatorPrimeFoundIsDiagnosticOnly(t *testing.T) {
	store := state.NewStore()
	seen := state.NewSeenSet(16)
	sink := &captureSink{}

	drainEvents(t, store, seen, sink, nil,
		&event.PrimeFound{Number: 104729},
		&event.PrimeFound{Number: 104729}, // redelivery, suppressed
		&event.PrimeFound{Number: 1299709},
	)

	if len(sink.snaps) != 0 {
		t.Errorf("prime discoveries must not broadcast, got %d snapshots", len(sink.snaps))
	}
	if seen.Size() != 2 {
		t.Errorf("seen set size: got %d, want 2", seen.Size())
	}
}

func TestAggregatorOutboundRelay(t *testing.T) {
	store := state.NewStore()
	outbound := make(chan ingestion.Outbound, 1)

	drainEvents(t, store, state.NewSeenSet(16), &captureSink{}, outbound,
		&event.WinnerAnnouncement{User: "Carol", Lamports: 2_500_000_000, Sol: "2.50", PowerUp: 1.5},
		// Channel capacity is 1 and nothing drains it: this one drops
		// instead of blocking the apply loop.
		&event.BalanceUpdate{Name: event.BalanceYieldPool, Value: 4},
	)

	select {
	case out := <-outbound:
		if out.Kind != "WinnerAnnouncement" {
			t.Errorf("kind: got %q, want WinnerAnnouncement", out.Kind)
		}
		wa, ok := out.Event.(*event.WinnerAnnouncement)
		if !ok {
			t.Fatalf("event: got %T", out.Event)
		}
		if wa.Sol != "2.50" {
			t.Errorf("sol: got %q, want 2.50", wa.Sol)
		}
	default:
		t.Fatal("expected one relayed event")
	}

	select {
	case out := <-outbound:
		t.Errorf("expected overflow drop, got %+v", out)
	default:
	}
}
