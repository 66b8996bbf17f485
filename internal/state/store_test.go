package state_test

import (
	"fmt"
	"testing"

	"PrimeBoard/internal/event"
	"PrimeBoard/internal/state"
)

// ============================================================================
// Test: leaderboard
// ============================================================================

func TestLeaderboardLatestUpdateWins(t *testing.T) {
	s := state.NewStore()

	mustApplyLeaderboard(t, s, "Alice", 50)
	mustApplyLeaderboard(t, s, "Bob", 80)
	mustApplyLeaderboard(t, s, "Alice", 120)

	snap := s.Snapshot()
	want := []state.LeaderboardEntry{
		{User: "Alice", Points: 120},
		{User: "Bob", Points: 80},
	}
	if len(snap.Leaderboard) != len(want) {
		t.Fatalf("leaderboard length: got %d, want %d", len(snap.Leaderboard), len(want))
	}
	for i := range want {
		if snap.Leaderboard[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, snap.Leaderboard[i], want[i])
		}
	}
}

func TestLeaderboardSortedDescending(t *testing.T) {
	s := state.NewStore()
	points := []int64{30, 90, 10, 70, 50}
	for i, p := range points {
		mustApplyLeaderboard(t, s, fmt.Sprintf("user%d", i), p)
	}

	snap := s.Snapshot()
	for i := 1; i < len(snap.Leaderboard); i++ {
		if snap.Leaderboard[i-1].Points < snap.Leaderboard[i].Points {
			t.Fatalf("not sorted descending at %d: %+v", i, snap.Leaderboard)
		}
	}
}

func TestLeaderboardIdempotentReplay(t *testing.T) {
	s := state.NewStore()

	changed, err := s.ApplyLeaderboard("Alice", 100)
	if err != nil || !changed {
		t.Fatalf("first apply: changed=%v err=%v", changed, err)
	}
	before := s.Snapshot()

	changed, err = s.ApplyLeaderboard("Alice", 100)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if changed {
		t.Error("replaying the same (user, points) pair should not change state")
	}

	after := s.Snapshot()
	if len(before.Leaderboard) != len(after.Leaderboard) {
		t.Fatalf("length changed on replay: %d vs %d", len(before.Leaderboard), len(after.Leaderboard))
	}
	for i := range before.Leaderboard {
		if before.Leaderboard[i] != after.Leaderboard[i] {
			t.Errorf("entry %d changed on replay", i)
		}
	}
}

func TestLeaderboardTruncatesToTop100(t *testing.T) {
	s := state.NewStore()

	// 101 distinct users with strictly increasing points: the first (lowest)
	// user must fall off the board.
	for i := 0; i <= state.MaxLeaderboardEntries; i++ {
		mustApplyLeaderboard(t, s, fmt.Sprintf("user%03d", i), int64(i+1))
	}

	snap := s.Snapshot()
	if len(snap.Leaderboard) != state.MaxLeaderboardEntries {
		t.Fatalf("leaderboard length: got %d, want %d", len(snap.Leaderboard), state.MaxLeaderboardEntries)
	}
	if snap.Leaderboard[0].Points != 101 {
		t.Errorf("top points: got %d, want 101", snap.Leaderboard[0].Points)
	}
	for _, e := range snap.Leaderboard {
		if e.User == "user000" {
			t.Error("lowest-scoring user should have been excluded")
		}
	}
}

func TestLeaderboardUniquePerUser(t *testing.T) {
	s := state.NewStore()
	for i := 0; i < 5; i++ {
		mustApplyLeaderboard(t, s, "Alice", int64(10*i))
	}

	snap := s.Snapshot()
	if len(snap.Leaderboard) != 1 {
		t.Fatalf("leaderboard length: got %d, want 1", len(snap.Leaderboard))
	}
	if snap.Leaderboard[0].Points != 40 {
		t.Errorf("points: got %d, want 40", snap.Leaderboard[0].Points)
	}
}

func TestLeaderboardRejectsMalformed(t *testing.T) {
	s := state.NewStore()
	mustApplyLeaderboard(t, s, "Alice", 10)

	if _, err := s.ApplyLeaderboard("Bob", -1); err == nil {
		t.Error("negative points should be rejected")
	}
	if _, err := s.ApplyLeaderboard("", 5); err == nil {
		t.Error("empty user should be rejected")
	}

	// One bad event never corrupts state.
	snap := s.Snapshot()
	if len(snap.Leaderboard) != 1 || snap.Leaderboard[0].User != "Alice" {
		t.Errorf("state corrupted by rejected event: %+v", snap.Leaderboard)
	}
}

// ============================================================================
// Test: balances
// ============================================================================

func TestBalanceOverwritesNeverAccumulates(t *testing.T) {
	s := state.NewStore()

	mustApplyBalance(t, s, event.BalanceTreasury, 100)
	mustApplyBalance(t, s, event.BalanceTreasury, 40)

	snap := s.Snapshot()
	if snap.Balances[event.BalanceTreasury] != 40 {
		t.Errorf("treasury: got %d, want 40 (last write wins)", snap.Balances[event.BalanceTreasury])
	}
}

func TestBalanceAbsentUntilObserved(t *testing.T) {
	s := state.NewStore()
	mustApplyBalance(t, s, event.BalanceYieldPool, 7)

	snap := s.Snapshot()
	if _, ok := snap.Balances[event.BalanceTreasury]; ok {
		t.Error("treasury should be absent until first observed")
	}
	if len(snap.Balances) != 1 {
		t.Errorf("balances: got %d entries, want 1", len(snap.Balances))
	}
}

func TestBalanceUnchangedValueReportsNoChange(t *testing.T) {
	s := state.NewStore()
	mustApplyBalance(t, s, event.BalanceStakingTreasury, 500)

	changed, err := s.ApplyBalance(event.BalanceStakingTreasury, 500)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if changed {
		t.Error("re-observing the same value should not report a change")
	}
}

// ============================================================================
// Test: winner history
// ============================================================================

func TestWinnerHistoryMostRecentFirst(t *testing.T) {
	s := state.NewStore()

	mustApplyWinner(t, s, "Alice", "1.00", 1.0)
	mustApplyWinner(t, s, "Bob", "2.50", 1.5)

	snap := s.Snapshot()
	if len(snap.History) != 2 {
		t.Fatalf("history length: got %d, want 2", len(snap.History))
	}
	if snap.History[0].User != "Bob" || snap.History[1].User != "Alice" {
		t.Errorf("order: got %+v, want Bob then Alice", snap.History)
	}
	if snap.History[0].Sol != "2.50" {
		t.Errorf("sol: got %q, want 2.50", snap.History[0].Sol)
	}
	if snap.History[0].PowerUp != 1.5 {
		t.Errorf("powerUp: got %g, want 1.5", snap.History[0].PowerUp)
	}
}

func TestWinnerRepromotedNotDuplicated(t *testing.T) {
	s := state.NewStore()

	mustApplyWinner(t, s, "Alice", "1.00", 1.0)
	mustApplyWinner(t, s, "Bob", "2.00", 1.0)
	mustApplyWinner(t, s, "Alice", "3.00", 2.0)

	snap := s.Snapshot()
	if len(snap.History) != 2 {
		t.Fatalf("history length: got %d, want 2", len(snap.History))
	}
	if snap.History[0].User != "Alice" || snap.History[0].Sol != "3.00" || snap.History[0].PowerUp != 2.0 {
		t.Errorf("front entry: got %+v, want updated Alice", snap.History[0])
	}
	if snap.History[1].User != "Bob" {
		t.Errorf("second entry: got %+v, want Bob", snap.History[1])
	}
}

func TestWinnerHistoryTruncatesToTen(t *testing.T) {
	s := state.NewStore()
	for i := 0; i < state.MaxHistoryEntries+3; i++ {
		mustApplyWinner(t, s, fmt.Sprintf("user%d", i), "1.00", 1.0)
	}

	snap := s.Snapshot()
	if len(snap.History) != state.MaxHistoryEntries {
		t.Fatalf("history length: got %d, want %d", len(snap.History), state.MaxHistoryEntries)
	}
	if snap.History[0].User != fmt.Sprintf("user%d", state.MaxHistoryEntries+2) {
		t.Errorf("front entry: got %+v", snap.History[0])
	}
}

// ============================================================================
// Test: snapshot isolation
// ============================================================================

func TestSnapshotEmptyStore(t *testing.T) {
	snap := state.NewStore().Snapshot()

	if snap.Leaderboard == nil || len(snap.Leaderboard) != 0 {
		t.Errorf("leaderboard: got %v, want empty non-nil slice", snap.Leaderboard)
	}
	if snap.Balances == nil || len(snap.Balances) != 0 {
		t.Errorf("balances: got %v, want empty non-nil map", snap.Balances)
	}
	if snap.History == nil || len(snap.History) != 0 {
		t.Errorf("history: got %v, want empty non-nil slice", snap.History)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := state.NewStore()
	mustApplyLeaderboard(t, s, "Alice", 10)
	mustApplyBalance(t, s, event.BalanceTreasury, 99)
	mustApplyWinner(t, s, "Alice", "1.00", 1.0)

	snap := s.Snapshot()
	snap.Leaderboard[0].Points = 0
	snap.Balances[event.BalanceTreasury] = 0
	snap.History[0].User = "Mallory"

	fresh := s.Snapshot()
	if fresh.Leaderboard[0].Points != 10 {
		t.Error("mutating a snapshot leaked into the store's leaderboard")
	}
	if fresh.Balances[event.BalanceTreasury] != 99 {
		t.Error("mutating a snapshot leaked into the store's balances")
	}
	if fresh.History[0].User != "Alice" {
		t.Error("mutating a snapshot leaked into the store's history")
	}
}

// ============================================================================
// Helpers
// ============================================================================

func mustApplyLeaderboard(t *testing.T, s *state.Store, user string, points int64) {
	t.Helper()
	if _, err := s.ApplyLeaderboard(user, points); err != nil {
		t.Fatalf("ApplyLeaderboard(%s, %d): %v", user, points, err)
	}
}

func mustApplyBalance(t *testing.T, s *state.Store, name event.BalanceName, value int64) {
	t.Helper()
	if _, err := s.ApplyBalance(name, value); err != nil {
		t.Fatalf("ApplyBalance(%s, %d): %v", name, value, err)
	}
}

func mustApplyWinner(t *testing.T, s *state.Store, user, sol string, powerUp float64) {
	t.Helper()
	if _, err := s.ApplyWinner(user, sol, powerUp); err != nil {
		t.Fatalf("ApplyWinner(%s): %v", user, err)
	}
}
