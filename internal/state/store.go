package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"PrimeBoard/internal/event"
)

const (
	// MaxLeaderboardEntries bounds the ranked leaderboard.
	MaxLeaderboardEntries = 100

	// MaxHistoryEntries bounds the recent-winner history.
	MaxHistoryEntries = 10
)

// LeaderboardEntry is one ranked row: a user and their current points.
type LeaderboardEntry struct {
	User   string `json:"user"`
	Points int64  `json:"points"`
}

// HistoryEntry is one recent-winner row. Sol is a 2-decimal SOL string,
// converted from lamports at ingestion.
type HistoryEntry struct {
	User    string  `json:"user"`
	Sol     string  `json:"sol"`
	PowerUp float64 `json:"powerUp"`
}

// Snapshot is an immutable point-in-time copy of the aggregate state.
// Slices and the balance map are always non-nil so an empty snapshot
// serializes as [] / {} rather than null.
type Snapshot struct {
	Leaderboard []LeaderboardEntry          `json:"leaderboard"`
	Balances    map[event.BalanceName]int64 `json:"balances"`
	History     []HistoryEntry              `json:"history"`
}

// Store exclusively owns the leaderboard, balances, and winner history.
// Mutations arrive only from the single aggregator loop; Snapshot reads may
// run concurrently with each other and take the same lock as mutations, so a
// reader never observes a partially applied event.
type Store struct {
	mu          sync.RWMutex
	leaderboard []LeaderboardEntry
	balances    map[event.BalanceName]int64
	history     []HistoryEntry
}

func NewStore() *Store {
	return &Store{
		leaderboard: make([]LeaderboardEntry, 0, MaxLeaderboardEntries),
		balances:    make(map[event.BalanceName]int64),
		history:     make([]HistoryEntry, 0, MaxHistoryEntries),
	}
}

// ApplyLeaderboard replaces the user's entry, re-sorts descending by points,
// and truncates to the top MaxLeaderboardEntries. The sort is stable over the
// filtered-then-appended sequence, so ties keep their relative insertion and
// replaying the same (user, points) pair is a no-op. Returns whether the
// observable leaderboard changed.
func (s *Store) ApplyLeaderboard(user string, points int64) (bool, error) {
	if user == "" {
		return false, errors.New("leaderboard update: empty user")
	}
	if points < 0 {
		return false, fmt.Errorf("leaderboard update: negative points %d", points)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]LeaderboardEntry, 0, len(s.leaderboard)+1)
	for _, e := range s.leaderboard {
		if e.User != user {
			next = append(next, e)
		}
	}
	next = append(next, LeaderboardEntry{User: user, Points: points})

	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Points > next[j].Points
	})

	if len(next) > MaxLeaderboardEntries {
		next = next[:MaxLeaderboardEntries]
	}

	if boardsEqual(s.leaderboard, next) {
		return false, nil
	}

	s.leaderboard = next
	return true, nil
}

// ApplyBalance sets the named balance, unconditionally replacing any prior
// value (last-write-wins). Returns whether the stored value changed.
func (s *Store) ApplyBalance(name event.BalanceName, value int64) (bool, error) {
	if name == "" {
		return false, errors.New("balance update: empty name")
	}
	if value < 0 {
		return false, fmt.Errorf("balance update %s: negative value %d", name, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.balances[name]
	s.balances[name] = value
	return !seen || prev != value, nil
}

// ApplyWinner removes any existing history entry for the user, inserts the
// new entry at the front, and truncates to MaxHistoryEntries. A repeat winner
// is re-promoted, never duplicated.
func (s *Store) ApplyWinner(user, sol string, powerUp float64) (bool, error) {
	if user == "" {
		return false, errors.New("winner announcement: empty user")
	}
	if sol == "" {
		return false, errors.New("winner announcement: empty payout")
	}
	if powerUp < 0 {
		return false, fmt.Errorf("winner announcement: negative power-up %g", powerUp)
	}

	entry := HistoryEntry{User: user, Sol: sol, PowerUp: powerUp}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) > 0 && s.history[0] == entry {
		return false, nil
	}

	next := make([]HistoryEntry, 0, len(s.history)+1)
	next = append(next, entry)
	for _, e := range s.history {
		if e.User != user {
			next = append(next, e)
		}
	}
	if len(next) > MaxHistoryEntries {
		next = next[:MaxHistoryEntries]
	}

	s.history = next
	return true, nil
}

// Snapshot returns a deep copy of the current state. Callers may retain and
// mutate the result freely; the store's internals are never exposed.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Leaderboard: make([]LeaderboardEntry, len(s.leaderboard)),
		Balances:    make(map[event.BalanceName]int64, len(s.balances)),
		History:     make([]HistoryEntry, len(s.history)),
	}
	copy(snap.Leaderboard, s.leaderboard)
	copy(snap.History, s.history)
	for name, v := range s.balances {
		snap.Balances[name] = v
	}
	return snap
}

func boardsEqual(a, b []LeaderboardEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
