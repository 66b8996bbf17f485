package event

// EventType discriminator for parsed log events
type EventType int32

const (
	TypeUnknown EventType = iota
	TypeLeaderboardUpdate
	TypeBalanceUpdate
	TypeWinnerAnnouncement
	TypePrimeFound
)

func (et EventType) String() string {
	switch et {
	case TypeLeaderboardUpdate:
		return "LeaderboardUpdate"
	case TypeBalanceUpdate:
		return "BalanceUpdate"
	case TypeWinnerAnnouncement:
		return "WinnerAnnouncement"
	case TypePrimeFound:
		return "PrimeFound"
	default:
		return "Unknown"
	}
}

// Event is the interface all parsed log events implement
type Event interface {
	// EventType returns the discriminator
	EventType() EventType
}

// BalanceName identifies one of the tracked on-chain pool balances.
type BalanceName string

const (
	BalanceTreasury        BalanceName = "treasury"
	BalanceStakingTreasury BalanceName = "stakingTreasury"
	BalanceYieldPool       BalanceName = "yieldPool"
)

// LeaderboardUpdate reports a user's current point total.
type LeaderboardUpdate struct {
	User   string `json:"user"`
	Points int64  `json:"points"`
}

func (e *LeaderboardUpdate) EventType() EventType { return TypeLeaderboardUpdate }

// BalanceUpdate reports the absolute value of a named pool balance in
// lamports. The latest observation always wins; values are never accumulated.
type BalanceUpdate struct {
	Name  BalanceName `json:"name"`
	Value int64       `json:"value"`
}

func (e *BalanceUpdate) EventType() EventType { return TypeBalanceUpdate }

// WinnerAnnouncement reports a jackpot payout. Sol is the payout rendered as a
// 2-decimal SOL string, converted from lamports once at parse time.
type WinnerAnnouncement struct {
	User     string  `json:"user"`
	Lamports int64   `json:"lamports"`
	Sol      string  `json:"sol"`
	PowerUp  float64 `json:"powerUp"`
}

func (e *WinnerAnnouncement) EventType() EventType { return TypeWinnerAnnouncement }

// PrimeFound is a diagnostic-only event: the program found a prime slot.
// It never mutates the aggregate snapshot.
type PrimeFound struct {
	Number uint64 `json:"number"`
}

func (e *PrimeFound) EventType() EventType { return TypePrimeFound }
