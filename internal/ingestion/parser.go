package ingestion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"PrimeBoard/internal/event"
)

// LamportsPerSol is the fixed conversion scale for payout amounts.
const LamportsPerSol = 1_000_000_000

// ParseResult classifies the outcome of a single log line.
type ParseResult int

const (
	// ParseMiss: the line matches no known pattern; silently dropped.
	ParseMiss ParseResult = iota

	// ParseMatch: the line yielded a typed event.
	ParseMatch

	// ParseMalformed: the line matched a pattern but a numeric field was
	// unparseable; the single event is dropped, the envelope continues.
	ParseMalformed
)

// Program log line patterns. User identifiers are base58 pubkeys rendered by
// the on-chain program, so [A-Za-z0-9]+ is sufficient.
var (
	leaderUserRe   = regexp.MustCompile(`User:\s([A-Za-z0-9]+),`)
	leaderPointsRe = regexp.MustCompile(`Points:\s(\d+)`)

	stakingBalanceRe  = regexp.MustCompile(`Staking Treasury Balance:\s(\d+)`)
	yieldBalanceRe    = regexp.MustCompile(`Yield Pool Balance:\s(\d+)`)
	treasuryBalanceRe = regexp.MustCompile(`Treasury Balance:\s(\d+)`)

	winnerUserRe     = regexp.MustCompile(`User:\s([A-Za-z0-9]+)`)
	winnerLamportsRe = regexp.MustCompile(`Lamports:\s(\d+)`)
	winnerPowerUpRe  = regexp.MustCompile(`PowerUp:\s(\d+(?:\.\d+)?)`)

	primeNumberRe = regexp.MustCompile(`number_to_test=(\d+)`)
)

// ParseLogLine classifies one raw program log line into a typed event.
// Pure and total: it never errors and has no side effects. A line matches at
// most one event kind; when field patterns overlap, the first kind in
// priority order wins (leaderboard, balances most-specific-first, winner,
// prime). "Staking Treasury Balance" must be probed before "Treasury Balance"
// because the latter is a substring of the former.
func ParseLogLine(line string) (event.Event, ParseResult) {
	switch {
	case strings.Contains(line, "Leaderboard:"):
		return parseLeaderboard(line)

	case strings.Contains(line, "Staking Treasury Balance:"):
		return parseBalance(line, event.BalanceStakingTreasury, stakingBalanceRe)

	case strings.Contains(line, "Yield Pool Balance:"):
		return parseBalance(line, event.BalanceYieldPool, yieldBalanceRe)

	case strings.Contains(line, "Treasury Balance:"):
		return parseBalance(line, event.BalanceTreasury, treasuryBalanceRe)

	case strings.Contains(line, "Winner:"):
		return parseWinner(line)

	case strings.Contains(line, "PrimeFound"):
		return parsePrime(line)

	default:
		return nil, ParseMiss
	}
}

func parseLeaderboard(line string) (event.Event, ParseResult) {
	userMatch := leaderUserRe.FindStringSubmatch(line)
	pointsMatch := leaderPointsRe.FindStringSubmatch(line)
	if userMatch == nil || pointsMatch == nil {
		return nil, ParseMiss
	}

	points, err := strconv.ParseInt(pointsMatch[1], 10, 64)
	if err != nil {
		return nil, ParseMalformed
	}

	return &event.LeaderboardUpdate{User: userMatch[1], Points: points}, ParseMatch
}

func parseBalance(line string, name event.BalanceName, re *regexp.Regexp) (event.Event, ParseResult) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil, ParseMiss
	}

	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, ParseMalformed
	}

	return &event.BalanceUpdate{Name: name, Value: value}, ParseMatch
}

func parseWinner(line string) (event.Event, ParseResult) {
	userMatch := winnerUserRe.FindStringSubmatch(line)
	lamportsMatch := winnerLamportsRe.FindStringSubmatch(line)
	powerUpMatch := winnerPowerUpRe.FindStringSubmatch(line)
	if userMatch == nil || lamportsMatch == nil || powerUpMatch == nil {
		return nil, ParseMiss
	}

	lamports, err := strconv.ParseInt(lamportsMatch[1], 10, 64)
	if err != nil {
		return nil, ParseMalformed
	}
	powerUp, err := strconv.ParseFloat(powerUpMatch[1], 64)
	if err != nil {
		return nil, ParseMalformed
	}

	return &event.WinnerAnnouncement{
		User:     userMatch[1],
		Lamports: lamports,
		Sol:      FormatSol(lamports),
		PowerUp:  powerUp,
	}, ParseMatch
}

func parsePrime(line string) (event.Event, ParseResult) {
	m := primeNumberRe.FindStringSubmatch(line)
	if m == nil {
		return nil, ParseMiss
	}

	number, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return nil, ParseMalformed
	}

	return &event.PrimeFound{Number: number}, ParseMatch
}

// FormatSol converts a lamport amount to a 2-decimal SOL string. Conversion
// happens once, at ingestion; the store keeps the rendered string.
func FormatSol(lamports int64) string {
	return fmt.Sprintf("%.2f", float64(lamports)/LamportsPerSol)
}
