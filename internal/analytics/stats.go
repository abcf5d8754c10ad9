package analytics

import (
	"time"

	"cryptoDipBot/internal/domain"
)

// SessionStats accumulates counters for one engine run, printed at shutdown.
type SessionStats struct {
	StartTime      time.Time
	Cycles         int
	Buys           int
	Merges         int
	Refusals       int
	Closes         int
	Wins           int
	Losses         int
	RealizedProfit float64
	ClosesByReason map[domain.ExitReason]int
}

// NewSessionStats creates an empty stats accumulator.
func NewSessionStats(now time.Time) *SessionStats {
	return &SessionStats{
		StartTime:      now,
		ClosesByReason: make(map[domain.ExitReason]int),
	}
}

// RecordCycle counts one completed polling cycle.
func (s *SessionStats) RecordCycle() {
	s.Cycles++
}

// RecordBuy counts an executed buy, distinguishing merges into an existing position.
func (s *SessionStats) RecordBuy(merged bool) {
	s.Buys++
	if merged {
		s.Merges++
	}
}

// RecordRefusal counts a buy refused by the capital governor.
func (s *SessionStats) RecordRefusal() {
	s.Refusals++
}

// RecordClose counts a closed position and its realized profit.
func (s *SessionStats) RecordClose(reason domain.ExitReason, profit float64) {
	s.Closes++
	s.ClosesByReason[reason]++
	s.RealizedProfit += profit
	if profit > 0 {
		s.Wins++
	} else {
		s.Losses++
	}
}

// Summary returns the stats as loggable fields.
func (s *SessionStats) Summary(now time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"uptime":         now.Sub(s.StartTime).Round(time.Second).String(),
		"cycles":         s.Cycles,
		"buys":           s.Buys,
		"merges":         s.Merges,
		"refusals":       s.Refusals,
		"closes":         s.Closes,
		"wins":           s.Wins,
		"losses":         s.Losses,
		"realizedProfit": s.RealizedProfit,
	}
	for reason, count := range s.ClosesByReason {
		fields["closed_"+string(reason)] = count
	}
	return fields
}
