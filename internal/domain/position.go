package domain

import "time"

// Position represents an accumulated dip position for a single symbol.
// EntryPrice is the amount-weighted average of all fills contributing to it,
// and EntryTier is the maximum tier among those fills.
type Position struct {
	ID         int64          // Unique identifier (assigned by DB)
	Symbol     string         // Trading symbol (e.g., "BTCUSDT")
	EntryPrice float64        // Volume-weighted average entry price
	Amount     float64        // Accumulated base asset quantity
	EntryTime  time.Time      // Timestamp of the first contributing fill
	EntryTier  int            // Highest dip tier that contributed a fill
	Status     PositionStatus // Current status (open, closed)
	ExitPrice  float64        // Price at which the position was exited (0 if open)
	ExitTime   time.Time      // Timestamp of the exit (zero value if open)
	Profit     float64        // Realized profit, (ExitPrice - EntryPrice) * Amount
	ExitReason ExitReason     // Why the position was closed
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Value returns the deployed capital represented by the position.
func (p *Position) Value() float64 {
	return p.EntryPrice * p.Amount
}

// PnLPct returns the unrealized profit percentage at the given price.
func (p *Position) PnLPct(currentPrice float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (currentPrice - p.EntryPrice) / p.EntryPrice * 100
}
