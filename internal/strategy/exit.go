package strategy

import (
	"fmt"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
)

// ExitConfig holds parameters for the exit evaluation chain.
type ExitConfig struct {
	TrailingActivationPct float64         // Minimum profit before the trailing stop arms
	TrailPct              float64         // Retracement from the peak that triggers the exit
	TakeProfitByTier      map[int]float64 // Tier-specific take-profit targets
	DefaultTakeProfitPct  float64         // Fallback when a tier has no target
	StopLossPct           float64         // Negative, e.g. -20
	MaxHold               time.Duration   // Holding time before the time-based exit applies
	TimeExitMinProfitPct  float64         // Minimum acceptable profit for a time-based exit
}

// ExitSignal reports a triggered exit condition.
type ExitSignal struct {
	Reason domain.ExitReason
	PnLPct float64
}

// ExitEvaluator checks exit conditions in strict priority order:
// trailing stop, take-profit, stop-loss, time-based. The first match wins.
//
// The trailing stop is checked before the take-profit even though its
// activation threshold is usually lower, so it can preempt a larger
// take-profit gain in fast-moving markets. Changing the order would change
// realized-profit outcomes, so it is kept deliberately.
type ExitEvaluator struct {
	cfg    ExitConfig
	logger ports.Logger
}

// NewExitEvaluator validates the config and creates an evaluator.
func NewExitEvaluator(cfg ExitConfig, logger ports.Logger) (*ExitEvaluator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for exit evaluator")
	}
	if cfg.TrailingActivationPct <= 0 || cfg.TrailPct <= 0 {
		return nil, fmt.Errorf("trailing stop parameters must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.DefaultTakeProfitPct <= 0 {
		return nil, fmt.Errorf("default take-profit must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.StopLossPct >= 0 {
		return nil, fmt.Errorf("stop-loss must be negative, got %.2f: %w", cfg.StopLossPct, ports.ErrConfigurationError)
	}
	if cfg.MaxHold <= 0 {
		return nil, fmt.Errorf("max hold duration must be positive: %w", ports.ErrConfigurationError)
	}
	return &ExitEvaluator{cfg: cfg, logger: logger}, nil
}

// takeProfitTarget resolves the tier-specific target with a default fallback.
func (e *ExitEvaluator) takeProfitTarget(tier int) float64 {
	if target, ok := e.cfg.TakeProfitByTier[tier]; ok {
		return target
	}
	return e.cfg.DefaultTakeProfitPct
}

// Evaluate checks the open position against all exit conditions and returns
// the first triggered one, or nil. It also maintains the peak price tracked
// on the symbol state once the trailing stop has armed.
func (e *ExitEvaluator) Evaluate(pos *domain.Position, st *domain.SymbolState, currentPrice float64, now time.Time) *ExitSignal {
	if pos == nil || !pos.IsOpen() || pos.EntryPrice == 0 {
		return nil
	}
	pnlPct := pos.PnLPct(currentPrice)

	// 1. Trailing stop. The peak only advances while profit is at or above the
	// activation threshold, so a recorded peak implies the stop is armed.
	if pnlPct >= e.cfg.TrailingActivationPct && currentPrice > st.HighestSinceBuy {
		st.HighestSinceBuy = currentPrice
	}
	if st.HighestSinceBuy > 0 {
		peakPnlPct := (st.HighestSinceBuy - pos.EntryPrice) / pos.EntryPrice * 100
		armed := peakPnlPct >= e.cfg.TrailingActivationPct
		if armed && currentPrice <= st.HighestSinceBuy*(1-e.cfg.TrailPct/100) {
			return &ExitSignal{Reason: domain.ExitReasonTrailingStop, PnLPct: pnlPct}
		}
	}

	// 2. Take-profit (tier-specific target).
	if pnlPct >= e.takeProfitTarget(pos.EntryTier) {
		return &ExitSignal{Reason: domain.ExitReasonTakeProfit, PnLPct: pnlPct}
	}

	// 3. Stop-loss.
	if pnlPct <= e.cfg.StopLossPct {
		return &ExitSignal{Reason: domain.ExitReasonStopLoss, PnLPct: pnlPct}
	}

	// 4. Time-based exit. Never forces an exit at a loss purely on elapsed time.
	if now.Sub(pos.EntryTime) > e.cfg.MaxHold && pnlPct >= e.cfg.TimeExitMinProfitPct {
		return &ExitSignal{Reason: domain.ExitReasonTimeLimit, PnLPct: pnlPct}
	}

	return nil
}
