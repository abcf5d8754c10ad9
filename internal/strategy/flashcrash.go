package strategy

import (
	"context"
	"fmt"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
)

// FlashCrashConfig holds parameters for the accelerated-buying state machine.
type FlashCrashConfig struct {
	TriggerPct       float64       // More severe than any tier threshold, negative (e.g. -15)
	RecoveryPct      float64       // Full-history change above which the mode exits (e.g. -2)
	MinInterval      time.Duration // Minimum time between buys in normal mode
	FlashMinInterval time.Duration // Shortened minimum while the mode is active
	MaxRapidBuys     int           // Cap on buys within one active episode
}

// FlashCrashController drives the per-symbol NORMAL/ACTIVE state machine.
type FlashCrashController struct {
	cfg    FlashCrashConfig
	logger ports.Logger
}

// NewFlashCrashController validates the config and creates a controller.
func NewFlashCrashController(cfg FlashCrashConfig, logger ports.Logger) (*FlashCrashController, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for flash-crash controller")
	}
	if cfg.TriggerPct >= 0 {
		return nil, fmt.Errorf("flash-crash trigger must be negative, got %.2f: %w", cfg.TriggerPct, ports.ErrConfigurationError)
	}
	if cfg.MinInterval <= 0 || cfg.FlashMinInterval <= 0 {
		return nil, fmt.Errorf("buy intervals must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.FlashMinInterval > cfg.MinInterval {
		return nil, fmt.Errorf("flash-crash interval must not exceed the normal interval: %w", ports.ErrConfigurationError)
	}
	if cfg.MaxRapidBuys <= 0 {
		return nil, fmt.Errorf("max rapid buys must be positive: %w", ports.ErrConfigurationError)
	}
	return &FlashCrashController{cfg: cfg, logger: logger}, nil
}

// Update advances the state machine for one cycle. The detected tier signal
// (nil if no tier fired) supplies the change used for activation; deactivation
// is measured across the entire retained history.
func (c *FlashCrashController) Update(ctx context.Context, st *domain.SymbolState, sig *TierSignal) {
	if st.FlashCrash.Active {
		oldest, okOld := st.Oldest()
		latest, okNew := st.Latest()
		if !okOld || !okNew || oldest.Price == 0 {
			return
		}
		fullChangePct := (latest.Price - oldest.Price) / oldest.Price * 100
		if fullChangePct > c.cfg.RecoveryPct {
			st.FlashCrash = domain.FlashCrashState{}
			c.logger.Info(ctx, "Flash-crash mode deactivated, price recovered", map[string]interface{}{
				"symbol":        st.Symbol,
				"fullChangePct": fullChangePct,
				"recoveryPct":   c.cfg.RecoveryPct,
			})
		}
		return
	}

	if sig != nil && sig.ChangePct <= c.cfg.TriggerPct {
		st.FlashCrash = domain.FlashCrashState{Active: true, RapidBuyCount: 0}
		c.logger.Warn(ctx, "Flash-crash mode activated", map[string]interface{}{
			"symbol":     st.Symbol,
			"changePct":  sig.ChangePct,
			"triggerPct": c.cfg.TriggerPct,
			"tier":       sig.Tier,
		})
	}
}

// MinInterval returns the currently applicable minimum time between buys.
func (c *FlashCrashController) MinInterval(st *domain.SymbolState) time.Duration {
	if st.FlashCrash.Active {
		return c.cfg.FlashMinInterval
	}
	return c.cfg.MinInterval
}

// RapidBuyCapReached reports whether the symbol's active episode has exhausted
// its rapid-buy allowance. Always false outside flash-crash mode.
func (c *FlashCrashController) RapidBuyCapReached(st *domain.SymbolState) bool {
	return st.FlashCrash.Active && st.FlashCrash.RapidBuyCount >= c.cfg.MaxRapidBuys
}

// RecordBuy notes a completed buy, counting it against the rapid-buy cap when
// the mode is active.
func (c *FlashCrashController) RecordBuy(st *domain.SymbolState, now time.Time) {
	st.LastBuyTime = now
	if st.FlashCrash.Active {
		st.FlashCrash.RapidBuyCount++
	}
}
