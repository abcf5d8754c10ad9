package risk

import (
	"fmt"
	"math"
	"time"

	"cryptoDipBot/internal/ports"
)

// GovernorConfig holds account- and strategy-level capital constraints.
type GovernorConfig struct {
	MaxPositionUSD   float64 // Per-symbol cap on deployed capital
	MaxTotalDeployed float64 // Strategy-wide cap on deployed capital
	LowVolReserve    float64 // Balance kept uncommitted in calm markets
	HighVolReserve   float64 // Balance kept uncommitted while any symbol is in flash-crash mode
}

// BuyRequest carries everything the governor needs to authorize one buy.
type BuyRequest struct {
	Symbol            string
	SizeUSD           float64
	FreeBalance       float64
	TotalDeployed     float64
	OpenPositionValue float64 // 0 when the symbol has no open position
	AnyFlashActive    bool
	HasPriorBuy       bool
	SinceLastBuy      time.Duration
	MinInterval       time.Duration // Currently applicable inter-buy interval
	RapidBuyCapHit    bool
}

// Governor enforces capital constraints before any buy is executed.
// Refusals are expected, non-exceptional outcomes and are returned as a
// reason string rather than an error.
type Governor struct {
	cfg    GovernorConfig
	logger ports.Logger
}

// NewGovernor validates the config and creates a governor.
func NewGovernor(cfg GovernorConfig, logger ports.Logger) (*Governor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for governor")
	}
	if cfg.MaxPositionUSD <= 0 {
		return nil, fmt.Errorf("max position USD must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.MaxTotalDeployed <= 0 {
		return nil, fmt.Errorf("max total deployed must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.LowVolReserve < 0 || cfg.HighVolReserve < 0 {
		return nil, fmt.Errorf("reserves cannot be negative: %w", ports.ErrConfigurationError)
	}
	return &Governor{cfg: cfg, logger: logger}, nil
}

// Reserve returns the currently applicable capital reserve.
func (g *Governor) Reserve(anyFlashActive bool) float64 {
	if anyFlashActive {
		return g.cfg.HighVolReserve
	}
	return g.cfg.LowVolReserve
}

// Authorize checks a buy against all capital and cadence constraints.
// It returns false with a human-readable reason on refusal.
func (g *Governor) Authorize(req BuyRequest) (bool, string) {
	if req.HasPriorBuy && req.SinceLastBuy < req.MinInterval {
		return false, fmt.Sprintf("cooldown: %s since last buy, minimum %s", req.SinceLastBuy.Round(time.Second), req.MinInterval)
	}
	if req.RapidBuyCapHit {
		return false, "flash-crash rapid-buy cap reached"
	}
	if req.OpenPositionValue >= g.cfg.MaxPositionUSD {
		return false, fmt.Sprintf("position cap: $%.2f deployed, cap $%.2f", req.OpenPositionValue, g.cfg.MaxPositionUSD)
	}

	reserve := g.Reserve(req.AnyFlashActive)
	availableCapital := math.Max(0, req.FreeBalance-reserve)
	remainingBudget := g.cfg.MaxTotalDeployed - req.TotalDeployed
	authorized := math.Min(availableCapital, remainingBudget)
	if req.SizeUSD > authorized {
		return false, fmt.Sprintf("size $%.2f exceeds authorized $%.2f (available $%.2f, budget $%.2f)",
			req.SizeUSD, authorized, availableCapital, remainingBudget)
	}
	return true, ""
}
