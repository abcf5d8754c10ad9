package risk

import (
	"fmt"
	"math"

	"cryptoDipBot/internal/ports"
)

// DefaultSupportBandPct is the proximity band around a support level within
// which its bonus multiplier applies.
const DefaultSupportBandPct = 2.0

// SupportLevel is a configured static price level with a size bonus.
type SupportLevel struct {
	Price float64
	Bonus float64 // Multiplier applied when price is within the band
}

// SizerConfig holds parameters for position sizing.
type SizerConfig struct {
	// Weights are per-symbol allocation factors. A balanced 3-symbol book
	// uses 1/3 each; the x3 normalization in Size maps that default to 1.0.
	Weights map[string]float64
	// SupportLevels are checked in configured order; the first level whose
	// band contains the current price contributes its bonus.
	SupportLevels  map[string][]SupportLevel
	SupportBandPct float64 // Defaults to DefaultSupportBandPct when zero
}

// Sizer computes USD order sizes from tier base size, symbol weighting and
// support-level proximity.
type Sizer struct {
	cfg    SizerConfig
	logger ports.Logger
}

// NewSizer validates the config and creates a sizer.
func NewSizer(cfg SizerConfig, logger ports.Logger) (*Sizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for sizer")
	}
	if len(cfg.Weights) == 0 {
		return nil, fmt.Errorf("symbol weights must be configured: %w", ports.ErrConfigurationError)
	}
	for symbol, w := range cfg.Weights {
		if w <= 0 {
			return nil, fmt.Errorf("weight for %s must be positive, got %.4f: %w", symbol, w, ports.ErrConfigurationError)
		}
	}
	for symbol, levels := range cfg.SupportLevels {
		for _, lvl := range levels {
			if lvl.Price <= 0 || lvl.Bonus <= 0 {
				return nil, fmt.Errorf("invalid support level for %s: %w", symbol, ports.ErrConfigurationError)
			}
		}
	}
	if cfg.SupportBandPct <= 0 {
		cfg.SupportBandPct = DefaultSupportBandPct
	}
	return &Sizer{cfg: cfg, logger: logger}, nil
}

// Size returns the USD order size for a buy, rounded to a whole dollar.
func (s *Sizer) Size(symbol string, baseOrderUSD, currentPrice float64) float64 {
	weight := s.cfg.Weights[symbol]
	bonus := s.supportBonus(symbol, currentPrice)
	return math.Round(baseOrderUSD * (weight * 3) * bonus)
}

// supportBonus scans the symbol's configured levels in order and returns the
// bonus of the first level whose band contains the current price, else 1.0.
func (s *Sizer) supportBonus(symbol string, currentPrice float64) float64 {
	for _, lvl := range s.cfg.SupportLevels[symbol] {
		if math.Abs(currentPrice-lvl.Price)/lvl.Price*100 <= s.cfg.SupportBandPct {
			return lvl.Bonus
		}
	}
	return 1.0
}
