package strategy

import (
	"fmt"
	"sort"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
)

// TierConfig describes one dip severity bucket.
type TierConfig struct {
	Tier            int     // 1..4, increasing severity
	ThresholdPct    float64 // Negative, e.g. -5.0
	LookbackMinutes int     // Window the drop is measured over
	OrderSizeUSD    float64 // Base order size before weighting/bonuses
}

// TierSignal reports a qualifying dip.
type TierSignal struct {
	Tier          int
	ChangePct     float64
	OrderSizeUSD  float64
	BaselinePrice float64 // Oldest in-window sample the drop was measured from
}

// TierDetector evaluates the configured tiers against a symbol's price history.
// Tiers are tested in descending severity order; the first match wins even when
// a less severe tier would also match.
type TierDetector struct {
	tiers  []TierConfig // sorted most severe first
	logger ports.Logger
}

// NewTierDetector creates a detector from the configured tiers.
func NewTierDetector(tiers []TierConfig, logger ports.Logger) (*TierDetector, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for tier detector")
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one tier must be configured: %w", ports.ErrConfigurationError)
	}
	for _, tc := range tiers {
		if tc.ThresholdPct >= 0 {
			return nil, fmt.Errorf("tier %d threshold must be negative, got %.2f: %w", tc.Tier, tc.ThresholdPct, ports.ErrConfigurationError)
		}
		if tc.LookbackMinutes <= 0 {
			return nil, fmt.Errorf("tier %d lookback must be positive: %w", tc.Tier, ports.ErrConfigurationError)
		}
		if tc.OrderSizeUSD <= 0 {
			return nil, fmt.Errorf("tier %d order size must be positive: %w", tc.Tier, ports.ErrConfigurationError)
		}
	}

	sorted := make([]TierConfig, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Tier > sorted[j].Tier
	})
	return &TierDetector{tiers: sorted, logger: logger}, nil
}

// Detect returns the most severe tier whose threshold is satisfied, or nil.
// A tier fires when the change from the oldest in-window sample to the current
// price is at or below its threshold (inclusive). No tier fires with fewer than
// two samples or when history does not reach back to the tier's horizon.
func (d *TierDetector) Detect(st *domain.SymbolState, currentPrice float64, now time.Time) *TierSignal {
	if len(st.Samples) < 2 {
		return nil
	}

	oldest, _ := st.Oldest()
	for _, tc := range d.tiers {
		horizon := now.Add(-time.Duration(tc.LookbackMinutes) * time.Minute)
		if oldest.Time.After(horizon) {
			// History too short to cover this tier's lookback.
			continue
		}
		baseline, ok := st.OldestWithin(horizon)
		if !ok || baseline.Price == 0 {
			continue
		}
		changePct := (currentPrice - baseline.Price) / baseline.Price * 100
		if changePct <= tc.ThresholdPct {
			return &TierSignal{
				Tier:          tc.Tier,
				ChangePct:     changePct,
				OrderSizeUSD:  tc.OrderSizeUSD,
				BaselinePrice: baseline.Price,
			}
		}
	}
	return nil
}
