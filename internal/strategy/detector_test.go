package strategy

import (
	"context"
	"testing"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

func (m *mockLogger) Fatal(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func fourTiers() []TierConfig {
	return []TierConfig{
		{Tier: 1, ThresholdPct: -3, LookbackMinutes: 10, OrderSizeUSD: 100},
		{Tier: 2, ThresholdPct: -5, LookbackMinutes: 30, OrderSizeUSD: 200},
		{Tier: 3, ThresholdPct: -8, LookbackMinutes: 120, OrderSizeUSD: 400},
		{Tier: 4, ThresholdPct: -12, LookbackMinutes: 360, OrderSizeUSD: 800},
	}
}

func stateWithSamples(symbol string, samples ...domain.PriceSample) *domain.SymbolState {
	st := domain.NewSymbolState(symbol)
	st.Samples = samples
	return st
}

func TestNewTierDetector(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []TierConfig
		logger  ports.Logger
		wantErr bool
	}{
		{name: "valid tiers", tiers: fourTiers(), logger: &mockLogger{}, wantErr: false},
		{name: "nil logger", tiers: fourTiers(), logger: nil, wantErr: true},
		{name: "no tiers", tiers: nil, logger: &mockLogger{}, wantErr: true},
		{
			name:    "positive threshold",
			tiers:   []TierConfig{{Tier: 1, ThresholdPct: 3, LookbackMinutes: 10, OrderSizeUSD: 100}},
			logger:  &mockLogger{},
			wantErr: true,
		},
		{
			name:    "zero lookback",
			tiers:   []TierConfig{{Tier: 1, ThresholdPct: -3, LookbackMinutes: 0, OrderSizeUSD: 100}},
			logger:  &mockLogger{},
			wantErr: true,
		},
		{
			name:    "zero order size",
			tiers:   []TierConfig{{Tier: 1, ThresholdPct: -3, LookbackMinutes: 10, OrderSizeUSD: 0}},
			logger:  &mockLogger{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewTierDetector(tt.tiers, tt.logger)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, d)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, d)
			}
		})
	}
}

func TestDetect_ThresholdIsInclusive(t *testing.T) {
	d, err := NewTierDetector(fourTiers(), &mockLogger{})
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0.Add(10 * time.Minute)
	st := stateWithSamples("BTCUSDT",
		domain.PriceSample{Time: t0, Price: 100},
		domain.PriceSample{Time: now, Price: 97},
	)

	// Exactly -3.00% over a 10-minute window satisfies the tier 1 threshold.
	sig := d.Detect(st, 97, now)
	require.NotNil(t, sig)
	assert.Equal(t, 1, sig.Tier)
	assert.InDelta(t, -3.0, sig.ChangePct, 1e-9)
	assert.Equal(t, 100.0, sig.OrderSizeUSD)
	assert.Equal(t, 100.0, sig.BaselinePrice)
}

func TestDetect_MostSevereTierWins(t *testing.T) {
	d, err := NewTierDetector(fourTiers(), &mockLogger{})
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)
	now := t0.Add(6 * time.Hour)
	st := domain.NewSymbolState("ETHUSDT")
	// Slow bleed over six hours: -13% overall, which also satisfies every
	// shallower tier within its own window.
	for i := 0; i <= 360; i += 5 {
		price := 100 - 13*float64(i)/360
		st.Samples = append(st.Samples, domain.PriceSample{
			Time:  t0.Add(time.Duration(i) * time.Minute),
			Price: price,
		})
	}
	current := st.Samples[len(st.Samples)-1].Price

	sig := d.Detect(st, current, now)
	require.NotNil(t, sig)
	assert.Equal(t, 4, sig.Tier)
	assert.Equal(t, 800.0, sig.OrderSizeUSD)
}

func TestDetect_SkipsUncoveredTiers(t *testing.T) {
	d, err := NewTierDetector(fourTiers(), &mockLogger{})
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0.Add(10 * time.Minute)
	// History only reaches back 10 minutes, so tiers 2..4 are not evaluated
	// even though the drop is deep enough for all of them.
	st := stateWithSamples("SOLUSDT",
		domain.PriceSample{Time: t0, Price: 100},
		domain.PriceSample{Time: now, Price: 85},
	)

	sig := d.Detect(st, 85, now)
	require.NotNil(t, sig)
	assert.Equal(t, 1, sig.Tier)
}

func TestDetect_NoSignal(t *testing.T) {
	d, err := NewTierDetector(fourTiers(), &mockLogger{})
	require.NoError(t, err)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		st      *domain.SymbolState
		current float64
		now     time.Time
	}{
		{
			name:    "empty history",
			st:      domain.NewSymbolState("BTCUSDT"),
			current: 100,
			now:     t0,
		},
		{
			name: "single sample",
			st: stateWithSamples("BTCUSDT",
				domain.PriceSample{Time: t0, Price: 100},
			),
			current: 97,
			now:     t0.Add(10 * time.Minute),
		},
		{
			name: "drop too shallow",
			st: stateWithSamples("BTCUSDT",
				domain.PriceSample{Time: t0, Price: 100},
				domain.PriceSample{Time: t0.Add(10 * time.Minute), Price: 98},
			),
			current: 98,
			now:     t0.Add(10 * time.Minute),
		},
		{
			name: "price rising",
			st: stateWithSamples("BTCUSDT",
				domain.PriceSample{Time: t0, Price: 100},
				domain.PriceSample{Time: t0.Add(10 * time.Minute), Price: 104},
			),
			current: 104,
			now:     t0.Add(10 * time.Minute),
		},
		{
			name: "history younger than every lookback",
			st: stateWithSamples("BTCUSDT",
				domain.PriceSample{Time: t0, Price: 100},
				domain.PriceSample{Time: t0.Add(2 * time.Minute), Price: 90},
			),
			current: 90,
			now:     t0.Add(2 * time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, d.Detect(tt.st, tt.current, tt.now))
		})
	}
}

func TestDetect_BaselineIsOldestInWindow(t *testing.T) {
	d, err := NewTierDetector(fourTiers(), &mockLogger{})
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0.Add(20 * time.Minute)
	// The sample at t0 sits outside the 10-minute window; the baseline for
	// tier 1 must be the one at t0+10m.
	st := stateWithSamples("BTCUSDT",
		domain.PriceSample{Time: t0, Price: 120},
		domain.PriceSample{Time: t0.Add(10 * time.Minute), Price: 100},
		domain.PriceSample{Time: now, Price: 96},
	)

	sig := d.Detect(st, 96, now)
	require.NotNil(t, sig)
	assert.Equal(t, 1, sig.Tier)
	assert.Equal(t, 100.0, sig.BaselinePrice)
	assert.InDelta(t, -4.0, sig.ChangePct, 1e-9)
}
