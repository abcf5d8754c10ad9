package strategy

import (
	"testing"
	"time"

	"cryptoDipBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exitConfig() ExitConfig {
	return ExitConfig{
		TrailingActivationPct: 3,
		TrailPct:              1.5,
		TakeProfitByTier:      map[int]float64{1: 3, 2: 5, 3: 8, 4: 12},
		DefaultTakeProfitPct:  5,
		StopLossPct:           -20,
		MaxHold:               72 * time.Hour,
		TimeExitMinProfitPct:  0.5,
	}
}

func openPosition(entryPrice float64, tier int, entryTime time.Time) *domain.Position {
	return &domain.Position{
		ID:         1,
		Symbol:     "BTCUSDT",
		EntryPrice: entryPrice,
		Amount:     0.01,
		EntryTime:  entryTime,
		EntryTier:  tier,
		Status:     domain.StatusOpen,
	}
}

func TestNewExitEvaluator(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ExitConfig)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*ExitConfig) {}, wantErr: false},
		{name: "zero activation", mutate: func(c *ExitConfig) { c.TrailingActivationPct = 0 }, wantErr: true},
		{name: "zero trail", mutate: func(c *ExitConfig) { c.TrailPct = 0 }, wantErr: true},
		{name: "zero default take-profit", mutate: func(c *ExitConfig) { c.DefaultTakeProfitPct = 0 }, wantErr: true},
		{name: "positive stop-loss", mutate: func(c *ExitConfig) { c.StopLossPct = 20 }, wantErr: true},
		{name: "zero max hold", mutate: func(c *ExitConfig) { c.MaxHold = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := exitConfig()
			tt.mutate(&cfg)
			e, err := NewExitEvaluator(cfg, &mockLogger{})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, e)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, e)
			}
		})
	}
}

func TestEvaluate_TakeProfitByTier(t *testing.T) {
	e, err := NewExitEvaluator(exitConfig(), &mockLogger{})
	require.NoError(t, err)
	entryTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := entryTime.Add(time.Hour)

	// Tier 2 targets +5%; +5.5% triggers, and the trailing stop stays quiet
	// because the price has not retraced from its peak.
	pos := openPosition(100, 2, entryTime)
	st := domain.NewSymbolState("BTCUSDT")
	st.HighestSinceBuy = 100

	sig := e.Evaluate(pos, st, 105.5, now)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ExitReasonTakeProfit, sig.Reason)
	assert.InDelta(t, 5.5, sig.PnLPct, 1e-9)

	// A tier without an explicit target falls back to the default +5%.
	pos = openPosition(100, 7, entryTime)
	st = domain.NewSymbolState("BTCUSDT")
	st.HighestSinceBuy = 100
	sig = e.Evaluate(pos, st, 104, now)
	assert.Nil(t, sig)
	sig = e.Evaluate(pos, st, 105, now)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ExitReasonTakeProfit, sig.Reason)
}

func TestEvaluate_TrailingStop(t *testing.T) {
	e, err := NewExitEvaluator(exitConfig(), &mockLogger{})
	require.NoError(t, err)
	entryTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openPosition(100, 3, entryTime)
	st := domain.NewSymbolState("BTCUSDT")
	st.HighestSinceBuy = 100

	// +2% is below the activation threshold; the peak must not advance.
	assert.Nil(t, e.Evaluate(pos, st, 102, entryTime.Add(10*time.Minute)))
	assert.Equal(t, 100.0, st.HighestSinceBuy)

	// +4% arms the stop and records the peak.
	assert.Nil(t, e.Evaluate(pos, st, 104, entryTime.Add(20*time.Minute)))
	assert.Equal(t, 104.0, st.HighestSinceBuy)

	// A shallow retracement (above peak*(1-1.5%)) does not trigger.
	assert.Nil(t, e.Evaluate(pos, st, 103, entryTime.Add(30*time.Minute)))

	// Falling to the 1.5% retracement line triggers the trailing stop while
	// profit is still positive.
	sig := e.Evaluate(pos, st, 104*0.985, entryTime.Add(40*time.Minute))
	require.NotNil(t, sig)
	assert.Equal(t, domain.ExitReasonTrailingStop, sig.Reason)
	assert.Greater(t, sig.PnLPct, 0.0)
}

func TestEvaluate_TrailingStopPreemptsTakeProfit(t *testing.T) {
	e, err := NewExitEvaluator(exitConfig(), &mockLogger{})
	require.NoError(t, err)
	entryTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Tier 1 targets +3%. At +5% the take-profit is eligible, but the price
	// has retraced from a +10% peak past the 1.5% trail line (108.35), so the
	// trailing stop fires first.
	pos := openPosition(100, 1, entryTime)
	st := domain.NewSymbolState("BTCUSDT")
	st.HighestSinceBuy = 110

	sig := e.Evaluate(pos, st, 105, entryTime.Add(time.Hour))
	require.NotNil(t, sig)
	assert.Equal(t, domain.ExitReasonTrailingStop, sig.Reason)
	assert.InDelta(t, 5.0, sig.PnLPct, 1e-9)
}

func TestEvaluate_TrailingStopNotArmedBelowActivation(t *testing.T) {
	e, err := NewExitEvaluator(exitConfig(), &mockLogger{})
	require.NoError(t, err)
	entryTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openPosition(100, 1, entryTime)
	st := domain.NewSymbolState("BTCUSDT")
	st.HighestSinceBuy = 100

	// +2% then a pullback below the would-be retracement line: the stop never
	// armed, so nothing fires and the position rides the dip.
	assert.Nil(t, e.Evaluate(pos, st, 102, entryTime.Add(10*time.Minute)))
	assert.Nil(t, e.Evaluate(pos, st, 100.2, entryTime.Add(20*time.Minute)))
}

func TestEvaluate_StopLoss(t *testing.T) {
	e, err := NewExitEvaluator(exitConfig(), &mockLogger{})
	require.NoError(t, err)
	entryTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openPosition(100, 2, entryTime)
	st := domain.NewSymbolState("BTCUSDT")
	st.HighestSinceBuy = 100

	assert.Nil(t, e.Evaluate(pos, st, 81, entryTime.Add(time.Hour)))

	sig := e.Evaluate(pos, st, 80, entryTime.Add(time.Hour))
	require.NotNil(t, sig)
	assert.Equal(t, domain.ExitReasonStopLoss, sig.Reason)
	assert.InDelta(t, -20.0, sig.PnLPct, 1e-9)
}

func TestEvaluate_TimeBasedExit(t *testing.T) {
	e, err := NewExitEvaluator(exitConfig(), &mockLogger{})
	require.NoError(t, err)
	entryTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openPosition(100, 1, entryTime)
	st := domain.NewSymbolState("BTCUSDT")
	st.HighestSinceBuy = 100

	// Held past MaxHold at +1%: time exit fires.
	sig := e.Evaluate(pos, st, 101, entryTime.Add(73*time.Hour))
	require.NotNil(t, sig)
	assert.Equal(t, domain.ExitReasonTimeLimit, sig.Reason)

	// Held past MaxHold but below the minimum profit: the position is kept.
	pos = openPosition(100, 1, entryTime)
	st = domain.NewSymbolState("BTCUSDT")
	st.HighestSinceBuy = 100
	assert.Nil(t, e.Evaluate(pos, st, 100.2, entryTime.Add(73*time.Hour)))

	// Not yet past MaxHold: no time exit regardless of profit band.
	assert.Nil(t, e.Evaluate(pos, st, 101, entryTime.Add(71*time.Hour)))
}

func TestEvaluate_IgnoresClosedOrMissingPositions(t *testing.T) {
	e, err := NewExitEvaluator(exitConfig(), &mockLogger{})
	require.NoError(t, err)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := domain.NewSymbolState("BTCUSDT")

	assert.Nil(t, e.Evaluate(nil, st, 100, now))

	closed := openPosition(100, 1, now.Add(-time.Hour))
	closed.Status = domain.StatusClosed
	assert.Nil(t, e.Evaluate(closed, st, 50, now))
}
