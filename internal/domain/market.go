package domain

import "time"

// PriceSample is a single observed price point for a symbol.
type PriceSample struct {
	Time  time.Time
	Price float64
}

// FlashCrashState tracks the accelerated-buying mode for a symbol.
type FlashCrashState struct {
	Active        bool // Whether flash-crash mode is engaged
	RapidBuyCount int  // Buys executed during the current episode
}

// SymbolState bundles all mutable per-symbol engine state into one record so
// the pieces cannot drift out of sync across independent maps.
type SymbolState struct {
	Symbol          string
	Samples         []PriceSample // Time-ordered, append-only, pruned by retention
	FlashCrash      FlashCrashState
	HighestSinceBuy float64   // Peak price seen while a position is open; 0 when flat
	LastBuyTime     time.Time // Zero value until the first buy
}

// NewSymbolState creates an empty state record for a symbol.
func NewSymbolState(symbol string) *SymbolState {
	return &SymbolState{Symbol: symbol}
}

// Latest returns the most recent price sample, if any.
func (s *SymbolState) Latest() (PriceSample, bool) {
	if len(s.Samples) == 0 {
		return PriceSample{}, false
	}
	return s.Samples[len(s.Samples)-1], true
}

// Oldest returns the oldest retained price sample, if any.
func (s *SymbolState) Oldest() (PriceSample, bool) {
	if len(s.Samples) == 0 {
		return PriceSample{}, false
	}
	return s.Samples[0], true
}

// OldestWithin returns the oldest sample taken at or after the given horizon.
func (s *SymbolState) OldestWithin(horizon time.Time) (PriceSample, bool) {
	for _, sample := range s.Samples {
		if !sample.Time.Before(horizon) {
			return sample, true
		}
	}
	return PriceSample{}, false
}

// Prune drops samples strictly older than the cutoff.
func (s *SymbolState) Prune(cutoff time.Time) {
	idx := 0
	for idx < len(s.Samples) && s.Samples[idx].Time.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		s.Samples = s.Samples[idx:]
	}
}
