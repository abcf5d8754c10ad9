package strategy

import (
	"fmt"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
)

// DefaultRetention is how long price samples are kept before pruning.
const DefaultRetention = 12 * time.Hour

// Tracker maintains the rolling, time-bounded price history on a symbol state.
type Tracker struct {
	retention time.Duration
	logger    ports.Logger
}

// NewTracker creates a price history tracker.
func NewTracker(retention time.Duration, logger ports.Logger) (*Tracker, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for tracker")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{retention: retention, logger: logger}, nil
}

// Record appends a sample and prunes samples older than the retention window.
// Samples are assumed to arrive in time order (one per polling cycle).
func (t *Tracker) Record(st *domain.SymbolState, price float64, now time.Time) {
	st.Samples = append(st.Samples, domain.PriceSample{Time: now, Price: price})
	st.Prune(now.Add(-t.retention))
}

// Latest returns the most recent recorded price, or false if no data exists.
func (t *Tracker) Latest(st *domain.SymbolState) (float64, bool) {
	sample, ok := st.Latest()
	if !ok {
		return 0, false
	}
	return sample.Price, true
}

// Retention returns the configured retention window.
func (t *Tracker) Retention() time.Duration {
	return t.retention
}
