package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
)

// Ledger owns the authoritative record of open positions. The repository is
// the source of truth; the in-memory cache and the totalDeployed aggregate are
// reconstructed from persisted rows at startup and only mutated after the
// corresponding row has been written.
type Ledger struct {
	repo   ports.PositionRepository
	logger ports.Logger

	mu            sync.Mutex
	open          map[string]*domain.Position
	totalDeployed float64
}

// New creates a ledger backed by the given repository.
func New(repo ports.PositionRepository, logger ports.Logger) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required for ledger")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for ledger")
	}
	return &Ledger{
		repo:   repo,
		logger: logger,
		open:   make(map[string]*domain.Position),
	}, nil
}

// LoadOpen reloads all open positions from the repository, rebuilding the
// cache and the totalDeployed aggregate. Called once at startup so a restart
// mid-trade does not lose capital-tracking accuracy.
func (l *Ledger) LoadOpen(ctx context.Context) error {
	positions, err := l.repo.FindOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload open positions: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = make(map[string]*domain.Position, len(positions))
	l.totalDeployed = 0
	for _, pos := range positions {
		if existing, ok := l.open[pos.Symbol]; ok {
			return fmt.Errorf("multiple open positions persisted for %s (ids %d, %d)", pos.Symbol, existing.ID, pos.ID)
		}
		l.open[pos.Symbol] = pos
		l.totalDeployed += pos.Value()
	}
	l.logger.Info(ctx, "Open positions reloaded", map[string]interface{}{
		"count":         len(positions),
		"totalDeployed": l.totalDeployed,
	})
	return nil
}

// Open returns the open position for a symbol, or nil.
func (l *Ledger) Open(symbol string) *domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[symbol]
}

// OpenPositions returns all currently open positions.
func (l *Ledger) OpenPositions() []*domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	positions := make([]*domain.Position, 0, len(l.open))
	for _, pos := range l.open {
		positions = append(positions, pos)
	}
	return positions
}

// TotalDeployed returns the sum of entryPrice*amount over open positions.
func (l *Ledger) TotalDeployed() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalDeployed
}

// OpenOrMerge records a fill. With no open position it creates one; otherwise
// it merges the fill into the existing position via amount-weighted averaging
// and raises entryTier to the maximum contributing tier. The row is persisted
// before any in-memory aggregate changes.
func (l *Ledger) OpenOrMerge(ctx context.Context, symbol string, fillPrice, fillAmount float64, tier int, now time.Time) (*domain.Position, error) {
	if fillPrice <= 0 || fillAmount <= 0 {
		return nil, fmt.Errorf("invalid fill for %s: price=%.8f amount=%.8f", symbol, fillPrice, fillAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fillValue := fillPrice * fillAmount
	existing := l.open[symbol]
	if existing == nil {
		pos := &domain.Position{
			Symbol:     symbol,
			EntryPrice: fillPrice,
			Amount:     fillAmount,
			EntryTime:  now,
			EntryTier:  tier,
			Status:     domain.StatusOpen,
		}
		if _, err := l.repo.Create(ctx, pos); err != nil {
			return nil, fmt.Errorf("failed to persist new position for %s: %w", symbol, err)
		}
		l.open[symbol] = pos
		l.totalDeployed += fillValue
		l.logger.Info(ctx, "Position opened", map[string]interface{}{
			"positionID": pos.ID, "symbol": symbol, "entryPrice": fillPrice,
			"amount": fillAmount, "tier": tier, "totalDeployed": l.totalDeployed,
		})
		return pos, nil
	}

	merged := *existing
	merged.Amount = existing.Amount + fillAmount
	merged.EntryPrice = (existing.EntryPrice*existing.Amount + fillValue) / merged.Amount
	if tier > merged.EntryTier {
		merged.EntryTier = tier
	}
	if err := l.repo.Update(ctx, &merged); err != nil {
		return nil, fmt.Errorf("failed to persist merged position %d for %s: %w", existing.ID, symbol, err)
	}
	*existing = merged
	l.totalDeployed += fillValue
	l.logger.Info(ctx, "Position merged", map[string]interface{}{
		"positionID": existing.ID, "symbol": symbol, "entryPrice": existing.EntryPrice,
		"amount": existing.Amount, "tier": existing.EntryTier, "totalDeployed": l.totalDeployed,
	})
	return existing, nil
}

// Close marks the open position closed with exit metadata, decrements
// totalDeployed by the position's pre-close value, and removes it from the
// open set. The row is persisted before any in-memory aggregate changes.
func (l *Ledger) Close(ctx context.Context, symbol string, exitPrice float64, reason domain.ExitReason, now time.Time) (*domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.open[symbol]
	if pos == nil {
		return nil, fmt.Errorf("no open position for %s: %w", symbol, ports.ErrNotFound)
	}

	preCloseValue := pos.Value()
	closed := *pos
	closed.Status = domain.StatusClosed
	closed.ExitPrice = exitPrice
	closed.ExitTime = now
	closed.Profit = (exitPrice - pos.EntryPrice) * pos.Amount
	closed.ExitReason = reason

	if err := l.repo.Update(ctx, &closed); err != nil {
		return nil, fmt.Errorf("failed to persist close for position %d (%s): %w", pos.ID, symbol, err)
	}

	*pos = closed
	delete(l.open, symbol)
	l.totalDeployed -= preCloseValue
	l.logger.Info(ctx, "Position closed", map[string]interface{}{
		"positionID": closed.ID, "symbol": symbol, "exitPrice": exitPrice,
		"profit": closed.Profit, "reason": reason, "totalDeployed": l.totalDeployed,
	})
	return &closed, nil
}

// TotalProfit returns the realized profit over all closed positions.
func (l *Ledger) TotalProfit(ctx context.Context) (float64, error) {
	return l.repo.GetTotalProfit(ctx)
}
