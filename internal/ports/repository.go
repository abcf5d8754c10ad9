package ports

import (
	"context"

	"cryptoDipBot/internal/domain"
)

// PositionRepository defines the interface for storing and retrieving positions.
// One row is kept per position; repeated buys update the existing open row.
type PositionRepository interface {
	// Create saves a new position and returns its assigned ID.
	Create(ctx context.Context, pos *domain.Position) (int64, error)
	// Update modifies an existing position by its ID.
	Update(ctx context.Context, pos *domain.Position) error
	// FindOpenPositions retrieves all currently open positions.
	FindOpenPositions(ctx context.Context) ([]*domain.Position, error)
	// FindOpenBySymbol retrieves the currently open position for a given symbol, if any.
	// Returns nil, nil if no open position is found.
	FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error)
	// FindAll retrieves all positions, ordered by entry time descending.
	FindAll(ctx context.Context) ([]*domain.Position, error)
	// GetTotalProfit calculates the sum of profit for all closed positions.
	GetTotalProfit(ctx context.Context) (float64, error)
}
