package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ExitReasonTrailingStop ExitReason = "trailing_stop"
	ExitReasonTakeProfit   ExitReason = "take_profit"
	ExitReasonStopLoss     ExitReason = "stop_loss"
	ExitReasonTimeLimit    ExitReason = "time_limit"
	ExitReasonManual       ExitReason = "manual"
	ExitReasonUnknown      ExitReason = "unknown"
)
