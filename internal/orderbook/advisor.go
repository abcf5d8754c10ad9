package orderbook

import (
	"context"
	"fmt"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
)

const (
	defaultDepthLevels = 20
	// clusterBandPct bounds how far from the target a liquidity cluster may
	// sit and still be considered relevant.
	clusterBandPct = 1.5
)

// Advisor inspects the order book and may nudge a target price toward a
// detected liquidity cluster or the best bid/ask. It is purely advisory: any
// failure or absence of signal returns the original target unchanged, and the
// engine never blocks a trade on its output.
type Advisor struct {
	exchange ports.ExchangeClient
	depth    int
	logger   ports.Logger
}

// NewAdvisor creates an order book advisor.
func NewAdvisor(exchange ports.ExchangeClient, logger ports.Logger) (*Advisor, error) {
	if exchange == nil {
		return nil, fmt.Errorf("exchange client is required for order book advisor")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for order book advisor")
	}
	return &Advisor{exchange: exchange, depth: defaultDepthLevels, logger: logger}, nil
}

// AdjustPrice returns a possibly adjusted price, whether it was adjusted, and
// a human-readable reason.
func (a *Advisor) AdjustPrice(ctx context.Context, symbol string, side domain.OrderSide, target float64) (float64, bool, string) {
	book, err := a.exchange.GetOrderBook(ctx, symbol, a.depth)
	if err != nil {
		a.logger.Debug(ctx, "Order book unavailable, keeping target price", map[string]interface{}{
			"symbol": symbol, "target": target, "error": err.Error(),
		})
		return target, false, ""
	}

	levels := book.Bids
	if side == domain.Sell {
		levels = book.Asks
	}
	if len(levels) == 0 {
		return target, false, ""
	}

	cluster, ok := strongestCluster(levels, target)
	if ok && cluster.Price != target {
		return cluster.Price, true, fmt.Sprintf("liquidity cluster of %.4f at %.8g", cluster.Quantity, cluster.Price)
	}

	best := levels[0]
	if withinBand(best.Price, target) && best.Price != target {
		label := "bid"
		if side == domain.Sell {
			label = "ask"
		}
		return best.Price, true, fmt.Sprintf("aligned to best %s at %.8g", label, best.Price)
	}
	return target, false, ""
}

// strongestCluster returns the in-band level with the largest resting
// quantity, provided it holds a clear majority of the band's liquidity.
func strongestCluster(levels []ports.BookLevel, target float64) (ports.BookLevel, bool) {
	var best ports.BookLevel
	var total float64
	found := false
	for _, lvl := range levels {
		if !withinBand(lvl.Price, target) {
			continue
		}
		total += lvl.Quantity
		if !found || lvl.Quantity > best.Quantity {
			best = lvl
			found = true
		}
	}
	// A cluster is only meaningful when it dominates the band.
	if !found || total == 0 || best.Quantity < total/2 {
		return ports.BookLevel{}, false
	}
	return best, true
}

func withinBand(price, target float64) bool {
	if target == 0 {
		return false
	}
	diff := price - target
	if diff < 0 {
		diff = -diff
	}
	return diff/target*100 <= clusterBandPct
}
