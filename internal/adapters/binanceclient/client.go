package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptoDipBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements the ports.ExchangeClient interface using the go-binance spot client.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using the global binance.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Signature for this request is not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -1013, -1100, -1101, -1102, -1103, -1104, -1106, -1111: // Parameter/filter errors
			mappedErr = ports.ErrInvalidRequest
		case -2010: // New order rejected (includes insufficient balance on spot)
			if strings.Contains(strings.ToLower(apiErr.Message), "insufficient") {
				mappedErr = ports.ErrInsufficientFunds
			} else {
				mappedErr = ports.ErrOrderPlacementFailed
			}
		case -2014: // API-key format invalid
			mappedErr = ports.ErrInvalidAPIKeys
		case -2015: // Invalid API-key, IP, or permissions for action
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// SetServerTime synchronizes the client's time with the server's time.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	_, err := c.spotClient.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	err := c.spotClient.NewPingService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetTickerPrice retrieves the last ticker price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetTickerPrice"
	prices, err := c.spotClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(prices) == 0 {
		err := fmt.Errorf("no price data returned for symbol %s: %w", symbol, ports.ErrNoPriceData)
		return 0, c.handleError(ctx, err, op)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", prices[0].Price, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// GetFreeBalance retrieves the free balance for a specific asset (e.g., "USDT").
func (c *Client) GetFreeBalance(ctx context.Context, asset string) (float64, error) {
	op := "GetFreeBalance"
	account, err := c.spotClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}

	for _, bal := range account.Balances {
		if bal.Asset == asset {
			balance, err := strconv.ParseFloat(bal.Free, 64)
			if err != nil {
				parseErr := fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.Free, asset, err)
				return 0, c.handleError(ctx, parseErr, op)
			}
			return balance, nil
		}
	}

	// Asset not found in the account details
	err = fmt.Errorf("asset %s not found in account balance", asset)
	return 0, c.handleError(ctx, err, op)
}

// MarketBuy places a market buy sized in quote currency and returns the aggregated fill.
func (c *Client) MarketBuy(ctx context.Context, symbol string, quoteAmount float64) (*ports.OrderFill, error) {
	op := "MarketBuy"
	clientOrderID := newClientOrderID()

	order, err := c.spotClient.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(formatQuote(quoteAmount)).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	fill, err := translateOrderFill(order)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol": symbol, "quoteAmount": quoteAmount, "orderID": fill.OrderID,
		"avgPrice": fill.Price, "quantity": fill.Quantity,
	})
	return fill, nil
}

// MarketSell places a market sell for the given base-asset quantity and returns the aggregated fill.
func (c *Client) MarketSell(ctx context.Context, symbol string, quantity float64) (*ports.OrderFill, error) {
	op := "MarketSell"
	clientOrderID := newClientOrderID()

	order, err := c.spotClient.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(formatQuantity(quantity)).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	fill, err := translateOrderFill(order)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol": symbol, "quantity": quantity, "orderID": fill.OrderID, "avgPrice": fill.Price,
	})
	return fill, nil
}

// GetOrderBook retrieves a depth snapshot limited to the given number of levels.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (*ports.OrderBook, error) {
	op := "GetOrderBook"
	depth, err := c.spotClient.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	book := &ports.OrderBook{Symbol: symbol}
	for _, bid := range depth.Bids {
		price, qty, err := parseBookLevel(bid.Price, bid.Quantity)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to parse bid level: %w", err), op)
		}
		book.Bids = append(book.Bids, ports.BookLevel{Price: price, Quantity: qty})
	}
	for _, ask := range depth.Asks {
		price, qty, err := parseBookLevel(ask.Price, ask.Quantity)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to parse ask level: %w", err), op)
		}
		book.Asks = append(book.Asks, ports.BookLevel{Price: price, Quantity: qty})
	}
	return book, nil
}

// --- Translation Helpers ---

// newClientOrderID generates an idempotent client order ID.
func newClientOrderID() string {
	return "dip-" + uuid.NewString()
}

// formatQuote formats a quote-currency amount for the API.
// USDT pairs accept two decimal places on quoteOrderQty.
func formatQuote(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// formatQuantity formats a base-asset quantity for the API.
// TODO: Derive precision from exchange info filters per symbol.
func formatQuantity(quantity float64) string {
	return strconv.FormatFloat(quantity, 'f', 6, 64)
}

func parseBookLevel(priceStr, qtyStr string) (float64, float64, error) {
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing price '%s': %w", priceStr, err)
	}
	qty, err := strconv.ParseFloat(qtyStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing quantity '%s': %w", qtyStr, err)
	}
	return price, qty, nil
}

// translateOrderFill aggregates the individual fills of a market order into a
// single weighted-average fill.
func translateOrderFill(order *binance.CreateOrderResponse) (*ports.OrderFill, error) {
	if order == nil {
		return nil, errors.New("received nil order response")
	}

	executedQty, err := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing executed quantity '%s': %w", order.ExecutedQuantity, err)
	}
	quoteSpent, err := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing cumulative quote quantity '%s': %w", order.CummulativeQuoteQuantity, err)
	}

	// Prefer the weighted average over the reported fills; fall back to
	// quote/quantity when the fill list is empty.
	var avgPrice float64
	var sumQty, sumQuote float64
	for _, f := range order.Fills {
		price, err := strconv.ParseFloat(f.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing fill price '%s': %w", f.Price, err)
		}
		qty, err := strconv.ParseFloat(f.Quantity, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing fill quantity '%s': %w", f.Quantity, err)
		}
		sumQty += qty
		sumQuote += price * qty
	}
	if sumQty > 0 {
		avgPrice = sumQuote / sumQty
	} else if executedQty > 0 {
		avgPrice = quoteSpent / executedQty
	}

	if executedQty == 0 || avgPrice == 0 {
		return nil, fmt.Errorf("market order %d reported no executed quantity or price", order.OrderID)
	}

	return &ports.OrderFill{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Price:         avgPrice,
		Quantity:      executedQty,
		QuoteSpent:    quoteSpent,
		Timestamp:     time.UnixMilli(order.TransactTime),
	}, nil
}
