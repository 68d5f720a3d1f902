package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gridbot/internal/domain"
	"gridbot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client implements the ports.ExchangeClient interface using the go-binance
// library.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
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

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using the global futures.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
	}, nil
}

// handleError translates common Binance API errors into standardized ports
// errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2010: // New order rejected
			mappedErr = ports.ErrOrderRejected
		case -2011: // Cancel order rejected
			mappedErr = ports.ErrOrderCancelFailed
		case -2013: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2014, -2015: // API-key format invalid / bad key, IP or permissions
			mappedErr = ports.ErrInvalidAPIKeys
		case -2019, -3005: // Margin/balance insufficient
			mappedErr = ports.ErrInsufficientFunds
		case -4003: // Qty not within permissible range
			mappedErr = ports.ErrInvalidRequest
		case -4014: // Price not within permissible range
			mappedErr = ports.ErrInvalidRequest
		case -4015: // Leverage is not valid
			mappedErr = ports.ErrInvalidRequest
		case -4164: // Order notional below minimum
			mappedErr = ports.ErrOrderRejected
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
	_, err := c.futuresClient.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetMarkPrice retrieves the current mark price for a given symbol.
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetMarkPrice"
	tickers, err := c.futuresClient.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		err := fmt.Errorf("no price data returned for symbol %s", symbol)
		return 0, c.handleError(ctx, err, op)
	}

	price, err := strconv.ParseFloat(tickers[0].MarkPrice, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", tickers[0].MarkPrice, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// GetSymbolFilters retrieves price and quantity increments for a symbol from
// exchange info.
func (c *Client) GetSymbolFilters(ctx context.Context, symbol string) (*ports.SymbolFilters, error) {
	op := "GetSymbolFilters"
	info, err := c.futuresClient.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != symbol {
			continue
		}

		filters := &ports.SymbolFilters{Symbol: symbol}
		if pf := s.PriceFilter(); pf != nil {
			filters.PriceStep, err = strconv.ParseFloat(pf.TickSize, 64)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("could not parse tick size '%s': %w", pf.TickSize, err), op)
			}
		}
		if lf := s.LotSizeFilter(); lf != nil {
			filters.QuantityStep, err = strconv.ParseFloat(lf.StepSize, 64)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("could not parse step size '%s': %w", lf.StepSize, err), op)
			}
		}
		if nf := s.MinNotionalFilter(); nf != nil {
			filters.MinNotional, _ = strconv.ParseFloat(nf.Notional, 64)
		}

		if filters.PriceStep <= 0 || filters.QuantityStep <= 0 {
			err := fmt.Errorf("incomplete filters for symbol %s (priceStep=%v, quantityStep=%v)", symbol, filters.PriceStep, filters.QuantityStep)
			return nil, c.handleError(ctx, err, op)
		}
		c.logger.Info(ctx, op+" successful", map[string]interface{}{
			"symbol":       symbol,
			"priceStep":    filters.PriceStep,
			"quantityStep": filters.QuantityStep,
			"minNotional":  filters.MinNotional,
		})
		return filters, nil
	}

	err = fmt.Errorf("symbol %s not found in exchange info: %w", symbol, ports.ErrNotFound)
	return nil, c.handleError(ctx, err, op)
}

// SetLeverage sets the leverage for a specific symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	op := "SetLeverage"
	_, err := c.futuresClient.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "leverage": leverage})
	return nil
}

// PlaceLimitOrder places a GTC limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string, price string) (*ports.OrderAck, error) {
	op := "PlaceLimitOrder"
	binanceSide := futures.SideType(side)

	order, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(binanceSide).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Quantity(quantity).
		Price(price).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	ack := translateOrderAck(order)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   symbol,
		"side":     side,
		"quantity": quantity,
		"price":    price,
		"orderID":  ack.OrderID,
		"status":   ack.Status,
	})
	return ack, nil
}

// CancelOrder cancels an open order on Binance.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderAck, error) {
	op := "CancelOrder"
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})

	res, err := c.futuresClient.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		// handleError maps -2013 to ErrOrderNotFound; callers treat that as
		// "already filled or cancelled".
		return nil, c.handleError(ctx, err, op)
	}

	price, _ := strconv.ParseFloat(res.Price, 64)
	origQty, _ := strconv.ParseFloat(res.OrigQuantity, 64)
	ack := &ports.OrderAck{
		OrderID:       res.OrderID,
		Symbol:        res.Symbol,
		ClientOrderID: res.ClientOrderID,
		Price:         price,
		OrigQuantity:  origQty,
		Status:        string(res.Status), // Should be CANCELED
		Side:          string(res.Side),
		Timestamp:     time.Now().UTC(),
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": ack.Status})
	return ack, nil
}

// ListOpenOrders returns all currently resting orders for a symbol.
func (c *Client) ListOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	op := "ListOpenOrders"
	binanceOrders, err := c.futuresClient.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	orders := make([]*domain.Order, 0, len(binanceOrders))
	for _, bo := range binanceOrders {
		o, err := translateOpenOrder(bo)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate open order %d: %w", bo.OrderID, err), op)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// GetPosition retrieves the open position for a symbol.
// Returns nil, nil when the position amount is zero.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	op := "GetPosition"
	positions, err := c.futuresClient.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(positions) == 0 {
		c.logger.Debug(ctx, op+": No position found for symbol", map[string]interface{}{"symbol": symbol})
		return nil, nil
	}

	// One-way position mode: a single entry per symbol.
	binancePos := positions[0]
	amount, _ := strconv.ParseFloat(binancePos.PositionAmt, 64)
	if amount == 0 {
		c.logger.Debug(ctx, op+": Position amount is zero for symbol", map[string]interface{}{"symbol": symbol})
		return nil, nil
	}

	entryPrice, _ := strconv.ParseFloat(binancePos.EntryPrice, 64)
	leverage, _ := strconv.Atoi(binancePos.Leverage) // Leverage is a string in go-binance

	return &domain.Position{
		Symbol:     binancePos.Symbol,
		Amount:     amount,
		EntryPrice: entryPrice,
		Leverage:   leverage,
	}, nil
}

// GetKlines retrieves recent candlesticks for the given symbol.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	binanceKlines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	domainKlines := make([]*domain.Kline, 0, len(binanceKlines))
	for _, bk := range binanceKlines {
		dk, err := translateKline(bk, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
		}
		domainKlines = append(domainKlines, dk)
	}

	return domainKlines, nil
}

// --- Translation Helpers ---

func translateOrderAck(order *futures.CreateOrderResponse) *ports.OrderAck {
	if order == nil {
		return nil
	}
	price, _ := strconv.ParseFloat(order.Price, 64)
	origQty, _ := strconv.ParseFloat(order.OrigQuantity, 64)
	execQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)

	return &ports.OrderAck{
		OrderID:       order.OrderID,
		Symbol:        order.Symbol,
		ClientOrderID: order.ClientOrderID,
		Price:         price,
		OrigQuantity:  origQty,
		ExecutedQty:   execQty,
		Status:        string(order.Status),
		Side:          string(order.Side),
		Timestamp:     time.UnixMilli(order.UpdateTime),
	}
}

func translateOpenOrder(bo *futures.Order) (*domain.Order, error) {
	if bo == nil {
		return nil, errors.New("received nil open order")
	}
	price, err := strconv.ParseFloat(bo.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing price '%s': %w", bo.Price, err)
	}
	qty, err := strconv.ParseFloat(bo.OrigQuantity, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing quantity '%s': %w", bo.OrigQuantity, err)
	}

	return &domain.Order{
		ID:        bo.OrderID,
		Symbol:    bo.Symbol,
		Side:      domain.OrderSide(bo.Side),
		Price:     price,
		Quantity:  qty,
		CreatedAt: time.UnixMilli(bo.Time),
	}, nil
}

func translateKline(bk *futures.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
