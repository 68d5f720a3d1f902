package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"gridbot/internal/adapters/metrics"
	"gridbot/internal/domain"
	"gridbot/internal/ports"
)

// Monitor drives the position state machine. While flat it keeps the grid
// populated; once a position appears it cancels the orders that would add to
// it and maintains a single take-profit order tracking the position. When
// the position closes it cancels everything for the symbol and resumes grid
// maintenance.
type Monitor struct {
	symbol         string
	exchange       ports.ExchangeClient
	ledger         *Ledger
	planner        *Planner
	journal        ports.OrderJournal
	logger         ports.Logger
	interval       time.Duration
	requestTimeout time.Duration

	takeProfitPercent float64
	stopLossPercent   float64
	enableStopLoss    bool
	repriceTolerance  float64 // Price units of TP drift tolerated before repricing

	// State. Only the monitor goroutine touches these; the shared ledger has
	// its own lock.
	direction domain.Direction
	trackedTP *domain.Order
	trackedSL *domain.Order
}

// MonitorConfig wires a Monitor.
type MonitorConfig struct {
	Symbol            string
	Exchange          ports.ExchangeClient
	Ledger            *Ledger
	Planner           *Planner
	Journal           ports.OrderJournal
	Logger            ports.Logger
	Interval          time.Duration
	RequestTimeout    time.Duration
	TakeProfitPercent float64
	StopLossPercent   float64
	EnableStopLoss    bool
	RepriceTolerance  float64
}

// NewMonitor creates a position monitor for one symbol, starting flat.
func NewMonitor(cfg MonitorConfig) *Monitor {
	return &Monitor{
		symbol:            cfg.Symbol,
		exchange:          cfg.Exchange,
		ledger:            cfg.Ledger,
		planner:           cfg.Planner,
		journal:           cfg.Journal,
		logger:            cfg.Logger,
		interval:          cfg.Interval,
		requestTimeout:    cfg.RequestTimeout,
		takeProfitPercent: cfg.TakeProfitPercent,
		stopLossPercent:   cfg.StopLossPercent,
		enableStopLoss:    cfg.EnableStopLoss,
		repriceTolerance:  cfg.RepriceTolerance,
		direction:         domain.Flat,
	}
}

// Direction returns the monitor's current view of the position state.
func (m *Monitor) Direction() domain.Direction {
	return m.direction
}

// Run executes monitor ticks until the context is cancelled. Errors never
// escape an iteration; transient gateway failures back off exponentially
// with jitter and a clean tick resets the delay.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info(ctx, "Position monitor started", map[string]interface{}{"symbol": m.symbol, "interval": m.interval.String()})

	retry := newRetryBackoff(m.interval)
	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "Position monitor stopped", map[string]interface{}{"symbol": m.symbol})
			return
		case <-timer.C:
		}

		err := m.tick(ctx)
		delay := nextDelay(retry, m.interval, err)
		switch {
		case err == nil:
		case ports.IsTransient(err):
			m.logger.Warn(ctx, "Monitor tick failed, backing off", map[string]interface{}{"symbol": m.symbol, "delay": delay.String(), "error": err.Error()})
		default:
			m.logger.Error(ctx, err, "Monitor tick failed", map[string]interface{}{"symbol": m.symbol})
		}
		timer.Reset(delay)
	}
}

// tick runs one state-machine transition based on the sampled position.
// Position state is never cached across ticks; the exchange is asked anew.
func (m *Monitor) tick(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	pos, err := m.exchange.GetPosition(callCtx, m.symbol)
	cancel()
	if err != nil {
		return err
	}

	dir := pos.Direction()
	switch {
	case dir == domain.Flat && m.direction == domain.Flat:
		return m.maintainGrid(ctx)
	case dir != domain.Flat && m.direction == domain.Flat:
		return m.enterPosition(ctx, pos, dir)
	case dir == domain.Flat && m.direction != domain.Flat:
		return m.returnToFlat(ctx)
	default:
		if dir != m.direction {
			return m.handleReversal(ctx, pos, dir)
		}
		return m.adjustExit(ctx, pos)
	}
}

// maintainGrid tops the ladder up to its target order count, placing only
// levels not already resting (probed by side and price within half a step).
func (m *Monitor) maintainGrid(ctx context.Context) error {
	if m.ledger.Len() >= m.planner.TargetOrderCount() {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	refPrice, err := m.exchange.GetMarkPrice(callCtx, m.symbol)
	cancel()
	if err != nil {
		// No reference price, no planning. Retry on the next tick.
		return err
	}

	levels, err := m.planner.Plan(refPrice)
	if err != nil {
		return err
	}

	m.logger.Info(ctx, "Populating grid", map[string]interface{}{
		"symbol":   m.symbol,
		"refPrice": refPrice,
		"resting":  m.ledger.Len(),
		"target":   m.planner.TargetOrderCount(),
	})

	tolerance := m.planner.PriceStep() / 2
	for _, level := range levels {
		if m.ledger.ContainsPrice(level.Side, level.Price, tolerance) {
			continue
		}
		if err := m.placeOrder(ctx, level.Side, level.Quantity, level.Price, "grid"); err != nil {
			if ports.IsRejected(err) {
				m.logger.Warn(ctx, "Grid order rejected, dropping for this pass", map[string]interface{}{
					"symbol": m.symbol,
					"side":   level.Side,
					"price":  level.Price,
					"error":  err.Error(),
				})
				continue
			}
			return err
		}
	}
	metrics.SetOpenOrders(m.symbol, m.ledger.Len())
	return nil
}

// enterPosition handles FLAT -> IN_POSITION: cancel the side that would add
// to the position, then place the initial take-profit order.
func (m *Monitor) enterPosition(ctx context.Context, pos *domain.Position, dir domain.Direction) error {
	m.logger.Info(ctx, "Position detected", map[string]interface{}{
		"symbol":     m.symbol,
		"direction":  dir,
		"amount":     pos.Amount,
		"entryPrice": pos.EntryPrice,
	})

	if err := m.cancelSide(ctx, dir.AccumulatingSide()); err != nil {
		return err
	}
	if err := m.placeExits(ctx, pos, dir); err != nil {
		return err
	}

	m.direction = dir
	return nil
}

// adjustExit handles IN_POSITION -> IN_POSITION with an unchanged direction:
// reprice the tracked take-profit when the desired price drifts beyond the
// tolerance (or the position size changed).
func (m *Monitor) adjustExit(ctx context.Context, pos *domain.Position) error {
	target, ok := CalculateTakeProfit(pos, m.takeProfitPercent, m.planner.PriceStep())
	if !ok {
		return nil
	}

	if m.trackedTP == nil {
		return m.placeExits(ctx, pos, pos.Direction())
	}

	drift := math.Abs(target.Price - m.trackedTP.Price)
	sizeChanged := math.Abs(target.Quantity-m.trackedTP.Quantity) >= m.planner.QuantityStep()
	if drift <= m.repriceTolerance && !sizeChanged {
		return nil
	}

	m.logger.Info(ctx, "Take-profit target moved, repricing", map[string]interface{}{
		"symbol":   m.symbol,
		"oldPrice": m.trackedTP.Price,
		"newPrice": target.Price,
		"drift":    drift,
	})

	if err := m.cancelTracked(ctx); err != nil {
		return err
	}
	return m.placeExits(ctx, pos, pos.Direction())
}

// handleReversal handles a position that flipped sign between ticks: retire
// the stale exit orders and protect the new direction.
func (m *Monitor) handleReversal(ctx context.Context, pos *domain.Position, dir domain.Direction) error {
	m.logger.Warn(ctx, "Position direction reversed", map[string]interface{}{
		"symbol": m.symbol,
		"from":   m.direction,
		"to":     dir,
	})

	if err := m.cancelTracked(ctx); err != nil {
		return err
	}
	if err := m.cancelSide(ctx, dir.AccumulatingSide()); err != nil {
		return err
	}
	if err := m.placeExits(ctx, pos, dir); err != nil {
		return err
	}

	m.direction = dir
	return nil
}

// returnToFlat handles IN_POSITION -> FLAT: the position closed, so every
// remaining order for the symbol is cancelled and grid maintenance resumes
// on the next tick.
func (m *Monitor) returnToFlat(ctx context.Context) error {
	m.logger.Info(ctx, "Position closed, cancelling remaining orders", map[string]interface{}{"symbol": m.symbol})

	callCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	live, err := m.exchange.ListOpenOrders(callCtx, m.symbol)
	cancel()
	if err != nil {
		return err
	}

	for _, o := range live {
		if err := m.cancelOrder(ctx, o.ID, o.Side); err != nil {
			return err
		}
	}

	m.ledger.Clear()
	m.trackedTP = nil
	m.trackedSL = nil
	m.direction = domain.Flat
	metrics.SetOpenOrders(m.symbol, 0)
	return nil
}

// placeExits computes and places the take-profit order (and, only when
// explicitly enabled, the mirrored stop-loss). At most one of each may be
// live: an exit already tracked is kept, never placed twice. A tick that
// fails partway (TP placed, stop-loss refused) retries here and completes
// only the missing order.
func (m *Monitor) placeExits(ctx context.Context, pos *domain.Position, dir domain.Direction) error {
	target, ok := CalculateTakeProfit(pos, m.takeProfitPercent, m.planner.PriceStep())
	if !ok {
		// Flat by the time we got here; the next tick sees it too.
		return nil
	}

	if m.trackedTP == nil {
		order, err := m.placeOrderTracked(ctx, target.Side(), target.Quantity, target.Price, "take_profit")
		if err != nil {
			return err
		}
		m.trackedTP = order
		m.logger.Info(ctx, "Take-profit order placed", map[string]interface{}{
			"symbol":    m.symbol,
			"direction": dir,
			"price":     target.Price,
			"quantity":  target.Quantity,
			"orderID":   order.ID,
		})
	}

	// Stop-loss is configured but inert unless enabled: the original system
	// accepted the percentage and never placed an order.
	if !m.enableStopLoss || m.trackedSL != nil {
		return nil
	}

	slTarget, ok := CalculateStopLoss(pos, m.stopLossPercent, m.planner.PriceStep())
	if !ok {
		return nil
	}
	slOrder, err := m.placeOrderTracked(ctx, slTarget.Side(), slTarget.Quantity, slTarget.Price, "stop_loss")
	if err != nil {
		return err
	}
	m.trackedSL = slOrder
	m.logger.Info(ctx, "Stop-loss order placed", map[string]interface{}{
		"symbol":   m.symbol,
		"price":    slTarget.Price,
		"quantity": slTarget.Quantity,
		"orderID":  slOrder.ID,
	})
	return nil
}

// cancelTracked retires the currently tracked exit orders.
func (m *Monitor) cancelTracked(ctx context.Context) error {
	if m.trackedTP != nil {
		if err := m.cancelOrder(ctx, m.trackedTP.ID, m.trackedTP.Side); err != nil {
			return err
		}
		m.trackedTP = nil
	}
	if m.trackedSL != nil {
		if err := m.cancelOrder(ctx, m.trackedSL.ID, m.trackedSL.Side); err != nil {
			return err
		}
		m.trackedSL = nil
	}
	return nil
}

// cancelSide cancels every tracked order on one side.
func (m *Monitor) cancelSide(ctx context.Context, side domain.OrderSide) error {
	for _, o := range m.ledger.Snapshot() {
		if o.Side != side {
			continue
		}
		if err := m.cancelOrder(ctx, o.ID, o.Side); err != nil {
			return err
		}
	}
	metrics.SetOpenOrders(m.symbol, m.ledger.Len())
	return nil
}

// cancelOrder cancels one order, tolerating "order not found" (it was filled
// or cancelled in the meantime), and drops it from the ledger either way.
func (m *Monitor) cancelOrder(ctx context.Context, orderID int64, side domain.OrderSide) error {
	callCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	_, err := m.exchange.CancelOrder(callCtx, m.symbol, orderID)
	cancel()
	if err != nil {
		if errors.Is(err, ports.ErrOrderNotFound) {
			m.logger.Warn(ctx, "Order to cancel not found, likely already filled or cancelled", map[string]interface{}{
				"symbol":  m.symbol,
				"orderID": orderID,
			})
		} else {
			return err
		}
	}

	m.ledger.Remove(orderID)
	metrics.IncOrderCanceled(m.symbol, string(side))
	if err := m.journal.RecordCancel(ctx, orderID, time.Now().UTC()); err != nil {
		m.logger.Error(ctx, err, "Failed to journal cancellation", map[string]interface{}{"orderID": orderID})
	}
	return nil
}

// placeOrder places a limit order and inserts the acknowledgment into the
// ledger.
func (m *Monitor) placeOrder(ctx context.Context, side domain.OrderSide, quantity, price float64, purpose string) error {
	_, err := m.placeOrderTracked(ctx, side, quantity, price, purpose)
	return err
}

func (m *Monitor) placeOrderTracked(ctx context.Context, side domain.OrderSide, quantity, price float64, purpose string) (*domain.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	ack, err := m.exchange.PlaceLimitOrder(callCtx, m.symbol,
		side,
		FormatByStep(quantity, m.planner.QuantityStep()),
		FormatByStep(price, m.planner.PriceStep()),
	)
	cancel()
	if err != nil {
		return nil, err
	}

	order := domain.Order{
		ID:        ack.OrderID,
		Symbol:    m.symbol,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
	m.ledger.Insert(order)
	metrics.IncOrderPlaced(m.symbol, string(side), purpose)
	if _, err := m.journal.RecordPlacement(ctx, &ports.JournalEntry{
		OrderID:  order.ID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Purpose:  purpose,
		Price:    order.Price,
		Quantity: order.Quantity,
		PlacedAt: order.CreatedAt,
	}); err != nil {
		m.logger.Error(ctx, err, "Failed to journal order placement", map[string]interface{}{"orderID": order.ID})
	}
	return &order, nil
}
