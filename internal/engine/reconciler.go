package engine

import (
	"context"
	"time"

	"gridbot/internal/adapters/metrics"
	"gridbot/internal/domain"
	"gridbot/internal/ports"
)

// Reconciler keeps the ledger consistent with the exchange's open-order list
// and keeps the grid populated. Fills are detected by diffing: an order that
// was tracked but is no longer open has been filled or externally cancelled
// (the two are indistinguishable from this signal alone). Each detected fill
// triggers one replacement order a single spacing unit further from the
// filled price, so the ladder stays continuous.
type Reconciler struct {
	symbol         string
	exchange       ports.ExchangeClient
	ledger         *Ledger
	planner        *Planner
	journal        ports.OrderJournal
	logger         ports.Logger
	interval       time.Duration
	requestTimeout time.Duration
}

// ReconcilerConfig wires a Reconciler.
type ReconcilerConfig struct {
	Symbol         string
	Exchange       ports.ExchangeClient
	Ledger         *Ledger
	Planner        *Planner
	Journal        ports.OrderJournal
	Logger         ports.Logger
	Interval       time.Duration
	RequestTimeout time.Duration
}

// NewReconciler creates a reconciliation loop for one symbol.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{
		symbol:         cfg.Symbol,
		exchange:       cfg.Exchange,
		ledger:         cfg.Ledger,
		planner:        cfg.Planner,
		journal:        cfg.Journal,
		logger:         cfg.Logger,
		interval:       cfg.Interval,
		requestTimeout: cfg.RequestTimeout,
	}
}

// Run executes reconcile cycles until the context is cancelled. No error
// escapes an iteration: failures are logged, the cycle is abandoned, and the
// next tick retries. Transient gateway errors stretch the delay with
// jittered exponential backoff; a clean cycle resets it.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info(ctx, "Reconciliation loop started", map[string]interface{}{"symbol": r.symbol, "interval": r.interval.String()})

	retry := newRetryBackoff(r.interval)
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "Reconciliation loop stopped", map[string]interface{}{"symbol": r.symbol})
			return
		case <-timer.C:
		}

		err := r.reconcile(ctx)
		delay := nextDelay(retry, r.interval, err)
		switch {
		case err == nil:
			metrics.IncReconcileCycle(r.symbol, "ok")
		case ports.IsTransient(err):
			metrics.IncReconcileCycle(r.symbol, "error")
			r.logger.Warn(ctx, "Reconcile cycle failed, backing off", map[string]interface{}{"symbol": r.symbol, "delay": delay.String(), "error": err.Error()})
		default:
			metrics.IncReconcileCycle(r.symbol, "error")
			r.logger.Error(ctx, err, "Reconcile cycle failed", map[string]interface{}{"symbol": r.symbol})
		}
		timer.Reset(delay)
	}
}

// reconcile performs one cycle: list, adopt, diff, replace.
func (r *Reconciler) reconcile(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	live, err := r.exchange.ListOpenOrders(callCtx, r.symbol)
	cancel()
	if err != nil {
		return err
	}

	// The exchange's list is ground truth. Adopt anything it knows about
	// that we don't (orders placed before a crash, manual orders).
	liveIDs := make(map[int64]struct{}, len(live))
	for _, o := range live {
		liveIDs[o.ID] = struct{}{}
		if !r.ledger.Contains(o.ID) {
			r.logger.Warn(ctx, "Adopting untracked exchange order into ledger", map[string]interface{}{
				"symbol":  r.symbol,
				"orderID": o.ID,
				"side":    o.Side,
				"price":   o.Price,
			})
			r.ledger.Insert(*o)
		}
	}

	// Tracked but no longer open: filled or cancelled externally.
	var filled []domain.Order
	for id := range r.ledger.IDs() {
		if _, open := liveIDs[id]; open {
			continue
		}
		if o, ok := r.ledger.Remove(id); ok {
			filled = append(filled, o)
		}
	}

	for _, o := range filled {
		r.logger.Info(ctx, "Order left the open list, regenerating level", map[string]interface{}{
			"symbol":  r.symbol,
			"orderID": o.ID,
			"side":    o.Side,
			"price":   o.Price,
		})
		metrics.IncFillDetected(r.symbol, string(o.Side))
		if err := r.journal.RecordFill(ctx, o.ID, time.Now().UTC()); err != nil {
			r.logger.Error(ctx, err, "Failed to journal fill", map[string]interface{}{"orderID": o.ID})
		}

		if err := r.replace(ctx, o); err != nil {
			if ports.IsRejected(err) {
				// Dropped for this cycle; the monitor's next grid pass
				// reconsiders the level.
				r.logger.Warn(ctx, "Replacement order rejected, dropping for this cycle", map[string]interface{}{
					"symbol":  r.symbol,
					"side":    o.Side,
					"price":   o.Price,
					"error":   err.Error(),
					"orderID": o.ID,
				})
				continue
			}
			metrics.SetOpenOrders(r.symbol, r.ledger.Len())
			return err
		}
	}

	metrics.SetOpenOrders(r.symbol, r.ledger.Len())
	return nil
}

// replace submits one order on the same side, one spacing unit further from
// the filled price: a filled SELL regenerates one unit higher, a filled BUY
// one unit lower.
func (r *Reconciler) replace(ctx context.Context, filled domain.Order) error {
	step := r.planner.Step(filled.Price)
	price := filled.Price + step
	if filled.Side == domain.Buy {
		price = filled.Price - step
	}
	price = RoundToStep(price, r.planner.PriceStep())

	callCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	ack, err := r.exchange.PlaceLimitOrder(callCtx, r.symbol,
		filled.Side,
		FormatByStep(filled.Quantity, r.planner.QuantityStep()),
		FormatByStep(price, r.planner.PriceStep()),
	)
	cancel()
	if err != nil {
		return err
	}

	order := domain.Order{
		ID:        ack.OrderID,
		Symbol:    r.symbol,
		Side:      filled.Side,
		Price:     price,
		Quantity:  filled.Quantity,
		CreatedAt: time.Now().UTC(),
	}
	r.ledger.Insert(order)
	metrics.IncOrderPlaced(r.symbol, string(order.Side), "replacement")
	if _, err := r.journal.RecordPlacement(ctx, &ports.JournalEntry{
		OrderID:  order.ID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Purpose:  "replacement",
		Price:    order.Price,
		Quantity: order.Quantity,
		PlacedAt: order.CreatedAt,
	}); err != nil {
		r.logger.Error(ctx, err, "Failed to journal replacement order", map[string]interface{}{"orderID": order.ID})
	}
	return nil
}
