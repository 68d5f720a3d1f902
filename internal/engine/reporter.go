package engine

import (
	"context"
	"time"

	"gridbot/internal/adapters/metrics"
	"gridbot/internal/ports"
)

// Reporter periodically logs a position and profit snapshot for one symbol.
// It is strictly read-only: it never places, cancels or mutates anything,
// so a reporting failure can never disturb the trading loops.
type Reporter struct {
	symbol         string
	exchange       ports.ExchangeClient
	ledger         *Ledger
	journal        ports.OrderJournal
	logger         ports.Logger
	interval       time.Duration
	requestTimeout time.Duration
}

// ReporterConfig wires a Reporter.
type ReporterConfig struct {
	Symbol         string
	Exchange       ports.ExchangeClient
	Ledger         *Ledger
	Journal        ports.OrderJournal
	Logger         ports.Logger
	Interval       time.Duration
	RequestTimeout time.Duration
}

// NewReporter creates a PnL reporter for one symbol.
func NewReporter(cfg ReporterConfig) *Reporter {
	return &Reporter{
		symbol:         cfg.Symbol,
		exchange:       cfg.Exchange,
		ledger:         cfg.Ledger,
		journal:        cfg.Journal,
		logger:         cfg.Logger,
		interval:       cfg.Interval,
		requestTimeout: cfg.RequestTimeout,
	}
}

// Run logs a snapshot every interval until the context is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report(ctx)
		}
	}
}

// report samples position, mark price and fill count, then logs one line.
// Errors are logged and swallowed; the next tick tries again.
func (r *Reporter) report(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	pos, err := r.exchange.GetPosition(callCtx, r.symbol)
	cancel()
	if err != nil {
		r.logger.Warn(ctx, "Report skipped: position unavailable", map[string]interface{}{"symbol": r.symbol, "error": err.Error()})
		return
	}

	fills, err := r.journal.CountFillsToday(ctx, r.symbol)
	if err != nil {
		r.logger.Warn(ctx, "Fill count unavailable", map[string]interface{}{"symbol": r.symbol, "error": err.Error()})
		fills = -1
	}

	if pos == nil {
		metrics.SetUnrealizedPnL(r.symbol, 0)
		r.logger.Info(ctx, "Status: flat", map[string]interface{}{
			"symbol":     r.symbol,
			"openOrders": r.ledger.Len(),
			"fillsToday": fills,
		})
		return
	}

	callCtx, cancel = context.WithTimeout(ctx, r.requestTimeout)
	markPrice, err := r.exchange.GetMarkPrice(callCtx, r.symbol)
	cancel()
	if err != nil {
		r.logger.Warn(ctx, "Report skipped: mark price unavailable", map[string]interface{}{"symbol": r.symbol, "error": err.Error()})
		return
	}

	// Signed amount makes this correct for both directions: a short gains
	// as the mark drops below entry.
	unrealized := (markPrice - pos.EntryPrice) * pos.Amount
	metrics.SetUnrealizedPnL(r.symbol, unrealized)

	r.logger.Info(ctx, "Status: in position", map[string]interface{}{
		"symbol":        r.symbol,
		"direction":     pos.Direction(),
		"amount":        pos.Amount,
		"entryPrice":    pos.EntryPrice,
		"markPrice":     markPrice,
		"unrealizedPnL": unrealized,
		"openOrders":    r.ledger.Len(),
		"fillsToday":    fills,
	})
}
