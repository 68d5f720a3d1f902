package engine

import (
	"context"
	"fmt"
	"sync"

	"gridbot/config"
	"gridbot/internal/ports"
)

// Engine runs the full order lifecycle for a single symbol: grid planning,
// position monitoring, reconciliation and reporting. Symbols are fully
// independent; main starts one Engine per configured symbol.
type Engine struct {
	symbol   string
	cfg      *config.Config
	exchange ports.ExchangeClient
	journal  ports.OrderJournal
	logger   ports.Logger
}

// New creates an Engine for one symbol.
func New(symbol string, cfg *config.Config, exchange ports.ExchangeClient, journal ports.OrderJournal, logger ports.Logger) *Engine {
	return &Engine{
		symbol:   symbol,
		cfg:      cfg,
		exchange: exchange,
		journal:  journal,
		logger:   logger,
	}
}

// Run performs startup (time sync, leverage, filters, spacing, ledger
// recovery), then runs the monitor, reconciler and reporter loops until the
// context is cancelled. It returns only after every loop has drained.
func (e *Engine) Run(ctx context.Context) error {
	startCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	err := e.exchange.SetServerTime(startCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to sync server time: %w", err)
	}

	startCtx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
	err = e.exchange.SetLeverage(startCtx, e.symbol, e.cfg.Leverage)
	cancel()
	if err != nil {
		// Not fatal: the exchange keeps whatever leverage the account already
		// has, and take-profit math reads leverage from the position itself.
		e.logger.Warn(ctx, "Failed to set leverage, continuing with account's current setting", map[string]interface{}{
			"symbol":   e.symbol,
			"leverage": e.cfg.Leverage,
			"error":    err.Error(),
		})
	}

	startCtx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
	filters, err := e.exchange.GetSymbolFilters(startCtx, e.symbol)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to fetch symbol filters for %s: %w", e.symbol, err)
	}
	e.logger.Info(ctx, "Symbol filters loaded", map[string]interface{}{
		"symbol":       e.symbol,
		"priceStep":    filters.PriceStep,
		"quantityStep": filters.QuantityStep,
	})

	spacing, err := e.buildSpacing(ctx, filters)
	if err != nil {
		return err
	}

	planner, err := NewPlanner(PlannerConfig{
		Symbol:           e.symbol,
		Levels:           e.cfg.GridLevels,
		Quantity:         e.cfg.Quantity,
		NotionalPerLevel: e.cfg.NotionalPerLevel,
		Spacing:          spacing,
		PriceStep:        filters.PriceStep,
		QuantityStep:     filters.QuantityStep,
	})
	if err != nil {
		return fmt.Errorf("failed to build grid planner for %s: %w", e.symbol, err)
	}

	ledger := NewLedger()
	if err := e.recoverLedger(ctx, ledger); err != nil {
		return err
	}

	monitor := NewMonitor(MonitorConfig{
		Symbol:            e.symbol,
		Exchange:          e.exchange,
		Ledger:            ledger,
		Planner:           planner,
		Journal:           e.journal,
		Logger:            e.logger,
		Interval:          e.cfg.PositionInterval,
		RequestTimeout:    e.cfg.RequestTimeout,
		TakeProfitPercent: e.cfg.TakeProfitPercent,
		StopLossPercent:   e.cfg.StopLossPercent,
		EnableStopLoss:    e.cfg.EnableStopLoss,
		RepriceTolerance:  e.cfg.RepriceToleranceSteps * filters.PriceStep,
	})
	reconciler := NewReconciler(ReconcilerConfig{
		Symbol:         e.symbol,
		Exchange:       e.exchange,
		Ledger:         ledger,
		Planner:        planner,
		Journal:        e.journal,
		Logger:         e.logger,
		Interval:       e.cfg.ReconcileInterval,
		RequestTimeout: e.cfg.RequestTimeout,
	})
	reporter := NewReporter(ReporterConfig{
		Symbol:         e.symbol,
		Exchange:       e.exchange,
		Ledger:         ledger,
		Journal:        e.journal,
		Logger:         e.logger,
		Interval:       e.cfg.ReportInterval,
		RequestTimeout: e.cfg.RequestTimeout,
	})

	e.logger.Info(ctx, "Engine started", map[string]interface{}{
		"symbol":      e.symbol,
		"gridLevels":  e.cfg.GridLevels,
		"spacingMode": string(e.cfg.SpacingMode),
		"leverage":    e.cfg.Leverage,
	})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reporter.Run(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	e.logger.Info(ctx, "Engine stopped", map[string]interface{}{"symbol": e.symbol})
	return nil
}

// buildSpacing constructs the configured spacing function. Volatility mode
// samples recent klines once at startup; spacing stays fixed for the run.
func (e *Engine) buildSpacing(ctx context.Context, filters *ports.SymbolFilters) (SpacingFunc, error) {
	switch e.cfg.SpacingMode {
	case config.SpacingProportional:
		return ProportionalSpacing(e.cfg.SpacingProportion), nil
	case config.SpacingTick:
		return TickSpacing(filters.PriceStep), nil
	case config.SpacingVolatility:
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		klines, err := e.exchange.GetKlines(callCtx, e.symbol, "1m", e.cfg.VolatilityPeriod+1)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch klines for volatility spacing: %w", err)
		}
		atr, err := ATRFromKlines(klines, e.cfg.VolatilityPeriod)
		if err != nil {
			return nil, fmt.Errorf("failed to compute ATR for volatility spacing: %w", err)
		}
		e.logger.Info(ctx, "Volatility spacing derived from recent candles", map[string]interface{}{
			"symbol": e.symbol,
			"atr":    atr,
			"period": e.cfg.VolatilityPeriod,
		})
		return VolatilitySpacing(atr), nil
	default:
		return nil, fmt.Errorf("%w: unknown spacing mode %q", ports.ErrConfigurationError, e.cfg.SpacingMode)
	}
}

// recoverLedger seeds the ledger from the exchange's open-order list so a
// restart adopts orders placed before the crash instead of doubling them.
func (e *Engine) recoverLedger(ctx context.Context, ledger *Ledger) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	live, err := e.exchange.ListOpenOrders(callCtx, e.symbol)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to list open orders during recovery: %w", err)
	}
	for _, o := range live {
		ledger.Insert(*o)
	}
	if len(live) > 0 {
		e.logger.Info(ctx, "Recovered resting orders from exchange", map[string]interface{}{
			"symbol": e.symbol,
			"count":  len(live),
		})
	}
	return nil
}
