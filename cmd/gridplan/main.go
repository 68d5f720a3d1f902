// Command gridplan prints the ladder the bot would place for each configured
// symbol at the current mark price, without placing anything. Useful for
// sanity-checking spacing and sizing before running live.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gridbot/config"
	"gridbot/internal/adapters/binanceclient"
	"gridbot/internal/adapters/logger"
	"gridbot/internal/engine"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Only warnings and errors; the table is the output.
	log := logger.NewStdLogger(logger.LevelWarn)

	exchange, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "exchange client error: %v\n", err)
		os.Exit(1)
	}

	for _, symbol := range cfg.Symbols {
		if err := printPlan(ctx, cfg, exchange, symbol); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", symbol, err)
			os.Exit(1)
		}
	}
}

func printPlan(ctx context.Context, cfg *config.Config, exchange *binanceclient.Client, symbol string) error {
	filters, err := exchange.GetSymbolFilters(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetching symbol filters: %w", err)
	}

	var spacing engine.SpacingFunc
	switch cfg.SpacingMode {
	case config.SpacingProportional:
		spacing = engine.ProportionalSpacing(cfg.SpacingProportion)
	case config.SpacingTick:
		spacing = engine.TickSpacing(filters.PriceStep)
	case config.SpacingVolatility:
		klines, err := exchange.GetKlines(ctx, symbol, "1m", cfg.VolatilityPeriod+1)
		if err != nil {
			return fmt.Errorf("fetching klines: %w", err)
		}
		atr, err := engine.ATRFromKlines(klines, cfg.VolatilityPeriod)
		if err != nil {
			return fmt.Errorf("computing ATR: %w", err)
		}
		spacing = engine.VolatilitySpacing(atr)
	default:
		return fmt.Errorf("unknown spacing mode %q", cfg.SpacingMode)
	}

	planner, err := engine.NewPlanner(engine.PlannerConfig{
		Symbol:           symbol,
		Levels:           cfg.GridLevels,
		Quantity:         cfg.Quantity,
		NotionalPerLevel: cfg.NotionalPerLevel,
		Spacing:          spacing,
		PriceStep:        filters.PriceStep,
		QuantityStep:     filters.QuantityStep,
	})
	if err != nil {
		return err
	}

	refPrice, err := exchange.GetMarkPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetching mark price: %w", err)
	}

	levels, err := planner.Plan(refPrice)
	if err != nil {
		return err
	}

	fmt.Printf("%s  mark=%s  mode=%s  levels=%d per side\n",
		symbol, engine.FormatByStep(refPrice, filters.PriceStep), cfg.SpacingMode, cfg.GridLevels)
	for _, lv := range levels {
		fmt.Printf("  %-4s %12s  x %s\n",
			lv.Side,
			engine.FormatByStep(lv.Price, filters.PriceStep),
			engine.FormatByStep(lv.Quantity, filters.QuantityStep))
	}
	return nil
}
