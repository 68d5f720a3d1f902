package engine

import (
	"fmt"

	"gridbot/internal/domain"
)

// Level is one planned grid order: a price target on one side of the
// reference price with the quantity to rest there.
type Level struct {
	Side     domain.OrderSide
	Price    float64
	Quantity float64
}

// PlannerConfig configures a Planner.
type PlannerConfig struct {
	Symbol           string
	Levels           int     // Levels per side; the full ladder is 2*Levels orders
	Quantity         float64 // Fixed quantity per level
	NotionalPerLevel float64 // If > 0, quantity is NotionalPerLevel/refPrice instead
	Spacing          SpacingFunc
	PriceStep        float64
	QuantityStep     float64
}

// Planner turns a reference price into a symmetric ladder of buy/sell price
// targets. It is pure computation: no gateway calls, no side effects.
// Callers submit the returned plan and must skip planning entirely when no
// reference price is available.
type Planner struct {
	cfg PlannerConfig
}

// NewPlanner validates the configuration and returns a Planner.
func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("planner requires a symbol")
	}
	if cfg.Levels <= 0 {
		return nil, fmt.Errorf("planner requires a positive level count, got %d", cfg.Levels)
	}
	if cfg.Quantity <= 0 && cfg.NotionalPerLevel <= 0 {
		return nil, fmt.Errorf("planner requires a positive quantity or notional per level")
	}
	if cfg.Spacing == nil {
		return nil, fmt.Errorf("planner requires a spacing function")
	}
	if cfg.PriceStep <= 0 || cfg.QuantityStep <= 0 {
		return nil, fmt.Errorf("planner requires positive price and quantity steps")
	}
	return &Planner{cfg: cfg}, nil
}

// Plan produces 2N levels around refPrice: for i in 1..N a sell at
// refPrice + spacing(i) and a buy at refPrice - spacing(i), every price
// rounded to the price step and every quantity to the quantity step.
func (p *Planner) Plan(refPrice float64) ([]Level, error) {
	if refPrice <= 0 {
		return nil, fmt.Errorf("reference price must be positive, got %v", refPrice)
	}

	quantity, err := p.quantityAt(refPrice)
	if err != nil {
		return nil, err
	}

	levels := make([]Level, 0, 2*p.cfg.Levels)
	for i := 1; i <= p.cfg.Levels; i++ {
		distance := p.cfg.Spacing(i, refPrice)
		levels = append(levels, Level{
			Side:     domain.Sell,
			Price:    RoundToStep(refPrice+distance, p.cfg.PriceStep),
			Quantity: quantity,
		})
		levels = append(levels, Level{
			Side:     domain.Buy,
			Price:    RoundToStep(refPrice-distance, p.cfg.PriceStep),
			Quantity: quantity,
		})
	}
	return levels, nil
}

// Step returns the base (level-1) spacing unit at the given reference price,
// used when regenerating a filled order one unit further out.
func (p *Planner) Step(refPrice float64) float64 {
	return p.cfg.Spacing(1, refPrice)
}

// TargetOrderCount is the number of orders a fully populated grid rests.
func (p *Planner) TargetOrderCount() int {
	return 2 * p.cfg.Levels
}

// PriceStep exposes the exchange price increment the planner rounds to.
func (p *Planner) PriceStep() float64 {
	return p.cfg.PriceStep
}

// QuantityStep exposes the exchange quantity increment.
func (p *Planner) QuantityStep() float64 {
	return p.cfg.QuantityStep
}

func (p *Planner) quantityAt(refPrice float64) (float64, error) {
	quantity := p.cfg.Quantity
	if p.cfg.NotionalPerLevel > 0 {
		quantity = p.cfg.NotionalPerLevel / refPrice
	}
	quantity = RoundToStep(quantity, p.cfg.QuantityStep)
	if quantity <= 0 {
		return 0, fmt.Errorf("per-level quantity rounds to zero at price %v (step %v)", refPrice, p.cfg.QuantityStep)
	}
	return quantity, nil
}
