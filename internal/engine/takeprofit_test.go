package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/domain"
)

func TestCalculateTakeProfit(t *testing.T) {
	tests := []struct {
		name          string
		pos           *domain.Position
		tpPercent     float64
		priceStep     float64
		wantPrice     float64
		wantQuantity  float64
		wantDirection domain.Direction
	}{
		{
			name: "long position",
			// margin = 50000*0.002/10 = 10, profit = 10*0.5/100 = 0.05
			// tp = 50000 + 0.05/0.002 = 50025
			pos:           &domain.Position{Symbol: "BTCUSDT", Amount: 0.002, EntryPrice: 50000.0, Leverage: 10},
			tpPercent:     0.5,
			priceStep:     0.1,
			wantPrice:     50025.0,
			wantQuantity:  0.002,
			wantDirection: domain.Long,
		},
		{
			name: "short position",
			// margin = 60000*0.3/10 = 1800, profit = 1800*0.5/100 = 9
			// tp = 60000 - 9/0.3 = 59970... with amount -0.3:
			// profit/amount = 9/-0.3 = -30, tp = 60000 - 30 = 59970
			pos:           &domain.Position{Symbol: "BTCUSDT", Amount: -0.3, EntryPrice: 60000.0, Leverage: 10},
			tpPercent:     0.5,
			priceStep:     0.1,
			wantPrice:     59970.0,
			wantQuantity:  0.3,
			wantDirection: domain.Short,
		},
		{
			name: "short position high leverage",
			// margin = 60000*0.3/200 = 90, profit = 90*0.5/100 = 0.45
			// tp = 60000 - 0.45/0.3 = 59998.5
			pos:           &domain.Position{Symbol: "BTCUSDT", Amount: -0.3, EntryPrice: 60000.0, Leverage: 200},
			tpPercent:     0.5,
			priceStep:     0.1,
			wantPrice:     59998.5,
			wantQuantity:  0.3,
			wantDirection: domain.Short,
		},
		{
			name:          "zero leverage defaults to one",
			// margin = 50000*0.002/1 = 100, profit = 0.5, tp = 50000 + 250
			pos:           &domain.Position{Symbol: "BTCUSDT", Amount: 0.002, EntryPrice: 50000.0, Leverage: 0},
			tpPercent:     0.5,
			priceStep:     0.1,
			wantPrice:     50250.0,
			wantQuantity:  0.002,
			wantDirection: domain.Long,
		},
		{
			name:          "negative leverage defaults to one",
			pos:           &domain.Position{Symbol: "BTCUSDT", Amount: 0.002, EntryPrice: 50000.0, Leverage: -3},
			tpPercent:     0.5,
			priceStep:     0.1,
			wantPrice:     50250.0,
			wantQuantity:  0.002,
			wantDirection: domain.Long,
		},
		{
			name:          "price rounded to step",
			// margin = 50000*0.003/10 = 15, profit = 0.0495
			// raw tp = 50000 + 0.0495/0.003 = 50016.5, step 1 rounds to 50017
			pos:           &domain.Position{Symbol: "BTCUSDT", Amount: 0.003, EntryPrice: 50000.0, Leverage: 10},
			tpPercent:     0.33,
			priceStep:     1.0,
			wantPrice:     50017.0,
			wantQuantity:  0.003,
			wantDirection: domain.Long,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := CalculateTakeProfit(tt.pos, tt.tpPercent, tt.priceStep)
			require.True(t, ok)
			assert.InDelta(t, tt.wantPrice, target.Price, 1e-9)
			assert.InDelta(t, tt.wantQuantity, target.Quantity, 1e-9)
			assert.Equal(t, tt.wantDirection, target.Direction)
		})
	}
}

func TestCalculateTakeProfit_TargetIsFavorable(t *testing.T) {
	long := &domain.Position{Amount: 1.5, EntryPrice: 3000.0, Leverage: 5}
	target, ok := CalculateTakeProfit(long, 0.5, 0.01)
	require.True(t, ok)
	assert.Greater(t, target.Price, long.EntryPrice, "long take-profit must sit above entry")
	assert.Equal(t, domain.Sell, target.Side())

	short := &domain.Position{Amount: -1.5, EntryPrice: 3000.0, Leverage: 5}
	target, ok = CalculateTakeProfit(short, 0.5, 0.01)
	require.True(t, ok)
	assert.Less(t, target.Price, short.EntryPrice, "short take-profit must sit below entry")
	assert.Equal(t, domain.Buy, target.Side())
}

func TestCalculateTakeProfit_NoTarget(t *testing.T) {
	_, ok := CalculateTakeProfit(nil, 0.5, 0.1)
	assert.False(t, ok)

	_, ok = CalculateTakeProfit(&domain.Position{Amount: 0, EntryPrice: 50000}, 0.5, 0.1)
	assert.False(t, ok)
}

func TestCalculateStopLoss_MirrorsTakeProfit(t *testing.T) {
	pos := &domain.Position{Symbol: "BTCUSDT", Amount: 0.002, EntryPrice: 50000.0, Leverage: 10}

	tp, ok := CalculateTakeProfit(pos, 0.5, 0.1)
	require.True(t, ok)
	sl, ok := CalculateStopLoss(pos, 0.5, 0.1)
	require.True(t, ok)

	// Same distance from entry, opposite side.
	assert.InDelta(t, tp.Price-pos.EntryPrice, pos.EntryPrice-sl.Price, 1e-9)
	assert.InDelta(t, 49975.0, sl.Price, 1e-9)
	assert.Less(t, sl.Price, pos.EntryPrice)

	short := &domain.Position{Symbol: "BTCUSDT", Amount: -0.3, EntryPrice: 60000.0, Leverage: 10}
	sl, ok = CalculateStopLoss(short, 0.5, 0.1)
	require.True(t, ok)
	assert.Greater(t, sl.Price, short.EntryPrice, "short stop-loss must sit above entry")
	assert.InDelta(t, 60030.0, sl.Price, 1e-9)
}

func TestCalculateStopLoss_NoTarget(t *testing.T) {
	_, ok := CalculateStopLoss(nil, 0.5, 0.1)
	assert.False(t, ok)
}
