package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectionFromAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   Direction
	}{
		{name: "positive is long", amount: 0.002, want: Long},
		{name: "large positive is long", amount: 1500.0, want: Long},
		{name: "tiny positive is long", amount: 1e-12, want: Long},
		{name: "negative is short", amount: -0.3, want: Short},
		{name: "tiny negative is short", amount: -1e-12, want: Short},
		{name: "zero is flat", amount: 0, want: Flat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DirectionFromAmount(tt.amount))
		})
	}
}

func TestOrderSide_Opposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}

func TestDirection_Sides(t *testing.T) {
	assert.Equal(t, Sell, Long.ClosingSide())
	assert.Equal(t, Buy, Short.ClosingSide())
	assert.Equal(t, Buy, Long.AccumulatingSide())
	assert.Equal(t, Sell, Short.AccumulatingSide())
}

func TestPosition_Direction(t *testing.T) {
	var nilPos *Position
	assert.Equal(t, Flat, nilPos.Direction())

	assert.Equal(t, Long, (&Position{Amount: 0.5}).Direction())
	assert.Equal(t, Short, (&Position{Amount: -0.5}).Direction())
	assert.Equal(t, Flat, (&Position{Amount: 0}).Direction())
}
