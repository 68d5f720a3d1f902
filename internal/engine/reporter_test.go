package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/domain"
	"gridbot/internal/ports"
)

func newTestReporter(t *testing.T, exchange *mockExchange) (*Reporter, *Ledger, *mockLogger) {
	t.Helper()
	ledger := NewLedger()
	log := &mockLogger{}
	r := NewReporter(ReporterConfig{
		Symbol:         "BTCUSDT",
		Exchange:       exchange,
		Ledger:         ledger,
		Journal:        &mockJournal{},
		Logger:         log,
		Interval:       time.Millisecond,
		RequestTimeout: time.Second,
	})
	return r, ledger, log
}

func TestReporter_FlatSnapshot(t *testing.T) {
	exchange := newMockExchange()
	r, ledger, log := newTestReporter(t, exchange)
	ledger.Insert(domain.Order{ID: 1, Side: domain.Buy, Price: 49990})

	r.report(context.Background())

	require.NotEmpty(t, log.infoMsgs)
	assert.Equal(t, "Status: flat", log.infoMsgs[len(log.infoMsgs)-1])
}

func TestReporter_InPositionSnapshot(t *testing.T) {
	exchange := newMockExchange()
	exchange.position = &domain.Position{Symbol: "BTCUSDT", Amount: 0.002, EntryPrice: 50000.0, Leverage: 10}
	exchange.markPrice = 50500.0
	r, _, log := newTestReporter(t, exchange)

	r.report(context.Background())

	require.NotEmpty(t, log.infoMsgs)
	assert.Equal(t, "Status: in position", log.infoMsgs[len(log.infoMsgs)-1])
}

func TestReporter_NeverPlacesOrCancels(t *testing.T) {
	exchange := newMockExchange()
	exchange.position = &domain.Position{Symbol: "BTCUSDT", Amount: -0.5, EntryPrice: 3000.0, Leverage: 5}
	r, _, _ := newTestReporter(t, exchange)

	r.report(context.Background())
	r.report(context.Background())

	assert.Empty(t, exchange.placedCalls())
	assert.Empty(t, exchange.canceledIDs())
}

func TestReporter_ErrorsAreSwallowed(t *testing.T) {
	exchange := newMockExchange()
	exchange.positionErr = ports.ErrConnectionFailed
	r, _, log := newTestReporter(t, exchange)

	// Must not panic or place anything; the failure shows up as a warning.
	r.report(context.Background())
	assert.NotEmpty(t, log.warnMsgs)
	assert.Empty(t, exchange.placedCalls())
}

func TestReporter_RunStopsOnContextCancel(t *testing.T) {
	exchange := newMockExchange()
	r, _, _ := newTestReporter(t, exchange)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop after context cancellation")
	}
}
