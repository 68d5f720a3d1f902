package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"gridbot/internal/domain"
	"gridbot/internal/ports"
)

// mockLogger implements ports.Logger, capturing messages for assertions.
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// placedCall records one PlaceLimitOrder invocation.
type placedCall struct {
	Symbol   string
	Side     domain.OrderSide
	Quantity float64
	Price    float64
}

// mockExchange implements ports.ExchangeClient with a mutable open-order
// list. Placed orders are assigned sequential ids and rest on the list until
// a test removes them (simulating a fill) or CancelOrder takes them off.
type mockExchange struct {
	mu         sync.Mutex
	nextID     int64
	openOrders []*domain.Order
	placed     []placedCall
	canceled   []int64

	markPrice    float64
	markPriceErr error
	position     *domain.Position
	positionErr  error
	filters      *ports.SymbolFilters
	filtersErr   error
	klines       []*domain.Kline
	klinesErr    error

	placeErr        error
	placeErrByPrice map[float64]error
	cancelErr       error
	listErr         error
	leverageErr     error
	serverTimeErr   error
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		nextID:    1000,
		markPrice: 50000.0,
		filters: &ports.SymbolFilters{
			Symbol:       "BTCUSDT",
			PriceStep:    0.1,
			QuantityStep: 0.001,
		},
	}
}

func (m *mockExchange) SetServerTime(ctx context.Context) error { return m.serverTimeErr }
func (m *mockExchange) Ping(ctx context.Context) error          { return nil }

func (m *mockExchange) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	return m.markPrice, m.markPriceErr
}

func (m *mockExchange) GetSymbolFilters(ctx context.Context, symbol string) (*ports.SymbolFilters, error) {
	return m.filters, m.filtersErr
}

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return m.leverageErr
}

func (m *mockExchange) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string, price string) (*ports.OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeErr != nil {
		return nil, m.placeErr
	}

	qty, err := strconv.ParseFloat(quantity, 64)
	if err != nil {
		return nil, err
	}
	prc, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return nil, err
	}
	if perr, ok := m.placeErrByPrice[prc]; ok && perr != nil {
		return nil, perr
	}

	m.nextID++
	m.placed = append(m.placed, placedCall{Symbol: symbol, Side: side, Quantity: qty, Price: prc})
	m.openOrders = append(m.openOrders, &domain.Order{
		ID:        m.nextID,
		Symbol:    symbol,
		Side:      side,
		Price:     prc,
		Quantity:  qty,
		CreatedAt: time.Now(),
	})
	return &ports.OrderAck{
		OrderID:      m.nextID,
		Symbol:       symbol,
		Price:        prc,
		OrigQuantity: qty,
		Status:       "NEW",
		Side:         string(side),
	}, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	m.canceled = append(m.canceled, orderID)
	for i, o := range m.openOrders {
		if o.ID == orderID {
			m.openOrders = append(m.openOrders[:i], m.openOrders[i+1:]...)
			return &ports.OrderAck{OrderID: orderID, Symbol: symbol, Status: "CANCELED"}, nil
		}
	}
	return nil, ports.ErrOrderNotFound
}

func (m *mockExchange) ListOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*domain.Order, len(m.openOrders))
	copy(out, m.openOrders)
	return out, nil
}

func (m *mockExchange) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	return m.position, m.positionErr
}

func (m *mockExchange) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	return m.klines, m.klinesErr
}

// rest adds an order directly to the open list without recording a placement,
// simulating an order that predates the engine.
func (m *mockExchange) rest(o *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openOrders = append(m.openOrders, o)
}

// fill removes an order from the open list without a cancel, simulating an
// execution (or an external cancellation, which looks identical).
func (m *mockExchange) fill(orderID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.openOrders {
		if o.ID == orderID {
			m.openOrders = append(m.openOrders[:i], m.openOrders[i+1:]...)
			return
		}
	}
}

func (m *mockExchange) placedCalls() []placedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]placedCall, len(m.placed))
	copy(out, m.placed)
	return out
}

func (m *mockExchange) canceledIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.canceled))
	copy(out, m.canceled)
	return out
}

func (m *mockExchange) lastOrderID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID
}

// mockJournal implements ports.OrderJournal in memory.
type mockJournal struct {
	mu         sync.Mutex
	placements []*ports.JournalEntry
	fills      []int64
	cancels    []int64

	placementErr error
	fillErr      error
	cancelErr    error
}

func (m *mockJournal) RecordPlacement(ctx context.Context, entry *ports.JournalEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placementErr != nil {
		return 0, m.placementErr
	}
	m.placements = append(m.placements, entry)
	return int64(len(m.placements)), nil
}

func (m *mockJournal) RecordFill(ctx context.Context, orderID int64, detectedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fillErr != nil {
		return m.fillErr
	}
	m.fills = append(m.fills, orderID)
	return nil
}

func (m *mockJournal) RecordCancel(ctx context.Context, orderID int64, canceledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancels = append(m.cancels, orderID)
	return nil
}

func (m *mockJournal) FindRecentBySymbol(ctx context.Context, symbol string, limit int) ([]*ports.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ports.JournalEntry, 0, limit)
	for i := len(m.placements) - 1; i >= 0 && len(out) < limit; i-- {
		if m.placements[i].Symbol == symbol {
			out = append(out, m.placements[i])
		}
	}
	return out, nil
}

func (m *mockJournal) CountFillsToday(ctx context.Context, symbol string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fills), nil
}
