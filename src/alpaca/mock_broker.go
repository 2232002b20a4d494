package alpaca

import (
	"context"
	"fmt"
	"time"
)

// MockBroker is an in-memory Broker implementation for tests. It records
// every submitted order request and fills orders immediately unless
// FillAfterPolls is set.
type MockBroker struct {
	Account        *Account
	Clock          *Clock
	Positions      map[string]*Position
	Quotes         map[string]*Quote
	Requests       []*OrderRequest
	ClosedSymbols  []string
	CanceledOrders []string
	FillAfterPolls int
	SubmitErr      error
	// SubmitErrAt fails only the nth submit (1-based) with SubmitErr. Zero
	// fails every submit while SubmitErr is set.
	SubmitErrAt int

	nextOrderID int
	submits     int
	orders      map[string]*Order
	polls       map[string]int
}

func NewMockBroker() *MockBroker {
	return &MockBroker{
		Account: &Account{
			ID:                       "mock-account",
			Status:                   "ACTIVE",
			Cash:                     10000,
			Equity:                   30000,
			BuyingPower:              20000,
			NonMarginableBuyingPower: 10000,
		},
		Clock: &Clock{
			Timestamp: time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC),
			IsOpen:    true,
		},
		Positions: make(map[string]*Position),
		Quotes:    make(map[string]*Quote),
		orders:    make(map[string]*Order),
		polls:     make(map[string]int),
	}
}

func (b *MockBroker) GetAccount(ctx context.Context) (*Account, error) {
	return b.Account, nil
}

func (b *MockBroker) GetClock(ctx context.Context) (*Clock, error) {
	return b.Clock, nil
}

func (b *MockBroker) GetOpenPosition(ctx context.Context, symbol string) (*Position, error) {
	return b.Positions[symbol], nil
}

func (b *MockBroker) ClosePosition(ctx context.Context, symbol string, percentage float64) (*Order, error) {
	position, found := b.Positions[symbol]
	if !found {
		return nil, fmt.Errorf("MockBroker.ClosePosition: no position in %s", symbol)
	}

	delete(b.Positions, symbol)
	b.ClosedSymbols = append(b.ClosedSymbols, symbol)

	side := OrderSideSell
	if position.Side == PositionSideShort {
		side = OrderSideBuy
	}

	order := b.newOrder(symbol, side)
	order.FilledQty = position.Qty
	order.FilledAvgPrc = position.AvgEntryPrice
	return order, nil
}

func (b *MockBroker) SubmitOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	b.submits++
	if b.SubmitErr != nil && (b.SubmitErrAt == 0 || b.submits == b.SubmitErrAt) {
		return nil, b.SubmitErr
	}

	b.Requests = append(b.Requests, req)

	order := b.newOrder(req.Symbol, req.Side)
	if b.FillAfterPolls > 0 {
		order.Status = OrderStatusNew
		order.FilledQty = 0
		order.FilledAvgPrc = 0
	}

	return order, nil
}

func (b *MockBroker) GetOrderByID(ctx context.Context, orderID string) (*Order, error) {
	order, found := b.orders[orderID]
	if !found {
		return nil, fmt.Errorf("MockBroker.GetOrderByID: order %s not found", orderID)
	}

	if order.Status == OrderStatusNew {
		b.polls[orderID]++
		if b.polls[orderID] >= b.FillAfterPolls {
			order.Status = OrderStatusFilled
			order.FilledQty = 1
			order.FilledAvgPrc = 100
		}
	}

	return order, nil
}

func (b *MockBroker) CancelOrderByID(ctx context.Context, orderID string) error {
	order, found := b.orders[orderID]
	if !found {
		return fmt.Errorf("MockBroker.CancelOrderByID: order %s not found", orderID)
	}

	order.Status = OrderStatusCanceled
	b.CanceledOrders = append(b.CanceledOrders, orderID)
	return nil
}

func (b *MockBroker) GetLatestQuote(ctx context.Context, symbol string, assetClass string) (*Quote, error) {
	quote, found := b.Quotes[symbol]
	if !found {
		return nil, fmt.Errorf("MockBroker.GetLatestQuote: no quote for %s", symbol)
	}

	return quote, nil
}

func (b *MockBroker) newOrder(symbol string, side OrderSide) *Order {
	b.nextOrderID++
	order := &Order{
		ID:           fmt.Sprintf("order-%d", b.nextOrderID),
		Symbol:       symbol,
		Status:       OrderStatusFilled,
		Side:         side,
		FilledQty:    1,
		FilledAvgPrc: 100,
	}

	b.orders[order.ID] = order
	return order
}
