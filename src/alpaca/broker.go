package alpaca

import "context"

// Broker is the subset of the brokerage API the trading service depends on.
// GetOpenPosition returns (nil, nil) when no position is held.
type Broker interface {
	GetAccount(ctx context.Context) (*Account, error)
	GetClock(ctx context.Context) (*Clock, error)
	GetOpenPosition(ctx context.Context, symbol string) (*Position, error)
	ClosePosition(ctx context.Context, symbol string, percentage float64) (*Order, error)
	SubmitOrder(ctx context.Context, req *OrderRequest) (*Order, error)
	GetOrderByID(ctx context.Context, orderID string) (*Order, error)
	CancelOrderByID(ctx context.Context, orderID string) error
	GetLatestQuote(ctx context.Context, symbol string, assetClass string) (*Quote, error)
}
