package alpaca

import (
	"fmt"
	"strconv"
	"time"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStop         OrderType = "stop"
	OrderTypeStopLimit    OrderType = "stop_limit"
	OrderTypeTrailingStop OrderType = "trailing_stop"
)

type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
)

type OrderClass string

const (
	OrderClassSimple  OrderClass = ""
	OrderClassBracket OrderClass = "bracket"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusDoneForDay      OrderStatus = "done_for_day"
	OrderStatusRejected        OrderStatus = "rejected"
)

// IsFinished reports whether the order has reached a terminal state and will
// not fill any further.
func (s OrderStatus) IsFinished() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired, OrderStatusDoneForDay, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// Account is the trading account state returned by the broker. The wire
// format carries monetary values as strings; they are converted once here.
type Account struct {
	ID                       string
	Status                   string
	Cash                     float64
	Equity                   float64
	BuyingPower              float64
	NonMarginableBuyingPower float64
	DaytradeCount            int
}

type accountDTO struct {
	ID                       string `json:"id"`
	Status                   string `json:"status"`
	Cash                     string `json:"cash"`
	Equity                   string `json:"equity"`
	BuyingPower              string `json:"buying_power"`
	NonMarginableBuyingPower string `json:"non_marginable_buying_power"`
	DaytradeCount            int    `json:"daytrade_count"`
}

func (dto *accountDTO) ToAccount() (*Account, error) {
	account := &Account{
		ID:            dto.ID,
		Status:        dto.Status,
		DaytradeCount: dto.DaytradeCount,
	}

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"cash", dto.Cash, &account.Cash},
		{"equity", dto.Equity, &account.Equity},
		{"buying_power", dto.BuyingPower, &account.BuyingPower},
		{"non_marginable_buying_power", dto.NonMarginableBuyingPower, &account.NonMarginableBuyingPower},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}

		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("accountDTO.ToAccount: failed to parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}

	return account, nil
}

type Clock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

type Position struct {
	Symbol        string
	Side          PositionSide
	Qty           float64
	AvgEntryPrice float64
	MarketValue   float64
}

type positionDTO struct {
	Symbol        string       `json:"symbol"`
	Side          PositionSide `json:"side"`
	Qty           string       `json:"qty"`
	AvgEntryPrice string       `json:"avg_entry_price"`
	MarketValue   string       `json:"market_value"`
}

func (dto *positionDTO) ToPosition() (*Position, error) {
	position := &Position{
		Symbol: dto.Symbol,
		Side:   dto.Side,
	}

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"qty", dto.Qty, &position.Qty},
		{"avg_entry_price", dto.AvgEntryPrice, &position.AvgEntryPrice},
		{"market_value", dto.MarketValue, &position.MarketValue},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}

		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("positionDTO.ToPosition: failed to parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}

	return position, nil
}

type Order struct {
	ID           string
	Symbol       string
	Status       OrderStatus
	Side         OrderSide
	FilledQty    float64
	FilledAvgPrc float64
}

type orderDTO struct {
	ID           string      `json:"id"`
	Symbol       string      `json:"symbol"`
	Status       OrderStatus `json:"status"`
	Side         OrderSide   `json:"side"`
	FilledQty    string      `json:"filled_qty"`
	FilledAvgPrc string      `json:"filled_avg_price"`
}

func (dto *orderDTO) ToOrder() (*Order, error) {
	order := &Order{
		ID:     dto.ID,
		Symbol: dto.Symbol,
		Status: dto.Status,
		Side:   dto.Side,
	}

	if dto.FilledQty != "" {
		v, err := strconv.ParseFloat(dto.FilledQty, 64)
		if err != nil {
			return nil, fmt.Errorf("orderDTO.ToOrder: failed to parse filled_qty %q: %w", dto.FilledQty, err)
		}
		order.FilledQty = v
	}

	if dto.FilledAvgPrc != "" {
		v, err := strconv.ParseFloat(dto.FilledAvgPrc, 64)
		if err != nil {
			return nil, fmt.Errorf("orderDTO.ToOrder: failed to parse filled_avg_price %q: %w", dto.FilledAvgPrc, err)
		}
		order.FilledAvgPrc = v
	}

	return order, nil
}

type Quote struct {
	BidPrice float64 `json:"bp"`
	AskPrice float64 `json:"ap"`
}

type stockQuoteResponseDTO struct {
	Symbol string `json:"symbol"`
	Quote  Quote  `json:"quote"`
}

type cryptoQuoteResponseDTO struct {
	Quotes map[string]Quote `json:"quotes"`
}

type TakeProfitRequest struct {
	LimitPrice string `json:"limit_price"`
}

type StopLossRequest struct {
	StopPrice string `json:"stop_price"`
}

// OrderRequest is the order placement payload. Numeric fields are formatted
// as strings on the wire.
type OrderRequest struct {
	Symbol        string             `json:"symbol"`
	Qty           string             `json:"qty,omitempty"`
	Notional      string             `json:"notional,omitempty"`
	Side          OrderSide          `json:"side"`
	Type          OrderType          `json:"type"`
	TimeInForce   TimeInForce        `json:"time_in_force"`
	LimitPrice    string             `json:"limit_price,omitempty"`
	StopPrice     string             `json:"stop_price,omitempty"`
	TrailPercent  string             `json:"trail_percent,omitempty"`
	ExtendedHours bool               `json:"extended_hours,omitempty"`
	OrderClass    OrderClass         `json:"order_class,omitempty"`
	TakeProfit    *TakeProfitRequest `json:"take_profit,omitempty"`
	StopLoss      *StopLossRequest   `json:"stop_loss,omitempty"`
}

// FormatFloat renders a numeric order field the way the wire format expects.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
