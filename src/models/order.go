package models

import (
	"fmt"
	"time"
)

type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

type MarketPosition string

const (
	MarketPositionLong  MarketPosition = "long"
	MarketPositionShort MarketPosition = "short"
	MarketPositionFlat  MarketPosition = "flat"
)

type AssetClass string

const (
	AssetClassStock  AssetClass = "stock"
	AssetClassCrypto AssetClass = "crypto"
)

// Order is a single webhook alert as received from TradingView. It is
// persisted before any broker interaction, and OrderID is filled in once the
// order has been forwarded.
type Order struct {
	ID             uint           `gorm:"primarykey" json:"id" csv:"id"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamp;not null" json:"created_at" csv:"created_at"`
	Ticker         string         `gorm:"column:ticker;type:text;not null" json:"ticker" csv:"ticker"`
	Action         TradeAction    `gorm:"column:action;type:text;not null" json:"action" csv:"action"`
	MarketPosition MarketPosition `gorm:"column:market_position;type:text;not null" json:"market_position" csv:"market_position"`
	Nickname       string         `gorm:"column:nickname;type:text" json:"nickname" csv:"nickname"`
	Price          float64        `gorm:"column:price;type:numeric;not null" json:"price" csv:"price"`
	High           float64        `gorm:"column:high;type:numeric" json:"high" csv:"high"`
	Low            float64        `gorm:"column:low;type:numeric" json:"low" csv:"low"`
	BuyingPowerPct float64        `gorm:"column:buying_power_pct;type:numeric;not null" json:"buying_power_pct" csv:"buying_power_pct"`
	MaxSlippage    float64        `gorm:"column:max_slippage;type:numeric" json:"max_slippage" csv:"max_slippage"`
	Leveraged      bool           `gorm:"column:leveraged" json:"leveraged" csv:"leveraged"`
	AssetClass     AssetClass     `gorm:"column:asset_class;type:text;not null;default:'stock'" json:"asset_class" csv:"asset_class"`
	StopLoss       float64        `gorm:"column:sl;type:numeric" json:"sl" csv:"sl"`
	TakeProfit     float64        `gorm:"column:tp;type:numeric" json:"tp" csv:"tp"`
	TrailingStop   float64        `gorm:"column:trailing_stop;type:numeric" json:"trailing_stop" csv:"trailing_stop"`
	OrderID        string         `gorm:"column:order_id;type:text" json:"order_id" csv:"order_id"`
}

func (o *Order) Validate() error {
	if o.Ticker == "" {
		return fmt.Errorf("Order.Validate: ticker is required")
	}

	if o.Action != TradeActionBuy && o.Action != TradeActionSell {
		return fmt.Errorf("Order.Validate: invalid action: %s", o.Action)
	}

	switch o.MarketPosition {
	case MarketPositionLong, MarketPositionShort, MarketPositionFlat:
	default:
		return fmt.Errorf("Order.Validate: invalid market position: %s", o.MarketPosition)
	}

	if o.AssetClass == "" {
		o.AssetClass = AssetClassStock
	}

	if o.AssetClass != AssetClassStock && o.AssetClass != AssetClassCrypto {
		return fmt.Errorf("Order.Validate: invalid asset class: %s", o.AssetClass)
	}

	if o.Price <= 0 {
		return fmt.Errorf("Order.Validate: price must be positive, got %v", o.Price)
	}

	if o.BuyingPowerPct <= 0 || o.BuyingPowerPct > 1 {
		return fmt.Errorf("Order.Validate: buying_power_pct must be in (0, 1], got %v", o.BuyingPowerPct)
	}

	if o.MaxSlippage < 0 {
		return fmt.Errorf("Order.Validate: max_slippage cannot be negative, got %v", o.MaxSlippage)
	}

	for name, v := range map[string]float64{"sl": o.StopLoss, "tp": o.TakeProfit, "trailing_stop": o.TrailingStop} {
		if v < 0 || v >= 1 {
			return fmt.Errorf("Order.Validate: %s must be in [0, 1), got %v", name, v)
		}
	}

	return nil
}
